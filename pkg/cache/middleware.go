package cache

import (
	"bytes"
	"net/http"

	"github.com/platinummonkey/adminkit/pkg/rbac"
)

// capture buffers a handler's response so it can be cached and replayed.
type capture struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (c *capture) Header() http.Header { return c.header }

func (c *capture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
}

func (c *capture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.body.Write(b)
}

func writeEntry(w http.ResponseWriter, e *Entry, state string) {
	if e.ContentType != "" {
		w.Header().Set("Content-Type", e.ContentType)
	}
	w.Header().Set("X-Cache", state)
	w.WriteHeader(e.Status)
	w.Write(e.Body)
}

// Middleware serves GET requests from the cache. It must run after the
// permission guard so a cached response is never returned to a caller that
// could not have produced it.
func (c *ResponseCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		var name string
		if p := rbac.PrincipalFromContext(r.Context()); p != nil {
			name = p.Name()
		}
		key := Key(r.Method, r.URL.Path, r.URL.Query(), name)

		if e, ok := c.Get(r.Context(), key); ok {
			writeEntry(w, e, "HIT")
			return
		}

		e := c.Fill(r.Context(), key, func() *Entry {
			rec := &capture{header: make(http.Header)}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			return &Entry{
				Status:      rec.status,
				ContentType: rec.header.Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
		})
		writeEntry(w, e, "MISS")
	})
}
