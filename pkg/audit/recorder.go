package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/platinummonkey/adminkit/pkg/async"
	"github.com/platinummonkey/adminkit/pkg/observability"
)

// Writer persists one entry.
type Writer interface {
	Insert(ctx context.Context, l SysLog) error
}

// Recorder captures requests and writes them in the background.
type Recorder struct {
	queue    *async.Queue[SysLog]
	metrics  *observability.Metrics
	clientIP func(*http.Request) string
	now      func() time.Time
}

// NewRecorder starts the background writer with a buffer of size entries.
func NewRecorder(w Writer, size int, clientIP func(*http.Request) string, metrics *observability.Metrics, logger *observability.Logger) *Recorder {
	return &Recorder{
		queue:    async.NewQueue("audit writer", size, 5*time.Second, w.Insert, logger),
		metrics:  metrics,
		clientIP: clientIP,
		now:      time.Now,
	}
}

// Record enqueues l. Entries that do not fit in the buffer are counted and
// dropped.
func (rec *Recorder) Record(l SysLog) {
	if rec.queue.Offer(l) {
		return
	}
	if rec.metrics != nil {
		rec.metrics.AuditDroppedTotal.Inc()
	}
}

// Middleware records every request after it has been handled.
func (rec *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := rec.now()
		next.ServeHTTP(w, r)

		ip := r.RemoteAddr
		if rec.clientIP != nil {
			ip = rec.clientIP(r)
		}
		rec.Record(SysLog{
			URL:        r.URL.Path,
			Method:     r.Method,
			IP:         ip,
			Params:     r.URL.RawQuery,
			SpendTime:  FormatSpendTime(rec.now().Sub(start)),
			CreateTime: start,
		})
	})
}

// Close flushes buffered entries, waiting at most timeout.
func (rec *Recorder) Close(timeout time.Duration) error {
	return rec.queue.Close(timeout)
}
