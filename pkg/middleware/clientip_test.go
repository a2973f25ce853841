package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrustedProxies(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", "", "::1"})
	require.NoError(t, err)
	require.Len(t, proxies, 3)
	assert.True(t, proxies.trusts("10.1.2.3"))
	assert.True(t, proxies.trusts("192.0.2.10"))
	assert.False(t, proxies.trusts("192.0.2.11"))
	assert.True(t, proxies.trusts("::1"))

	for _, bad := range []string{"not-an-ip", "10.0.0.0/99"} {
		_, err := ParseTrustedProxies([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestClientIP_UntrustedPeerIgnoresHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:4321"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.Header.Set("X-Real-IP", "198.51.100.7")

	var none TrustedProxies
	assert.Equal(t, "192.0.2.1", none.ClientIP(r))
	assert.Equal(t, "192.0.2.1", ClientIP(r), "without the middleware the peer address is used")
}

func TestClientIP_TrustedProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		forwarded string
		realIP    string
		want      string
	}{
		{"no headers", "", "", "10.0.0.5"},
		{"real ip", "", "198.51.100.7", "198.51.100.7"},
		{"single hop", "203.0.113.9", "", "203.0.113.9"},
		{"spoofed left hop is skipped", "1.2.3.4, 203.0.113.9, 10.0.0.2", "", "203.0.113.9"},
		{"all trusted", "10.0.0.3, 10.0.0.2", "", "10.0.0.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "10.0.0.5:8080"
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, proxies.ClientIP(r))
		})
	}
}

func TestTrustedProxies_Middleware(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	var seen, key string
	h := proxies.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientIP(r)
		key = RateLimitKey(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:8080"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "203.0.113.9", seen)
	assert.Equal(t, "ip:203.0.113.9", key)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:4321"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "192.0.2.1", seen, "rotating the header does not change the bucket")
	assert.Equal(t, "ip:192.0.2.1", key)
}
