package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flipwise/flipwise/internal/ctxkeys"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	validateFn func(token string) (string, error)
}

func (f fakeValidator) Validate(token string) (string, error) {
	return f.validateFn(token)
}

func TestRequireAuth(t *testing.T) {
	validator := fakeValidator{validateFn: func(token string) (string, error) {
		if token == "good" {
			return "user-1", nil
		}
		return "", errors.New("bad token")
	}}

	var seen string
	handler := RequireAuth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxkeys.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		userID string
	}{
		{"valid", "Bearer good", http.StatusNoContent, "user-1"},
		{"lowercase scheme", "bearer good", http.StatusNoContent, "user-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer bad", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.userID, seen)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("first"), mw("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestRequestLoggingSetsRequestID(t *testing.T) {
	var ctxID string
	h := RequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = ctxkeys.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, ctxID)
	assert.Equal(t, ctxID, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestLogging, Recover)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, "1.2.3.4"))
	assert.True(t, rl.Allow(ctx, "1.2.3.4"))
	assert.False(t, rl.Allow(ctx, "1.2.3.4"))
	assert.True(t, rl.Allow(ctx, "5.6.7.8"))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()

	h := RateLimit(rl, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		return req
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newReq())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newReq())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRedisRateLimiter(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisRateLimiter(client, 2, 2*time.Minute)
	ctx := context.Background()
	key := []string{"flipwise:rl:1.2.3.4:/api/login"}

	mock.ExpectEval(redisAllowScript, key, 120).SetVal(int64(1))
	mock.ExpectEval(redisAllowScript, key, 120).SetVal(int64(2))
	mock.ExpectEval(redisAllowScript, key, 120).SetVal(int64(3))

	assert.True(t, l.Allow(ctx, "1.2.3.4:/api/login"))
	assert.True(t, l.Allow(ctx, "1.2.3.4:/api/login"))
	assert.False(t, l.Allow(ctx, "1.2.3.4:/api/login"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisRateLimiter(client, 1, time.Minute)

	mock.ExpectEval(redisAllowScript, []string{"flipwise:rl:k"}, 60).SetErr(errors.New("connection refused"))
	assert.True(t, l.Allow(context.Background(), "k"))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, NewRedisRateLimiter(nil, 1, time.Minute).Allow(context.Background(), "k"))
}

func TestClientIPIgnoresHeadersFromUntrustedPeers(t *testing.T) {
	ips, err := NewClientIP(nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	req.Header.Set("X-Forwarded-For", "10.0.0.3")
	req.Header.Set("X-Real-IP", "10.0.0.2")

	assert.Equal(t, "203.0.113.7", ips.Resolve(req))
	assert.Equal(t, "203.0.113.7", (*ClientIP)(nil).Resolve(req))
}

func TestClientIPBehindTrustedProxy(t *testing.T) {
	ips, err := NewClientIP([]string{"10.0.0.0/8", "192.168.1.5"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"no headers", "10.0.0.1:1234", "", "", "10.0.0.1"},
		{"single hop", "10.0.0.1:1234", "198.51.100.4", "", "198.51.100.4"},
		{"spoofed leftmost hop", "10.0.0.1:1234", "1.1.1.1, 198.51.100.4", "", "198.51.100.4"},
		{"trusted hops skipped", "192.168.1.5:80", "198.51.100.4, 10.1.2.3", "", "198.51.100.4"},
		{"real ip header", "10.0.0.1:1234", "", "198.51.100.9", "198.51.100.9"},
		{"ipv6 peer untrusted", "[2001:db8::1]:443", "198.51.100.4", "", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, ips.Resolve(req))
		})
	}
}

func TestNewClientIPRejectsGarbage(t *testing.T) {
	_, err := NewClientIP([]string{"not-an-ip"})
	assert.Error(t, err)

	_, err = NewClientIP([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestRateLimitCannotBeBypassedWithForwardedFor(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()
	ips, err := NewClientIP(nil)
	require.NoError(t, err)

	h := RateLimit(rl, ips)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for _, spoofed := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", spoofed)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
