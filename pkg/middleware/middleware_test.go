package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httputil "bikerent/pkg/http"
	"bikerent/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Output: io.Discard})
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
	})
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret, testLogger())
	h := Authenticate(auth, PublicReads("/api/v1/vehicles"))(echoUser())

	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		UserIDClaim: "user-1",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		UserIDClaim: "user-1",
		"exp":       time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{UserIDClaim: "user-1"})
	noUser := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "user-1"})

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", http.MethodPost, "/api/v1/bookings", "Bearer " + valid, http.StatusOK, "user-1"},
		{"lowercase scheme", http.MethodPost, "/api/v1/bookings", "bearer " + valid, http.StatusOK, "user-1"},
		{"missing header", http.MethodPost, "/api/v1/bookings", "", http.StatusUnauthorized, ""},
		{"not bearer", http.MethodPost, "/api/v1/bookings", "Basic abc", http.StatusUnauthorized, ""},
		{"expired", http.MethodPost, "/api/v1/bookings", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong key", http.MethodPost, "/api/v1/bookings", "Bearer " + wrongKey, http.StatusUnauthorized, ""},
		{"missing userId claim", http.MethodPost, "/api/v1/bookings", "Bearer " + noUser, http.StatusUnauthorized, ""},
		{"public read", http.MethodGet, "/api/v1/vehicles/search", "", http.StatusOK, ""},
		{"public read with token still anonymous", http.MethodGet, "/api/v1/vehicles", "Bearer " + valid, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestAuthenticator_RejectsNoneAlgorithm(t *testing.T) {
	auth := NewAuthenticator(testSecret, testLogger())
	token := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{UserIDClaim: "user-1"})

	_, err := auth.UserID("Bearer " + token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, nil, testLogger())
	defer rl.Stop()

	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("user:a"))
	assert.True(t, rl.Allow("user:a"))
	assert.False(t, rl.Allow("user:a"))
	assert.True(t, rl.Allow("user:b"))
	assert.True(t, rl.Allow(""))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("user:a"))
}

func TestRateLimit_RejectsWith429(t *testing.T) {
	rl := NewRateLimiter(1, 30*time.Second, nil, testLogger())
	defer rl.Stop()
	h := RateLimit(rl)(echoUser())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "request %d", i)
		if want == http.StatusTooManyRequests {
			assert.Equal(t, "30", rec.Header().Get("Retry-After"))
		}
	}
}

func TestUserOrIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.4:1234"
	assert.Equal(t, "ip:192.168.1.4", UserOrIPKey(req))

	req = req.WithContext(WithUserID(req.Context(), "u-9"))
	assert.Equal(t, "user:u-9", UserOrIPKey(req))
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	calls := 0
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"b-1"}`))
	}))

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyKeyHeader, "k-1")
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("u-1")
	second := send("u-1")
	other := send("u-2")

	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(IdempotentReplayHeader))
	assert.Empty(t, other.Header().Get(IdempotentReplayHeader))
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	calls := 0
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		req.Header.Set(IdempotencyKeyHeader, "k-1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestInMemoryIdempotencyStore_Expires(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	store.Set("k", &CachedResponse{StatusCode: http.StatusOK})

	_, ok := store.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = store.Get("k")
	assert.False(t, ok)
}

func TestContentTypeValidation(t *testing.T) {
	h := ContentTypeValidation(testLogger())(echoUser())

	tests := []struct {
		name        string
		body        string
		contentType string
		want        int
	}{
		{"json", `{}`, "application/json; charset=utf-8", http.StatusOK},
		{"form", `a=b`, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"missing", `{}`, "", http.StatusUnsupportedMediaType},
		{"empty body", ``, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	h := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "TIMEOUT")
}

func TestRequestTimeout_LateHandlerWriteIsDropped(t *testing.T) {
	lateErr := make(chan error, 1)
	h := RequestTimeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(5 * time.Millisecond)
		w.Header().Set("X-Late", "yes")
		lateErr <- httputil.WriteSuccess(w, map[string]string{"status": "late"})
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	select {
	case err := <-lateErr:
		assert.ErrorIs(t, err, http.ErrHandlerTimeout)
	case <-time.After(time.Second):
		t.Fatal("handler never finished")
	}
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "TIMEOUT")
	assert.NotContains(t, rec.Body.String(), "late")
	assert.Empty(t, rec.Header().Get("X-Late"))
}

func TestRequestTimeout_CopiesResponseWithinDeadline(t *testing.T) {
	h := RequestTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Booking", "b-1")
		_ = httputil.WriteJSON(w, http.StatusCreated, map[string]string{"id": "b-1"})
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "b-1", rec.Header().Get("X-Booking"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"b-1"}`, rec.Body.String())
}

func TestRequestTimeout_ImplicitOK(t *testing.T) {
	h := RequestTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRequestLogging_PropagatesRequestID(t *testing.T) {
	var seen string
	h := RequestLogging(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestMaxRequestSize(t *testing.T) {
	h := MaxRequestSize(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
