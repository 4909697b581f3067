package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"velora/internal/util"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
	})
}

func TestAuthMiddleware(t *testing.T) {
	valid, err := util.SignJWT("u1", "u1@example.com", testSecret, time.Hour)
	require.NoError(t, err)
	forged, err := util.SignJWT("u1", "u1@example.com", "other-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "u1"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "u1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/followups", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AuthMiddleware(testSecret, zerolog.Nop())(echoUser()).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestPubSubAuthMiddleware(t *testing.T) {
	t.Run("local dev skips validation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		PubSubAuthMiddleware(true, "", "", zerolog.Nop())(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest/email", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("misconfigured audience denies", func(t *testing.T) {
		rec := httptest.NewRecorder()
		PubSubAuthMiddleware(false, "", "", zerolog.Nop())(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest/email", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		PubSubAuthMiddleware(false, "https://api.velora.app", "push@velora.iam.gserviceaccount.com", zerolog.Nop())(echoUser()).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest/email", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLoggerMiddleware_RequestID(t *testing.T) {
	handler := LoggerMiddleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}
