package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestWithRequestIDSetsHeaderAndContext(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	withRequestID(inner).ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
	require.Equal(t, rec.Header().Get(requestIDHeader), seen)
}

func TestWithRequestIDGeneratesDistinctIDsPerRequest(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := withRequestID(inner)

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, httptest.NewRequest(http.MethodGet, "/", nil))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEqual(t, rec1.Header().Get(requestIDHeader), rec2.Header().Get(requestIDHeader))
}

func TestRateLimitedAllowsWithinBudget(t *testing.T) {
	s := &Server{}
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	called := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called++ })

	handler := s.rateLimited(limiter, next)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/fetch-available-offers", nil))

	require.Equal(t, 1, called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitedRejectsOverBudget(t *testing.T) {
	s := &Server{}
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := s.rateLimited(limiter, next)

	rec1 := httptest.NewRecorder()
	handler(rec1, httptest.NewRequest(http.MethodPost, "/fetch-available-offers", nil))
	require.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler(rec2, httptest.NewRequest(http.MethodPost, "/fetch-available-offers", nil))
	require.Equal(t, http.StatusTooManyRequests, rec2.Code)
}
