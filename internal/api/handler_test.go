package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/pinetwork"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const paymentBody = `{"identifier":"P1","user_uid":"user-1","amount":24.99,"status":{"developer_approved":true,"transaction_verified":false,"developer_completed":false,"cancelled":false,"user_cancelled":false},"transaction":null}`

func newTestRouter(t *testing.T, upstream http.HandlerFunc, serverKey string) (*gin.Engine, *int64) {
	t.Helper()

	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		upstream(w, r)
	}))
	t.Cleanup(srv.Close)

	router := gin.New()
	handler := NewHandler(pinetwork.NewClient(srv.URL, serverKey), nil, nil)
	handler.SetupRoutes(router)
	return router, &hits
}

type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (f *fakeCache) CachePaymentStatus(ctx context.Context, paymentID string, payload []byte, ttl time.Duration) error {
	f.entries[paymentID] = payload
	return nil
}

func (f *fakeCache) GetCachedPaymentStatus(ctx context.Context, paymentID string) ([]byte, error) {
	return f.entries[paymentID], nil
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestApprovePaymentSuccessEchoesUpstream(t *testing.T) {
	router, hits := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/P1/approve", r.URL.Path)
		w.Write([]byte(paymentBody))
	}, "test-key")

	w := doJSON(router, http.MethodPost, "/api/pi/approve-payment", `{"paymentId":"P1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"identifier":"P1"`)
	assert.EqualValues(t, 1, *hits)
}

func TestApprovePaymentMissingID(t *testing.T) {
	router, hits := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(paymentBody))
	}, "test-key")

	w := doJSON(router, http.MethodPost, "/api/pi/approve-payment", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Payment ID is required")
	assert.EqualValues(t, 0, *hits, "upstream must not be called")
}

func TestMissingServerKeyNeverReachesUpstream(t *testing.T) {
	router, hits := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(paymentBody))
	}, "")

	w := doJSON(router, http.MethodPost, "/api/pi/approve-payment", `{"paymentId":"P1"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Server configuration error")
	assert.EqualValues(t, 0, *hits)
}

func TestUpstreamRejectionForwarded(t *testing.T) {
	router, _ := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"payment not found"}`))
	}, "test-key")

	w := doJSON(router, http.MethodPost, "/api/pi/approve-payment", `{"paymentId":"P-missing"}`)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to approve payment with Pi Network")
	assert.Contains(t, w.Body.String(), "payment not found")
}

func TestCompletePaymentRequiresBothFields(t *testing.T) {
	router, hits := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(paymentBody))
	}, "test-key")

	for _, body := range []string{`{}`, `{"paymentId":"P1"}`, `{"txid":"T1"}`} {
		w := doJSON(router, http.MethodPost, "/api/pi/complete-payment", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
		assert.Contains(t, w.Body.String(), "Payment ID and transaction ID are required")
	}
	assert.EqualValues(t, 0, *hits)
}

func TestCompletePaymentIsLocallyIdempotent(t *testing.T) {
	router, hits := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/P1/complete", r.URL.Path)
		w.Write([]byte(paymentBody))
	}, "test-key")

	// Repeated completes with the same (paymentId, txid) are simply
	// re-forwarded; business idempotence belongs to the upstream.
	for i := 0; i < 2; i++ {
		w := doJSON(router, http.MethodPost, "/api/pi/complete-payment", `{"paymentId":"P1","txid":"T1"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.EqualValues(t, 2, *hits)
}

func TestGetPayment(t *testing.T) {
	router, _ := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/P1", r.URL.Path)
		w.Write([]byte(paymentBody))
	}, "test-key")

	w := doJSON(router, http.MethodGet, "/api/pi/payments/P1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"identifier":"P1"`)
}

func TestGetPaymentServedFromCache(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte(paymentBody))
	}))
	t.Cleanup(srv.Close)

	router := gin.New()
	cache := newFakeCache()
	handler := NewHandler(pinetwork.NewClient(srv.URL, "test-key"), nil, cache)
	handler.SetupRoutes(router)

	first := doJSON(router, http.MethodGet, "/api/pi/payments/P1", "")
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(router, http.MethodGet, "/api/pi/payments/P1", "")
	require.Equal(t, http.StatusOK, second.Code)

	assert.EqualValues(t, 1, atomic.LoadInt64(&hits), "second read is served from cache")
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestGetPaymentFailureNotCached(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"payment not found"}`))
	}))
	t.Cleanup(srv.Close)

	router := gin.New()
	cache := newFakeCache()
	handler := NewHandler(pinetwork.NewClient(srv.URL, "test-key"), nil, cache)
	handler.SetupRoutes(router)

	for i := 0; i < 2; i++ {
		w := doJSON(router, http.MethodGet, "/api/pi/payments/P-missing", "")
		assert.Equal(t, http.StatusPaymentRequired, w.Code)
	}

	assert.EqualValues(t, 2, atomic.LoadInt64(&hits))
	assert.Empty(t, cache.entries)
}

func TestCancelPayment(t *testing.T) {
	router, _ := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/P1/cancel", r.URL.Path)
		w.Write([]byte(paymentBody))
	}, "test-key")

	w := doJSON(router, http.MethodPost, "/api/pi/cancel-payment", `{"paymentId":"P1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerifyUserMapsUnauthorized(t *testing.T) {
	router, _ := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
	}, "test-key")

	w := doJSON(router, http.MethodPost, "/api/pi/verify-user", `{"accessToken":"expired"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid or expired access token")
}

func TestVerifyUserMissingToken(t *testing.T) {
	router, hits := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {}, "test-key")

	w := doJSON(router, http.MethodPost, "/api/pi/verify-user", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Access token is required")
	assert.EqualValues(t, 0, *hits)
}

func TestPreflightAnsweredWithoutUpstream(t *testing.T) {
	router, hits := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(paymentBody))
	}, "test-key")

	req := httptest.NewRequest(http.MethodOptions, "/api/pi/approve-payment", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.EqualValues(t, 0, *hits)
}

func TestCORSHeadersOnResponses(t *testing.T) {
	router, _ := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(paymentBody))
	}, "test-key")

	w := doJSON(router, http.MethodPost, "/api/pi/approve-payment", `{"paymentId":"P1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {}, "test-key")

	for _, path := range []string{"/health", "/ready"} {
		w := doJSON(router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
