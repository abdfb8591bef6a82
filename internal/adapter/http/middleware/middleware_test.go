package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"ledger-core/internal/core/ports"
	"ledger-core/internal/core/ports/mocks"
	"ledger-core/pkg/metrics"
	"ledger-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testGatewayCfg = GatewayAuthConfig{
	Secret:         "whsec_test",
	TimestampDrift: 60 * time.Second,
	NonceTTL:       120 * time.Second,
}

func gatewayRouter(sigSvc ports.SignatureService, nonceStore ports.NonceStore) *gin.Engine {
	router := gin.New()
	router.POST("/hook", GatewayAuth(testGatewayCfg, sigSvc, nonceStore, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	return router
}

func gatewayRequest(body, sig string, ts int64, nonce string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewBufferString(body))
	if sig != "" {
		req.Header.Set(HeaderSignature, sig)
	}
	if ts != 0 {
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	}
	if nonce != "" {
		req.Header.Set(HeaderNonce, nonce)
	}
	return req
}

func TestGatewayAuth_MissingHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := gatewayRouter(mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, gatewayRequest(`{}`, "", time.Now().Unix(), "n1"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGatewayAuth_ExpiredTimestamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := gatewayRouter(mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, gatewayRequest(`{}`, "sig", time.Now().Add(-120*time.Second).Unix(), "n1"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_003")
}

func TestGatewayAuth_BadSignatureKeepsNonce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)
	ts := time.Now().Unix()

	sigSvc.EXPECT().BuildCanonicalString("POST", "/hook", ts, "n1", `{}`).Return("canonical")
	sigSvc.EXPECT().Verify(testGatewayCfg.Secret, "canonical", "forged").Return(false)
	// nonceStore has no expectations: a forged call must not burn the nonce

	w := httptest.NewRecorder()
	gatewayRouter(sigSvc, nonceStore).ServeHTTP(w, gatewayRequest(`{}`, "forged", ts, "n1"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_002")
}

func TestGatewayAuth_ReplayedNonce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)
	ts := time.Now().Unix()

	sigSvc.EXPECT().BuildCanonicalString(gomock.Any(), gomock.Any(), ts, "n1", gomock.Any()).Return("canonical")
	sigSvc.EXPECT().Verify(gomock.Any(), "canonical", "sig").Return(true)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), gatewayNonceScope, "n1", testGatewayCfg.NonceTTL).Return(false, nil)

	w := httptest.NewRecorder()
	gatewayRouter(sigSvc, nonceStore).ServeHTTP(w, gatewayRequest(`{}`, "sig", ts, "n1"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_004")
}

func TestGatewayAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)
	ts := time.Now().Unix()
	body := `{"gateway_reference":"gw-1","status":"SUCCESS","amount":"20.00"}`

	gomock.InOrder(
		sigSvc.EXPECT().BuildCanonicalString("POST", "/hook", ts, "nonce-ok", body).Return("canonical"),
		sigSvc.EXPECT().Verify("whsec_test", "canonical", "valid_sig").Return(true),
		nonceStore.EXPECT().CheckAndSet(gomock.Any(), gatewayNonceScope, "nonce-ok", testGatewayCfg.NonceTTL).Return(true, nil),
	)

	var seenBody string
	router := gin.New()
	router.POST("/hook", GatewayAuth(testGatewayCfg, sigSvc, nonceStore, zerolog.Nop()), func(c *gin.Context) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(c.Request.Body)
		seenBody = buf.String()
		c.JSON(200, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, gatewayRequest(body, "valid_sig", ts, "nonce-ok"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, seenBody, "body must be readable after verification")
}

func TestGatewayAuth_NonceStoreDownAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)
	ts := time.Now().Unix()

	sigSvc.EXPECT().BuildCanonicalString(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("c")
	sigSvc.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, assert.AnError)

	w := httptest.NewRecorder()
	gatewayRouter(sigSvc, nonceStore).ServeHTTP(w, gatewayRequest(`{}`, "sig", ts, "n1"))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGatewayAuth_NoSecretConfigured(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := gin.New()
	router.POST("/hook", GatewayAuth(GatewayAuthConfig{TimestampDrift: time.Minute}, mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl), zerolog.Nop()), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, gatewayRequest(`{}`, "sig", time.Now().Unix(), "n1"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("bad_token").Return(nil, assert.AnError)

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer bad_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_003")
}

func TestJWTAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	actorID := uuid.New()
	tokenSvc.EXPECT().Validate("good_token").Return(&ports.TokenClaims{ActorID: actorID, Role: "staff"}, nil)

	var captured uuid.UUID
	var role string
	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		captured = ActorID(c)
		role = c.GetString(CtxActorRole)
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer good_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, actorID, captured)
	assert.Equal(t, "staff", role)
}

func TestActorID_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uuid.Nil, ActorID(c))
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		response.OK(c, gin.H{})
	})

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(response.HeaderRequestID, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-123", w.Header().Get(response.HeaderRequestID))
		var resp response.SuccessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "req-123", resp.RequestID)
	})

	t.Run("mints when absent or oversized", func(t *testing.T) {
		for _, given := range []string{"", strings.Repeat("x", 65)} {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if given != "" {
				req.Header.Set(response.HeaderRequestID, given)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			_, err := uuid.Parse(w.Header().Get(response.HeaderRequestID))
			assert.NoError(t, err)
		}
	})
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	router := gin.New()
	router.Use(Metrics(m))
	router.GET("/api/v1/payments/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+uuid.NewString(), nil))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	expected := `
# HELP ledger_http_requests_total Total HTTP requests.
# TYPE ledger_http_requests_total counter
ledger_http_requests_total{method="GET",route="/api/v1/payments/:id",status="200"} 3
ledger_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ledger_http_requests_total"))
}

func TestRecovery_PanicRecovered(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_001", resp["error_code"])
}
