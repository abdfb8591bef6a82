package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"ledger-core/internal/adapter/http/middleware"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/internal/core/ports/mocks"
	"ledger-core/internal/service"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testToken = "good_token"

type fixture struct {
	router   *gin.Engine
	payments *mocks.MockPaymentService
	wallets  *mocks.MockWalletService
	nonces   *mocks.MockNonceStore
	actor    uuid.UUID
}

func newFixture(t *testing.T, tweak ...func(*RouterDeps)) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		payments: mocks.NewMockPaymentService(ctrl),
		wallets:  mocks.NewMockWalletService(ctrl),
		nonces:   mocks.NewMockNonceStore(ctrl),
		actor:    uuid.New(),
	}

	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate(testToken).Return(&ports.TokenClaims{ActorID: f.actor, Role: "staff"}, nil).AnyTimes()
	tokens.EXPECT().Validate(gomock.Not(testToken)).Return(nil, errors.New("bad token")).AnyTimes()

	deps := RouterDeps{
		PaymentSvc: f.payments,
		WalletSvc:  f.wallets,
		TokenSvc:   tokens,
		SigSvc:     service.NewHMACSignatureService(),
		NonceStore: f.nonces,
		Gateway: middleware.GatewayAuthConfig{
			Secret:         "whsec_test",
			TimestampDrift: time.Minute,
			NonceTTL:       2 * time.Minute,
		},
		Logger: zerolog.Nop(),
	}
	for _, fn := range tweak {
		fn(&deps)
	}
	f.router = SetupRouter(deps)
	return f
}

func (f *fixture) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	RequestID string          `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func samplePayment(status domain.PaymentStatus) *domain.Payment {
	return &domain.Payment{
		ID:           uuid.New(),
		Amount:       domain.MustParseMoney("10.00"),
		SenderID:     uuid.New(),
		SenderType:   domain.OwnerTypeUserProfile,
		ReceiverID:   uuid.New(),
		ReceiverType: domain.OwnerTypeBranch,
		Status:       status,
		Method:       domain.PaymentMethodWallet,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

func createBody(sender, receiver uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"amount":   "10.00",
		"sender":   map[string]string{"id": sender.String(), "type": "USER_PROFILE"},
		"receiver": map[string]string{"id": receiver.String(), "type": "BRANCH"},
		"method":   "WALLET",
		"reason":   "tuition <b>fee</b>",
	}
}

// --- Payment Handler Tests ---

func TestCreatePayment_Success(t *testing.T) {
	f := newFixture(t)
	sender, receiver := uuid.New(), uuid.New()
	created := samplePayment(domain.PaymentStatusPending)

	f.payments.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreatePaymentRequest) (*domain.Payment, error) {
			assert.True(t, req.Amount.Equal(domain.MustParseMoney("10")))
			assert.Equal(t, domain.Owner{ID: sender, Type: domain.OwnerTypeUserProfile}, req.Sender)
			assert.Equal(t, domain.Owner{ID: receiver, Type: domain.OwnerTypeBranch}, req.Receiver)
			assert.Equal(t, domain.PaymentMethodWallet, req.Method)
			assert.Equal(t, "tuition &lt;b&gt;fee&lt;/b&gt;", req.Reason)
			assert.Equal(t, f.actor, req.ActorID)
			require.NotNil(t, req.IdempotencyKey)
			assert.Equal(t, "order-42", *req.IdempotencyKey)
			return created, nil
		},
	)

	w := f.do(http.MethodPost, "/api/v1/payments", createBody(sender, receiver), HeaderIdempotencyKey, "order-42")

	assert.Equal(t, http.StatusCreated, w.Code)
	var got domain.Payment
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "10.00", got.Amount.String())
}

func TestCreatePayment_BodyKeyWinsOverHeader(t *testing.T) {
	f := newFixture(t)
	body := createBody(uuid.New(), uuid.New())
	body["idempotency_key"] = "from-body"

	f.payments.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreatePaymentRequest) (*domain.Payment, error) {
			assert.Equal(t, "from-body", *req.IdempotencyKey)
			return samplePayment(domain.PaymentStatusPending), nil
		},
	)

	w := f.do(http.MethodPost, "/api/v1/payments", body, HeaderIdempotencyKey, "from-header")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreatePayment_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]interface{})
		headers []string
	}{
		{"zero amount", func(b map[string]interface{}) { b["amount"] = "0" }, nil},
		{"three decimals", func(b map[string]interface{}) { b["amount"] = "1.001" }, nil},
		{"unknown method", func(b map[string]interface{}) { b["method"] = "CARD" }, nil},
		{"bad sender type", func(b map[string]interface{}) {
			b["sender"] = map[string]string{"id": uuid.NewString(), "type": "MERCHANT"}
		}, nil},
		{"missing receiver", func(b map[string]interface{}) { delete(b, "receiver") }, nil},
		{"unsafe header key", func(map[string]interface{}) {}, []string{HeaderIdempotencyKey, "has space"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			body := createBody(uuid.New(), uuid.New())
			tt.mutate(body)

			w := f.do(http.MethodPost, "/api/v1/payments", body, tt.headers...)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, apperror.CodeValidation, decode(t, w).ErrorCode)
		})
	}
}

func TestCreatePayment_EmptyBody(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/payments", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "request body is required")
}

func TestCreatePayment_ServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"insufficient funds", apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, apperror.CodeInsufficientFunds},
		{"key reuse", apperror.ErrIdempotencyKeyReuse(), http.StatusUnprocessableEntity, apperror.CodeIdempotencyKeyReuse},
		{"lock timeout", apperror.ErrLockTimeout(context.DeadlineExceeded), http.StatusServiceUnavailable, apperror.CodeLockTimeout},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, apperror.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.payments.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w := f.do(http.MethodPost, "/api/v1/payments", createBody(uuid.New(), uuid.New()))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decode(t, w).ErrorCode)
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}

func TestCreatePayment_RequiresToken(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetPayment(t *testing.T) {
	f := newFixture(t)
	p := samplePayment(domain.PaymentStatusCompleted)
	f.payments.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)
	missing := uuid.New()
	f.payments.EXPECT().GetPayment(gomock.Any(), missing).Return(nil, apperror.ErrPaymentNotFound())

	w := f.do(http.MethodGet, "/api/v1/payments/"+p.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/payments/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decode(t, w).ErrorCode)

	w = f.do(http.MethodGet, "/api/v1/payments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentLegs(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.payments.EXPECT().ListPaymentLegs(gomock.Any(), id).Return(&ports.PaymentLegs{
		Legs:     []*domain.Transaction{},
		CashLegs: []*domain.CashTransaction{},
	}, nil)

	w := f.do(http.MethodGet, "/api/v1/payments/"+id.String()+"/legs", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"legs":[],"cash_legs":[]}`, string(decode(t, w).Data))
}

func TestCompleteAndCancel(t *testing.T) {
	f := newFixture(t)
	p := samplePayment(domain.PaymentStatusCompleted)
	f.payments.EXPECT().CompletePayment(gomock.Any(), p.ID, f.actor).Return(p, nil)
	f.payments.EXPECT().CancelPayment(gomock.Any(), p.ID, f.actor).
		Return(nil, apperror.ErrInvalidStateTransition("REFUNDED", "CANCELLED"))

	w := f.do(http.MethodPost, "/api/v1/payments/"+p.ID.String()+"/complete", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/payments/"+p.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeInvalidStateTransition, decode(t, w).ErrorCode)
}

func TestRefund(t *testing.T) {
	t.Run("full refund without body", func(t *testing.T) {
		f := newFixture(t)
		id := uuid.New()
		f.payments.EXPECT().RefundInternalPayment(gomock.Any(), ports.RefundRequest{PaymentID: id, ActorID: f.actor}).
			Return(samplePayment(domain.PaymentStatusRefunded), nil)

		w := f.do(http.MethodPost, "/api/v1/payments/"+id.String()+"/refund", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("amount and reason", func(t *testing.T) {
		f := newFixture(t)
		id := uuid.New()
		f.payments.EXPECT().RefundInternalPayment(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req ports.RefundRequest) (*domain.Payment, error) {
				require.NotNil(t, req.Amount)
				assert.Equal(t, "4.00", req.Amount.String())
				assert.Equal(t, "duplicate charge", req.Reason)
				return nil, apperror.ErrRefundAmountExceedsPayment()
			},
		)

		w := f.do(http.MethodPost, "/api/v1/payments/"+id.String()+"/refund",
			map[string]string{"amount": "4", "reason": "duplicate charge"})
		assert.Equal(t, apperror.CodeRefundAmountExceedsPayment, decode(t, w).ErrorCode)
	})
}

func TestSplit(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	r1, r2 := uuid.New(), uuid.New()
	f.payments.EXPECT().ProcessSplitPayment(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.SplitPaymentRequest) (*domain.Payment, error) {
			assert.Equal(t, id, req.PaymentID)
			require.Len(t, req.Legs, 2)
			assert.Equal(t, r1, req.Legs[0].Receiver.ID)
			assert.Equal(t, domain.OwnerTypeCenter, req.Legs[1].Receiver.Type)
			return samplePayment(domain.PaymentStatusCompleted), nil
		},
	)

	body := map[string]interface{}{"legs": []map[string]interface{}{
		{"receiver": map[string]string{"id": r1.String(), "type": "BRANCH"}, "amount": "6.00"},
		{"receiver": map[string]string{"id": r2.String(), "type": "CENTER"}, "amount": "4.00"},
	}}
	w := f.do(http.MethodPost, "/api/v1/payments/"+id.String()+"/split", body)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/payments/"+id.String()+"/split", map[string]interface{}{"legs": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Wallet Handler Tests ---

func TestTopup(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	branch := uuid.New()
	f.wallets.EXPECT().ProcessWalletTopup(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.TopupRequest) (*domain.Payment, error) {
			assert.Equal(t, owner, req.Owner.ID)
			require.NotNil(t, req.BranchID)
			assert.Equal(t, branch, *req.BranchID)
			assert.Equal(t, "cash-7", *req.IdempotencyKey)
			return samplePayment(domain.PaymentStatusCompleted), nil
		},
	)

	w := f.do(http.MethodPost, "/api/v1/wallets/topup", map[string]interface{}{
		"owner":     map[string]string{"id": owner.String(), "type": "USER_PROFILE"},
		"amount":    "50",
		"branch_id": branch.String(),
	}, HeaderIdempotencyKey, "cash-7")

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	from, to := uuid.New(), uuid.New()
	f.wallets.EXPECT().ProcessWalletTransfer(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrTransferDifferentUsers())

	w := f.do(http.MethodPost, "/api/v1/wallets/transfer", map[string]interface{}{
		"from_profile_id": from.String(),
		"to_profile_id":   to.String(),
		"from_user_id":    uuid.NewString(),
		"to_user_id":      uuid.NewString(),
		"amount":          "5.00",
	})

	assert.Equal(t, apperror.CodeTransferDifferentUsers, decode(t, w).ErrorCode)
}

func TestGetWallet(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	wallet := &domain.Wallet{
		ID:            uuid.New(),
		OwnerID:       owner,
		OwnerType:     domain.OwnerTypeUserProfile,
		Balance:       domain.MustParseMoney("30"),
		LockedBalance: domain.MustParseMoney("20"),
	}
	f.wallets.EXPECT().GetWallet(gomock.Any(), domain.Owner{ID: owner, Type: domain.OwnerTypeUserProfile}).Return(wallet, nil)

	w := f.do(http.MethodGet, "/api/v1/wallets/user_profile/"+owner.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, "30.00", got["available"])
	assert.Equal(t, "50.00", got["book_balance"])
	assert.Equal(t, "20.00", got["locked_balance"])

	w = f.do(http.MethodGet, "/api/v1/wallets/MERCHANT/"+owner.String(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCashbox(t *testing.T) {
	f := newFixture(t)
	branch := uuid.New()
	f.wallets.EXPECT().GetCashbox(gomock.Any(), branch).Return(&domain.Cashbox{BranchID: branch, Balance: domain.MustParseMoney("12")}, nil)
	f.wallets.EXPECT().RecordCashFee(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CashFeeRequest) (*domain.CashTransaction, error) {
			assert.Equal(t, branch, req.BranchID)
			assert.Equal(t, "courier", req.Description)
			assert.Equal(t, f.actor, req.ActorID)
			return &domain.CashTransaction{ID: uuid.New()}, nil
		},
	)

	w := f.do(http.MethodGet, "/api/v1/cashboxes/"+branch.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/cashboxes/"+branch.String()+"/fees",
		map[string]string{"amount": "3.50", "description": " courier "})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodPost, "/api/v1/cashboxes/"+branch.String()+"/fees", map[string]string{"amount": "3.50"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Gateway Webhook Tests ---

func signedWebhook(t *testing.T, f *fixture, body string, nonce string) *httptest.ResponseRecorder {
	t.Helper()
	sig := service.NewHMACSignatureService()
	ts := time.Now().Unix()
	canonical := sig.BuildCanonicalString(http.MethodPost, "/api/v1/gateway/webhook", ts, nonce, body)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/gateway/webhook", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderSignature, sig.Sign("whsec_test", canonical))
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderNonce, nonce)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestGatewayWebhook_Success(t *testing.T) {
	f := newFixture(t)
	body := `{"gateway_reference":"gw-123","status":"SUCCESS","amount":"25.00"}`
	f.nonces.EXPECT().CheckAndSet(gomock.Any(), "gateway", "nonce-1", 2*time.Minute).Return(true, nil)
	f.payments.EXPECT().ProcessExternalPaymentCompletion(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.ExternalCompletionRequest) (*domain.Payment, error) {
			assert.Equal(t, "gw-123", req.GatewayReference)
			assert.Equal(t, ports.ExternalStatusSuccess, req.Status)
			assert.Equal(t, "25.00", req.Amount.String())
			return samplePayment(domain.PaymentStatusCompleted), nil
		},
	)

	w := signedWebhook(t, f, body, "nonce-1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGatewayWebhook_TamperedBody(t *testing.T) {
	f := newFixture(t)
	sig := service.NewHMACSignatureService()
	ts := time.Now().Unix()
	signed := `{"gateway_reference":"gw-123","status":"SUCCESS","amount":"25.00"}`
	sent := `{"gateway_reference":"gw-123","status":"SUCCESS","amount":"2500.00"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/gateway/webhook", bytes.NewReader([]byte(sent)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderSignature, sig.Sign("whsec_test",
		sig.BuildCanonicalString(http.MethodPost, "/api/v1/gateway/webhook", ts, "n", signed)))
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderNonce, "n")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGatewayWebhook_FailedNeedsNoAmount(t *testing.T) {
	f := newFixture(t)
	f.nonces.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	f.payments.EXPECT().ProcessExternalPaymentCompletion(gomock.Any(), ports.ExternalCompletionRequest{
		GatewayReference: "gw-9",
		Status:           ports.ExternalStatusFailed,
		FailureReason:    "card declined",
	}).Return(samplePayment(domain.PaymentStatusFailed), nil)

	w := signedWebhook(t, f, `{"gateway_reference":"gw-9","status":"FAILED","failure_reason":"card declined"}`, "nonce-2")
	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Cross-cutting ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockHealthChecker(ctrl)
	up.EXPECT().Name().Return("postgres").AnyTimes()
	up.EXPECT().Ping(gomock.Any()).Return(nil).AnyTimes()
	down := mocks.NewMockHealthChecker(ctrl)
	down.EXPECT().Name().Return("redis").AnyTimes()
	down.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused")).AnyTimes()

	f := newFixture(t, func(d *RouterDeps) { d.HealthCheckers = []ports.HealthChecker{up} })
	w := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	f = newFixture(t, func(d *RouterDeps) { d.HealthCheckers = []ports.HealthChecker{up, down} })
	w = f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	f := newFixture(t, func(d *RouterDeps) { d.Metrics = m })
	f.payments.EXPECT().GetPayment(gomock.Any(), gomock.Any()).Return(samplePayment(domain.PaymentStatusPending), nil)

	f.do(http.MethodGet, "/api/v1/payments/"+uuid.NewString(), nil)
	w := f.do(http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ledger_http_requests_total{method="GET",route="/api/v1/payments/:id",status="200"} 1`)
}

func TestAuditedThroughRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	audit := mocks.NewMockAuditService(ctrl)
	f := newFixture(t, func(d *RouterDeps) { d.AuditSvc = audit })
	p := samplePayment(domain.PaymentStatusPending)

	f.payments.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(p, nil)
	audit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionPaymentCreate, entry.Action)
		assert.Equal(t, p.ID.String(), entry.ResourceID)
		require.NotNil(t, entry.ActorID)
		assert.Equal(t, f.actor, *entry.ActorID)
	})

	w := f.do(http.MethodPost, "/api/v1/payments", createBody(uuid.New(), uuid.New()))
	assert.Equal(t, http.StatusCreated, w.Code)
}
