package dto

import (
	"testing"

	"ledger-core/internal/core/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	RegisterValidators(v)
	return v
}

func strPtr(s string) *string { return &s }

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CashFeeRequest{
		Amount:      "  12.50  ",
		Description: " printer paper ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "12.50", req.Amount)
	assert.Equal(t, "printer paper", req.Description)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := RefundRequest{Reason: "customer <script>alert('x')</script> request"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	req := TopupRequest{IdempotencyKey: strPtr("  topup-001  ")}
	SanitizeStruct(&req)

	assert.Equal(t, "topup-001", *req.IdempotencyKey)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := TopupRequest{Amount: "5"}
	SanitizeStruct(&req)
	assert.Nil(t, req.IdempotencyKey)
	assert.Nil(t, req.BranchID)
}

func TestSanitizeStruct_NestedOwner(t *testing.T) {
	req := CreatePaymentRequest{Sender: OwnerRef{ID: " " + uuid.NewString() + " ", Type: " USER_PROFILE "}}
	SanitizeStruct(&req)

	assert.Equal(t, "USER_PROFILE", req.Sender.Type)
	_, err := uuid.Parse(req.Sender.ID)
	assert.NoError(t, err)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID(t *testing.T) {
	valid := []string{"ref-001", "REF_002", "a.b.c", "simple123", "ABC-def_GHI.123"}
	for _, tc := range valid {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
	invalid := []string{"ref 001", "ref<001>", "ref;DROP", "", "ref\n001"}
	for _, tc := range invalid {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestMoneyTag(t *testing.T) {
	v := newValidator()
	type probe struct {
		Amount string `binding:"money"`
	}
	cases := map[string]bool{
		"100":    true,
		"0.01":   true,
		"12.50":  true,
		"0":      false,
		"-5":     false,
		"1.005":  false,
		"abc":    false,
		"":       false,
		"99.999": false,
	}
	for amount, ok := range cases {
		err := v.Struct(probe{Amount: amount})
		if ok {
			assert.NoError(t, err, amount)
		} else {
			assert.Error(t, err, amount)
		}
	}
}

func TestCreatePaymentRequest_Validation(t *testing.T) {
	v := newValidator()
	valid := func() CreatePaymentRequest {
		return CreatePaymentRequest{
			Amount:   "10.00",
			Sender:   OwnerRef{ID: uuid.NewString(), Type: "USER_PROFILE"},
			Receiver: OwnerRef{ID: uuid.NewString(), Type: "BRANCH"},
			Method:   "WALLET",
		}
	}
	require.NoError(t, v.Struct(valid()))

	tests := []struct {
		name   string
		mutate func(*CreatePaymentRequest)
	}{
		{"bad method", func(r *CreatePaymentRequest) { r.Method = "CARD" }},
		{"bad owner type", func(r *CreatePaymentRequest) { r.Sender.Type = "MERCHANT" }},
		{"bad owner id", func(r *CreatePaymentRequest) { r.Receiver.ID = "nope" }},
		{"unsafe key", func(r *CreatePaymentRequest) { r.IdempotencyKey = strPtr("a b") }},
		{"three decimals", func(r *CreatePaymentRequest) { r.Amount = "1.234" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			assert.Error(t, v.Struct(r))
		})
	}
}

func TestGatewayCallbackRequest_AmountRequiredOnSuccess(t *testing.T) {
	v := newValidator()

	assert.Error(t, v.Struct(GatewayCallbackRequest{GatewayReference: "gw-1", Status: "SUCCESS"}))
	assert.NoError(t, v.Struct(GatewayCallbackRequest{GatewayReference: "gw-1", Status: "SUCCESS", Amount: "20.00"}))
	assert.NoError(t, v.Struct(GatewayCallbackRequest{GatewayReference: "gw-1", Status: "FAILED", FailureReason: "declined"}))
}

func TestToPort_Conversions(t *testing.T) {
	actor := uuid.New()
	branch := uuid.New()
	top := TopupRequest{
		Owner:    OwnerRef{ID: uuid.NewString(), Type: "USER_PROFILE"},
		Amount:   "40.25",
		BranchID: strPtr(branch.String()),
	}
	req, err := top.ToPort(actor)
	require.NoError(t, err)
	assert.True(t, req.Amount.Equal(domain.MustParseMoney("40.25")))
	require.NotNil(t, req.BranchID)
	assert.Equal(t, branch, *req.BranchID)
	assert.Equal(t, actor, req.ActorID)

	refund := RefundRequest{}
	rr, err := refund.ToPort(uuid.New(), actor)
	require.NoError(t, err)
	assert.Nil(t, rr.Amount)

	split := SplitPaymentRequest{Legs: []SplitLegRequest{
		{Receiver: OwnerRef{ID: uuid.NewString(), Type: "BRANCH"}, Amount: "3"},
		{Receiver: OwnerRef{ID: "broken", Type: "BRANCH"}, Amount: "2"},
	}}
	_, err = split.ToPort(uuid.New(), actor)
	assert.ErrorContains(t, err, "leg 1")
}
