package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
	entitlementsvc "github.com/ivankudzin/nikah/backend/internal/services/entitlements"
	paymentsvc "github.com/ivankudzin/nikah/backend/internal/services/payments"
)

func TestEntitlementReturnsFlags(t *testing.T) {
	h := NewBillingHandler(&entitlementServiceStub{ent: model.Entitlement{
		UserID: 4,
		Tier:   enums.TierElevated,
		Status: enums.EntitlementStatusActive,
		Flags:  model.FeatureFlags{GuardianBadge: true, ElevatedInterestAllowance: 50},
	}}, nil, 0, nil)

	rr := httptest.NewRecorder()
	h.Entitlement(rr, authedRequest(http.MethodGet, "/entitlements", "", 4))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	var payload struct {
		Tier  string `json:"tier"`
		Flags struct {
			GuardianBadge             bool `json:"guardian_badge"`
			ElevatedInterestAllowance int  `json:"elevated_interest_allowance"`
		} `json:"feature_flags"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Tier != "elevated" || !payload.Flags.GuardianBadge || payload.Flags.ElevatedInterestAllowance != 50 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestCheckoutPassesIdempotencyHeader(t *testing.T) {
	svc := &entitlementServiceStub{session: model.CheckoutSession{SessionID: "cs_1", URL: "https://pay.example/cs_1"}}
	h := NewBillingHandler(svc, nil, 0, nil)

	req := authedRequest(http.MethodPost, "/billing/checkout", `{"tier":"standard"}`, 4)
	req.Header.Set("Idempotency-Key", "key-1")
	rr := httptest.NewRecorder()
	h.Checkout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	if svc.lastCheckout.Tier != "standard" || svc.lastCheckout.IdempotencyKey != "key-1" || svc.lastCheckout.UserID != 4 {
		t.Fatalf("unexpected checkout input: %+v", svc.lastCheckout)
	}
	if !strings.Contains(rr.Body.String(), "cs_1") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestCheckoutProviderFailureIsBadGateway(t *testing.T) {
	h := NewBillingHandler(&entitlementServiceStub{err: entitlementsvc.ExternalProviderError{
		Op:  "create checkout session",
		Err: errors.New("circuit breaker is open"),
	}}, nil, 0, nil)

	rr := httptest.NewRecorder()
	h.Checkout(rr, authedRequest(http.MethodPost, "/billing/checkout", `{"tier":"boost"}`, 4))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadGateway)
	}
}

func TestCancelMapsErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{entitlementsvc.ErrNoActiveSubscription, http.StatusConflict, "NO_ACTIVE_SUBSCRIPTION"},
		{entitlementsvc.ErrUnsupportedTier, http.StatusBadRequest, "UNSUPPORTED_TIER"},
		{fmt.Errorf("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		h := NewBillingHandler(&entitlementServiceStub{err: tc.err}, nil, 0, nil)
		rr := httptest.NewRecorder()
		h.Cancel(rr, authedRequest(http.MethodPost, "/billing/cancel", "", 4))

		if rr.Code != tc.status {
			t.Fatalf("%v: unexpected status: got %d want %d", tc.err, rr.Code, tc.status)
		}
		var payload struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if payload.Code != tc.code {
			t.Fatalf("%v: unexpected code: got %q want %q", tc.err, payload.Code, tc.code)
		}
	}
}

func TestCancelReadsImmediateFlag(t *testing.T) {
	svc := &entitlementServiceStub{}
	h := NewBillingHandler(svc, nil, 0, nil)

	rr := httptest.NewRecorder()
	h.Cancel(rr, authedRequest(http.MethodPost, "/billing/cancel", `{"immediate":true}`, 4))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	if !svc.lastImmediate {
		t.Fatalf("expected immediate cancel")
	}
}

func TestReactivateWithoutSubscriptionIsNotFound(t *testing.T) {
	h := NewBillingHandler(&entitlementServiceStub{err: entitlementsvc.ErrNoSubscription}, nil, 0, nil)

	rr := httptest.NewRecorder()
	h.Reactivate(rr, authedRequest(http.MethodPost, "/billing/reactivate", "", 4))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
}

func TestWebhookForwardsSignature(t *testing.T) {
	hooks := &webhookStub{result: paymentsvc.WebhookResult{
		EventID: "evt_1",
		Kind:    enums.BillingCheckoutCompleted,
		Handled: true,
	}}
	h := NewBillingHandler(nil, hooks, 0, nil)

	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rr := httptest.NewRecorder()
	h.Webhook(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	if hooks.signature != "t=1,v1=abc" || string(hooks.payload) != `{"id":"evt_1"}` {
		t.Fatalf("unexpected forwarded webhook: sig=%q payload=%q", hooks.signature, hooks.payload)
	}
	if !strings.Contains(rr.Body.String(), "checkout_completed") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestWebhookInvalidSignatureIsBadRequest(t *testing.T) {
	h := NewBillingHandler(nil, &webhookStub{err: fmt.Errorf("%w: bad signature", model.ErrValidation)}, 0, nil)

	rr := httptest.NewRecorder()
	h.Webhook(rr, httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestWebhookReconcileFailureIsRetryable(t *testing.T) {
	h := NewBillingHandler(nil, &webhookStub{err: errors.New("db down")}, 0, nil)

	rr := httptest.NewRecorder()
	h.Webhook(rr, httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{}`)))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	h := NewBillingHandler(nil, &webhookStub{}, 8, nil)

	rr := httptest.NewRecorder()
	h.Webhook(rr, httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{"id":"evt_too_long"}`)))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusRequestEntityTooLarge)
	}
}
