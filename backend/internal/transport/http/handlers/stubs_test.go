package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/nikah/backend/internal/domain/model"
	authsvc "github.com/ivankudzin/nikah/backend/internal/services/auth"
	entitlementsvc "github.com/ivankudzin/nikah/backend/internal/services/entitlements"
	interestsvc "github.com/ivankudzin/nikah/backend/internal/services/interests"
	paymentsvc "github.com/ivankudzin/nikah/backend/internal/services/payments"
)

type ledgerStub struct {
	sendResult interestsvc.SendResult
	sendErr    error
	lastSend   interestsvc.SendInput
	edges      []model.InterestEdge
	listErr    error
	snapshot   interestsvc.QuotaSnapshot
	withdrawn  int64
	withdraw   error
}

func (s *ledgerStub) SendInterest(_ context.Context, in interestsvc.SendInput) (interestsvc.SendResult, error) {
	s.lastSend = in
	return s.sendResult, s.sendErr
}

func (s *ledgerStub) ListReceived(context.Context, int64) ([]model.InterestEdge, error) {
	return s.edges, s.listErr
}

func (s *ledgerStub) ListSent(context.Context, int64) ([]model.InterestEdge, error) {
	return s.edges, s.listErr
}

func (s *ledgerStub) ListMatches(context.Context, int64) ([]model.InterestEdge, error) {
	return s.edges, s.listErr
}

func (s *ledgerStub) RemainingQuota(context.Context, int64) (interestsvc.QuotaSnapshot, error) {
	return s.snapshot, nil
}

func (s *ledgerStub) Withdraw(_ context.Context, _ int64, edgeID int64) error {
	s.withdrawn = edgeID
	return s.withdraw
}

type entitlementServiceStub struct {
	ent           model.Entitlement
	err           error
	session       model.CheckoutSession
	lastCheckout  entitlementsvc.CheckoutInput
	lastImmediate bool
}

func (s *entitlementServiceStub) Get(context.Context, int64) (model.Entitlement, error) {
	return s.ent, s.err
}

func (s *entitlementServiceStub) CreateCheckoutSession(_ context.Context, in entitlementsvc.CheckoutInput) (model.CheckoutSession, error) {
	s.lastCheckout = in
	return s.session, s.err
}

func (s *entitlementServiceStub) Cancel(_ context.Context, _ int64, immediate bool) error {
	s.lastImmediate = immediate
	return s.err
}

func (s *entitlementServiceStub) Reactivate(context.Context, int64) (model.Entitlement, error) {
	return s.ent, s.err
}

type webhookStub struct {
	result    paymentsvc.WebhookResult
	err       error
	payload   []byte
	signature string
}

func (s *webhookStub) HandleWebhook(_ context.Context, payload []byte, signature string) (paymentsvc.WebhookResult, error) {
	s.payload = payload
	s.signature = signature
	return s.result, s.err
}

func authedRequest(method, target, body string, userID int64) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{
		UserID: userID,
		SID:    "sid-test",
	}))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
