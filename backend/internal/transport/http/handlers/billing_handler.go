package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/model"
	entitlementsvc "github.com/ivankudzin/nikah/backend/internal/services/entitlements"
	paymentsvc "github.com/ivankudzin/nikah/backend/internal/services/payments"
	"github.com/ivankudzin/nikah/backend/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/nikah/backend/internal/transport/http/errors"
)

const (
	signatureHeader        = "Stripe-Signature"
	defaultMaxWebhookBytes = 65536
)

type EntitlementService interface {
	Get(ctx context.Context, userID int64) (model.Entitlement, error)
	CreateCheckoutSession(ctx context.Context, in entitlementsvc.CheckoutInput) (model.CheckoutSession, error)
	Cancel(ctx context.Context, userID int64, immediate bool) error
	Reactivate(ctx context.Context, userID int64) (model.Entitlement, error)
}

type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (paymentsvc.WebhookResult, error)
}

type BillingHandler struct {
	entitlements    EntitlementService
	webhooks        WebhookProcessor
	maxWebhookBytes int64
	logger          *zap.Logger
}

func NewBillingHandler(entitlements EntitlementService, webhooks WebhookProcessor, maxWebhookBytes int64, logger *zap.Logger) *BillingHandler {
	if maxWebhookBytes <= 0 {
		maxWebhookBytes = defaultMaxWebhookBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingHandler{
		entitlements:    entitlements,
		webhooks:        webhooks,
		maxWebhookBytes: maxWebhookBytes,
		logger:          logger,
	}
}

func (h *BillingHandler) Entitlement(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	ent, err := h.entitlements.Get(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, err, "failed to load entitlement")
		return
	}

	httperrors.Write(w, http.StatusOK, mapEntitlement(ent))
}

func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	var req dto.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	session, err := h.entitlements.CreateCheckoutSession(r.Context(), entitlementsvc.CheckoutInput{
		UserID:         identity.UserID,
		Tier:           req.Tier,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeError(w, err, "failed to create checkout session")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutResponse{
		SessionID: session.SessionID,
		URL:       session.URL,
	})
}

func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	var req dto.CancelRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.entitlements.Cancel(r.Context(), identity.UserID, req.Immediate); err != nil {
		h.writeError(w, err, "failed to cancel subscription")
		return
	}

	httperrors.Write(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *BillingHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	ent, err := h.entitlements.Reactivate(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, err, "failed to reactivate subscription")
		return
	}

	httperrors.Write(w, http.StatusOK, mapEntitlement(ent))
}

// Webhook is unauthenticated; the provider signature is the credential.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperrors.Write(w, http.StatusRequestEntityTooLarge, httperrors.APIError{
				Code:    "PAYLOAD_TOO_LARGE",
				Message: "webhook payload too large",
			})
			return
		}
		writeBadRequest(w, "VALIDATION_ERROR", "failed to read webhook body")
		return
	}

	result, err := h.webhooks.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader))
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			writeBadRequest(w, "INVALID_WEBHOOK", "webhook could not be verified")
			return
		}
		h.logger.Error("billing webhook failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "failed to process webhook")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.WebhookResponse{
		OK:      true,
		EventID: result.EventID,
		Kind:    string(result.Kind),
		Handled: result.Handled,
	})
}

func (h *BillingHandler) writeError(w http.ResponseWriter, err error, fallback string) {
	if _, ok := entitlementsvc.IsExternalProvider(err); ok {
		h.logger.Warn("billing provider call failed", zap.Error(err))
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "PROVIDER_UNAVAILABLE",
			Message: "billing provider is unavailable",
		})
		return
	}

	switch {
	case errors.Is(err, entitlementsvc.ErrUnsupportedTier):
		writeBadRequest(w, "UNSUPPORTED_TIER", "tier cannot be purchased")
	case errors.Is(err, entitlementsvc.ErrNoActiveSubscription):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "NO_ACTIVE_SUBSCRIPTION",
			Message: "no active subscription",
		})
	case errors.Is(err, entitlementsvc.ErrNoSubscription):
		httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
			Code:    "NO_SUBSCRIPTION",
			Message: "no subscription to reactivate",
		})
	case errors.Is(err, entitlementsvc.ErrIdentityNotFound):
		httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
			Code:    "PROFILE_NOT_FOUND",
			Message: "profile not found",
		})
	default:
		if writeKindError(w, err) {
			return
		}
		h.logger.Error("billing request failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}

func mapEntitlement(ent model.Entitlement) dto.EntitlementResponse {
	return dto.EntitlementResponse{
		UserID:          ent.UserID,
		Tier:            string(ent.Tier),
		Status:          string(ent.Status),
		HasSubscription: ent.HasSubscription(),
		ValidFrom:       ent.ValidFrom,
		ValidUntil:      ent.ValidUntil,
		Flags: dto.FeatureFlagsResponse{
			UnlimitedInterestSending:  ent.Flags.UnlimitedInterestSending,
			CanSeeMedia:               ent.Flags.CanSeeMedia,
			PriorityMatching:          ent.Flags.PriorityMatching,
			GuardianBadge:             ent.Flags.GuardianBadge,
			ElevatedInterestAllowance: ent.Flags.ElevatedInterestAllowance,
		},
		UpdatedAt: ent.UpdatedAt,
	}
}
