package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/model"
	interestsvc "github.com/ivankudzin/nikah/backend/internal/services/interests"
	"github.com/ivankudzin/nikah/backend/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/nikah/backend/internal/transport/http/errors"
)

type InterestLedger interface {
	SendInterest(ctx context.Context, in interestsvc.SendInput) (interestsvc.SendResult, error)
	ListReceived(ctx context.Context, userID int64) ([]model.InterestEdge, error)
	ListSent(ctx context.Context, userID int64) ([]model.InterestEdge, error)
	ListMatches(ctx context.Context, userID int64) ([]model.InterestEdge, error)
	RemainingQuota(ctx context.Context, userID int64) (interestsvc.QuotaSnapshot, error)
	Withdraw(ctx context.Context, userID, edgeID int64) error
}

type InterestsHandler struct {
	service InterestLedger
	logger  *zap.Logger
}

func NewInterestsHandler(service InterestLedger, logger *zap.Logger) *InterestsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterestsHandler{service: service, logger: logger}
}

func (h *InterestsHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "INTERESTS_SERVICE_UNAVAILABLE", "interests service is unavailable")
		return
	}

	var req dto.SendInterestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.TargetID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id is required")
		return
	}

	result, err := h.service.SendInterest(r.Context(), interestsvc.SendInput{
		SourceUserID: identity.UserID,
		TargetUserID: req.TargetID,
		Kind:         req.Kind,
		Note:         req.Note,
	})
	if err != nil {
		h.writeError(w, err, "failed to send interest")
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.SendInterestResponse{
		Interest:  mapInterest(result.Edge),
		Mutual:    result.Mutual,
		Exempt:    result.Exempt,
		Remaining: result.Remaining,
		ResetAt:   result.ResetAt,
	})
}

func (h *InterestsHandler) Received(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, userID int64) ([]model.InterestEdge, error) {
		return h.service.ListReceived(ctx, userID)
	})
}

func (h *InterestsHandler) Sent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, userID int64) ([]model.InterestEdge, error) {
		return h.service.ListSent(ctx, userID)
	})
}

func (h *InterestsHandler) Matches(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, userID int64) ([]model.InterestEdge, error) {
		return h.service.ListMatches(ctx, userID)
	})
}

func (h *InterestsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "INTERESTS_SERVICE_UNAVAILABLE", "interests service is unavailable")
		return
	}

	edgeID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid interest id")
		return
	}

	if err := h.service.Withdraw(r.Context(), identity.UserID, edgeID); err != nil {
		h.writeError(w, err, "failed to withdraw interest")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *InterestsHandler) Quota(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "INTERESTS_SERVICE_UNAVAILABLE", "interests service is unavailable")
		return
	}

	snapshot, err := h.service.RemainingQuota(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, err, "failed to load quota")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.QuotaResponse{
		Remaining: snapshot.Remaining,
		Limit:     snapshot.Limit,
		Exempt:    snapshot.Exempt,
		ResetAt:   snapshot.ResetAt.UTC(),
	})
}

func (h *InterestsHandler) list(w http.ResponseWriter, r *http.Request, load func(context.Context, int64) ([]model.InterestEdge, error)) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "INTERESTS_SERVICE_UNAVAILABLE", "interests service is unavailable")
		return
	}

	edges, err := load(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, err, "failed to list interests")
		return
	}

	items := make([]dto.InterestResponse, 0, len(edges))
	for _, edge := range edges {
		items = append(items, mapInterest(edge))
	}
	httperrors.Write(w, http.StatusOK, dto.InterestListResponse{Items: items})
}

func (h *InterestsHandler) writeError(w http.ResponseWriter, err error, fallback string) {
	if qe, ok := interestsvc.IsQuotaExceeded(err); ok {
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.QuotaError{
			Code:            "QUOTA_EXCEEDED",
			Message:         "daily interest quota exceeded",
			Remaining:       qe.Remaining,
			ResetInSec:      qe.ResetInSec(),
			UpgradeRequired: true,
		})
		return
	}
	if tf, ok := interestsvc.IsTooFast(err); ok {
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "TOO_FAST",
			Message:       "too many interests, slow down",
			RetryAfterSec: tf.RetryAfter(),
		})
		return
	}

	switch {
	case errors.Is(err, interestsvc.ErrSelfInterest):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "SELF_INTEREST",
			Message: "cannot send interest to yourself",
		})
	case errors.Is(err, interestsvc.ErrDuplicateInterest):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "ALREADY_SENT",
			Message: "interest already sent",
		})
	case errors.Is(err, interestsvc.ErrTargetNotFound):
		httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
			Code:    "TARGET_NOT_FOUND",
			Message: "target profile not found",
		})
	case errors.Is(err, interestsvc.ErrInterestNotFound):
		httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
			Code:    "INTEREST_NOT_FOUND",
			Message: "interest not found",
		})
	default:
		if writeKindError(w, err) {
			return
		}
		h.logger.Error("interest request failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}

func mapInterest(edge model.InterestEdge) dto.InterestResponse {
	return dto.InterestResponse{
		ID:           edge.ID,
		SourceUserID: edge.SourceUserID,
		TargetUserID: edge.TargetUserID,
		Kind:         string(edge.Kind),
		Note:         edge.Note,
		Status:       string(edge.Status),
		Mutual:       edge.Mutual,
		CreatedAt:    edge.CreatedAt.UTC(),
	}
}
