package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/nikah/backend/internal/domain/model"
	authsvc "github.com/ivankudzin/nikah/backend/internal/services/auth"
	httperrors "github.com/ivankudzin/nikah/backend/internal/transport/http/errors"
)

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
	}
	return identity, ok
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeKindError maps the generic error kinds. It returns false when err is none of them.
func writeKindError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, model.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, model.ErrNotFound):
		httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, model.ErrConflict):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: "CONFLICT", Message: err.Error()})
	default:
		return false
	}
	return true
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
