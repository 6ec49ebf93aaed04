package errors

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RateLimitError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

// QuotaError is returned when the daily interest quota is spent.
type QuotaError struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	Remaining       int    `json:"remaining"`
	ResetInSec      int64  `json:"reset_in_sec"`
	UpgradeRequired bool   `json:"upgrade_required"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
