package dto

import "time"

type SendInterestRequest struct {
	TargetID int64  `json:"target_id"`
	Kind     string `json:"kind"`
	Note     string `json:"note"`
}

type InterestResponse struct {
	ID           int64     `json:"id"`
	SourceUserID int64     `json:"source_user_id"`
	TargetUserID int64     `json:"target_user_id"`
	Kind         string    `json:"kind"`
	Note         *string   `json:"note,omitempty"`
	Status       string    `json:"status"`
	Mutual       bool      `json:"mutual"`
	CreatedAt    time.Time `json:"created_at"`
}

type SendInterestResponse struct {
	Interest  InterestResponse `json:"interest"`
	Mutual    bool             `json:"mutual"`
	Exempt    bool             `json:"exempt"`
	Remaining int              `json:"remaining"`
	ResetAt   *time.Time       `json:"reset_at,omitempty"`
}

type InterestListResponse struct {
	Items []InterestResponse `json:"items"`
}

type QuotaResponse struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	Exempt    bool      `json:"exempt"`
	ResetAt   time.Time `json:"reset_at"`
}
