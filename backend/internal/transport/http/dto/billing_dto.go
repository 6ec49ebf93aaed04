package dto

import "time"

type FeatureFlagsResponse struct {
	UnlimitedInterestSending  bool `json:"unlimited_interest_sending"`
	CanSeeMedia               bool `json:"can_see_media"`
	PriorityMatching          bool `json:"priority_matching"`
	GuardianBadge             bool `json:"guardian_badge"`
	ElevatedInterestAllowance int  `json:"elevated_interest_allowance"`
}

type EntitlementResponse struct {
	UserID          int64                `json:"user_id"`
	Tier            string               `json:"tier"`
	Status          string               `json:"status"`
	HasSubscription bool                 `json:"has_subscription"`
	ValidFrom       *time.Time           `json:"valid_from,omitempty"`
	ValidUntil      *time.Time           `json:"valid_until,omitempty"`
	Flags           FeatureFlagsResponse `json:"feature_flags"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type CheckoutRequest struct {
	Tier       string `json:"tier"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type CancelRequest struct {
	Immediate bool `json:"immediate"`
}

type WebhookResponse struct {
	OK      bool   `json:"ok"`
	EventID string `json:"event_id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Handled bool   `json:"handled"`
}
