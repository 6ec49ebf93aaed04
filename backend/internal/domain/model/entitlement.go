package model

import (
	"time"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
)

type FeatureFlags struct {
	UnlimitedInterestSending  bool `json:"unlimited_interest_sending"`
	CanSeeMedia               bool `json:"can_see_media"`
	PriorityMatching          bool `json:"priority_matching"`
	GuardianBadge             bool `json:"guardian_badge"`
	ElevatedInterestAllowance int  `json:"elevated_interest_allowance"`
}

type Entitlement struct {
	UserID                  int64                   `json:"user_id"`
	Tier                    enums.Tier              `json:"tier"`
	Status                  enums.EntitlementStatus `json:"status"`
	ExternalSubscriptionRef *string                 `json:"external_subscription_ref,omitempty"`
	ValidFrom               *time.Time              `json:"valid_from,omitempty"`
	ValidUntil              *time.Time              `json:"valid_until,omitempty"`
	Flags                   FeatureFlags            `json:"feature_flags"`
	UpdatedAt               time.Time               `json:"updated_at"`
}

// ExemptFromQuota reports whether the holder skips the daily interest quota at the given
// moment. Expiry is enforced here, by the reader, rather than by the reconciler.
func (e Entitlement) ExemptFromQuota(at time.Time) bool {
	if e.Status != enums.EntitlementStatusActive || e.Tier == enums.TierNone {
		return false
	}
	if e.ValidUntil != nil && !at.Before(*e.ValidUntil) {
		return false
	}
	return true
}

func (e Entitlement) HasSubscription() bool {
	return e.ExternalSubscriptionRef != nil && *e.ExternalSubscriptionRef != ""
}
