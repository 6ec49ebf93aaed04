package model

import (
	"time"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
)

type CheckoutRequest struct {
	UserID         int64
	Tier           enums.Tier
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// ProviderSubscription is the billing provider's view of a subscription.
type ProviderSubscription struct {
	Ref               string
	Status            string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
}

// BillingEvent is a verified provider webhook reduced to what the reconciler needs.
type BillingEvent struct {
	ID             string
	Kind           enums.BillingEventKind
	ProviderType   string
	UserID         int64
	Ref            string
	Tier           enums.Tier
	PeriodStart    time.Time
	PeriodEnd      time.Time
	ProviderStatus string
}
