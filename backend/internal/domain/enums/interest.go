package enums

import "strings"

type InterestKind string

const (
	InterestKindNormal   InterestKind = "normal"
	InterestKindElevated InterestKind = "elevated"
)

func ParseInterestKind(raw string) (InterestKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(InterestKindNormal), "like":
		return InterestKindNormal, true
	case string(InterestKindElevated), "superlike", "super_like":
		return InterestKindElevated, true
	default:
		return "", false
	}
}

type InterestStatus string

const (
	InterestStatusPending  InterestStatus = "pending"
	InterestStatusAccepted InterestStatus = "accepted"
	InterestStatusRejected InterestStatus = "rejected"
)
