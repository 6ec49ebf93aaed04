package enums

type EntitlementStatus string

const (
	EntitlementStatusActive        EntitlementStatus = "active"
	EntitlementStatusCancelled     EntitlementStatus = "cancelled"
	EntitlementStatusExpired       EntitlementStatus = "expired"
	EntitlementStatusPaymentFailed EntitlementStatus = "payment_failed"
	EntitlementStatusInactive      EntitlementStatus = "inactive"
)

// StatusFromProvider maps a billing provider subscription status onto the local one.
func StatusFromProvider(providerStatus string) EntitlementStatus {
	if providerStatus == "active" {
		return EntitlementStatusActive
	}
	return EntitlementStatusInactive
}

func (s EntitlementStatus) Valid() bool {
	switch s {
	case EntitlementStatusActive,
		EntitlementStatusCancelled,
		EntitlementStatusExpired,
		EntitlementStatusPaymentFailed,
		EntitlementStatusInactive:
		return true
	default:
		return false
	}
}
