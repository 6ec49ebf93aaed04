package enums

import "strings"

type Tier string

const (
	TierNone     Tier = "none"
	TierStandard Tier = "standard"
	TierElevated Tier = "elevated"
	TierBoost    Tier = "boost"
)

// ParseTier accepts any known tier, including none.
func ParseTier(raw string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierNone:
		return TierNone, true
	case TierStandard:
		return TierStandard, true
	case TierElevated:
		return TierElevated, true
	case TierBoost:
		return TierBoost, true
	default:
		return "", false
	}
}

// Purchasable reports whether a checkout can be opened for the tier.
func (t Tier) Purchasable() bool {
	switch t {
	case TierStandard, TierElevated, TierBoost:
		return true
	default:
		return false
	}
}
