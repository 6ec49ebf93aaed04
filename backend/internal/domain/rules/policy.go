package rules

import (
	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

// Policy returns the feature flags granted by a tier. Gender only matters for the
// unpaid tier, where the female and male defaults differ. Quota exemption is decided by
// tier and status, never by UnlimitedInterestSending alone.
func Policy(tier enums.Tier, gender enums.GenderClass) model.FeatureFlags {
	switch tier {
	case enums.TierStandard:
		return model.FeatureFlags{
			UnlimitedInterestSending:  true,
			ElevatedInterestAllowance: 5,
		}
	case enums.TierElevated:
		return model.FeatureFlags{
			UnlimitedInterestSending:  true,
			CanSeeMedia:               true,
			PriorityMatching:          true,
			GuardianBadge:             true,
			ElevatedInterestAllowance: 50,
		}
	case enums.TierBoost:
		return model.FeatureFlags{
			CanSeeMedia:               true,
			PriorityMatching:          true,
			ElevatedInterestAllowance: 10,
		}
	}

	if gender == enums.GenderMale {
		return model.FeatureFlags{
			UnlimitedInterestSending:  true,
			ElevatedInterestAllowance: 5,
		}
	}
	return model.FeatureFlags{
		CanSeeMedia: true,
	}
}

// DefaultEntitlement is the record an identity holds before any paid tier.
func DefaultEntitlement(userID int64, gender enums.GenderClass) model.Entitlement {
	return model.Entitlement{
		UserID: userID,
		Tier:   enums.TierNone,
		Status: enums.EntitlementStatusInactive,
		Flags:  Policy(enums.TierNone, gender),
	}
}
