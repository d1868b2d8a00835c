package catalog

import "time"

// PremiumLimits are the per-tier quotas and cooldowns enforced by the
// read paths.
type PremiumLimits struct {
	VoteCooldown      time.Duration
	TeamsCount        int
	BotsCount         int
	MaxMembersInTeam  int
	TeamCapacityLimit int
}

// PremiumConfigurations maps each tier to its limits.
var PremiumConfigurations = map[PremiumType]PremiumLimits{
	PremiumAdvanced: {
		VoteCooldown:      4 * time.Hour,
		TeamsCount:        20,
		BotsCount:         20,
		MaxMembersInTeam:  75,
		TeamCapacityLimit: 150,
	},
	PremiumBasic: {
		VoteCooldown:      8 * time.Hour,
		TeamsCount:        10,
		BotsCount:         10,
		MaxMembersInTeam:  30,
		TeamCapacityLimit: 50,
	},
	PremiumNone: {
		VoteCooldown:      12 * time.Hour,
		TeamsCount:        3,
		BotsCount:         3,
		MaxMembersInTeam:  10,
		TeamCapacityLimit: 15,
	},
}

// Limits returns the tier's limits, falling back to the free tier for
// unknown values.
func (p PremiumType) Limits() PremiumLimits {
	if limits, ok := PremiumConfigurations[p]; ok {
		return limits
	}
	return PremiumConfigurations[PremiumNone]
}
