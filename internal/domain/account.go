package domain

import (
	"strings"
	"time"
)

// Tier enumerates account service levels.
type Tier string

const (
	TierStandard Tier = "standard"
	TierElevated Tier = "elevated"
)

// Account represents a registered user and their credit balance.
type Account struct {
	ID              string
	Email           string
	Name            string
	PasswordHash    string
	Credits         int
	Tier            Tier
	TierExpiresAt   *time.Time
	EmailVerified   bool
	VerifyToken     string
	VerifyExpiresAt *time.Time
	ResetToken      string
	ResetExpiresAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsElevated reports whether the account holds an unexpired elevated tier.
func (a Account) IsElevated(now time.Time) bool {
	if a.Tier != TierElevated {
		return false
	}
	return a.TierExpiresAt == nil || a.TierExpiresAt.After(now)
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseTier maps free-form input onto a known tier.
func ParseTier(v string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(v))) {
	case TierStandard:
		return TierStandard, true
	case TierElevated:
		return TierElevated, true
	default:
		return "", false
	}
}
