package domain

import "strings"

// Plan is a purchasable credit bundle. Amounts are in minor currency units.
type Plan struct {
	ID          string
	Name        string
	AmountMinor int64
	Currency    string
	Credits     int
	TierMonths  int
}

var plans = []Plan{
	{ID: "monthly", Name: "Monthly", AmountMinor: 2999, Currency: "TRY", Credits: 100, TierMonths: 1},
	{ID: "yearly", Name: "Yearly", AmountMinor: 29999, Currency: "TRY", Credits: 1500, TierMonths: 12},
}

// Plans returns the catalog in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByID resolves a plan identifier.
func PlanByID(id string) (Plan, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range plans {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, ErrUnsupportedPlan
}
