package eligibility

import (
	"fmt"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
)

type Result struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
}

// Evaluate applies the time-based eligibility rules for an automated
// order modification. It is a pure function of its inputs; callers
// inject now so the rules are testable without touching the clock.
//
// Warehouse and 3PL orders are eligible within a flat window after
// placement, except that orders placed from Friday noon through Sunday
// stay eligible until the following Monday noon because pick/pack does
// not run on weekends. Self-fulfilled orders are not time-bounded here;
// their shipped/picked state is checked live by the adapter.
func Evaluate(order model.Order, method model.FulfillmentMethod, now time.Time, policy config.Policy) Result {
	switch method {
	case model.FULFILLMENT_SELF:
		return Result{Eligible: true, Reason: "pending live shipment check"}
	case model.FULFILLMENT_WAREHOUSE_EMAIL, model.FULFILLMENT_THREE_PL_API:
		deadline := cutoffDeadline(order.PlacedAt, policy)
		if now.After(deadline) {
			return Result{
				Eligible: false,
				Reason:   fmt.Sprintf("order placed %s, modification window closed %s", order.PlacedAt.Format(time.RFC3339), deadline.Format(time.RFC3339)),
			}
		}
		return Result{Eligible: true, Reason: "within modification window"}
	}
	return Result{Eligible: false, Reason: fmt.Sprintf("unknown fulfillment method %s", method)}
}

// cutoffDeadline is fixed by the order timestamp alone, which makes
// time-based ineligibility monotone: once the deadline has passed it
// never reopens.
func cutoffDeadline(placedAt time.Time, policy config.Policy) time.Time {
	flat := placedAt.Add(policy.FlatCutoff)
	if !policy.WeekendGraceEnabled {
		return flat
	}
	if !inWeekendWindow(placedAt) {
		return flat
	}
	grace := nextMondayNoon(placedAt)
	if grace.After(flat) {
		return grace
	}
	return flat
}

func inWeekendWindow(t time.Time) bool {
	switch t.Weekday() {
	case time.Friday:
		return t.Hour() >= 12
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

func nextMondayNoon(t time.Time) time.Time {
	d := t
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, t.Location())
}
