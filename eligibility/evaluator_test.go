package eligibility

import (
	"testing"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/stretchr/testify/require"
)

func testPolicy() config.Policy {
	return config.Policy{
		FlatCutoff:          24 * time.Hour,
		WeekendGraceEnabled: true,
	}
}

// 2024-01-08 was a Monday
func date(day int, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func TestEvaluate(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, policy config.Policy){
		"weekday order within flat window":   testWeekdayEligible,
		"weekday order past flat window":     testWeekdayExpired,
		"friday afternoon order on weekend":  testWeekendGrace,
		"weekend grace ends monday noon":     testGraceEndsMondayNoon,
		"grace disabled falls back to flat":  testGraceDisabled,
		"self fulfillment is not time bound": testSelfFulfillment,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, testPolicy())
		})
	}
}

func testWeekdayEligible(t *testing.T, policy config.Policy) {
	order := model.Order{Number: "1001", PlacedAt: date(10, 8)}
	res := Evaluate(order, model.FULFILLMENT_WAREHOUSE_EMAIL, date(10, 10), policy)
	require.True(t, res.Eligible)
}

func testWeekdayExpired(t *testing.T, policy config.Policy) {
	order := model.Order{Number: "1001", PlacedAt: date(9, 8)}
	res := Evaluate(order, model.FULFILLMENT_THREE_PL_API, date(10, 9), policy)
	require.False(t, res.Eligible)
	require.Contains(t, res.Reason, "window closed")
}

func testWeekendGrace(t *testing.T, policy config.Policy) {
	// order friday 3pm, request arrives saturday morning
	order := model.Order{Number: "1001", PlacedAt: date(12, 15)}
	res := Evaluate(order, model.FULFILLMENT_WAREHOUSE_EMAIL, date(13, 9), policy)
	require.True(t, res.Eligible)

	// still eligible sunday evening
	res = Evaluate(order, model.FULFILLMENT_WAREHOUSE_EMAIL, date(14, 22), policy)
	require.True(t, res.Eligible)

	// and monday morning
	res = Evaluate(order, model.FULFILLMENT_WAREHOUSE_EMAIL, date(15, 11), policy)
	require.True(t, res.Eligible)
}

func testGraceEndsMondayNoon(t *testing.T, policy config.Policy) {
	order := model.Order{Number: "1001", PlacedAt: date(12, 15)}
	res := Evaluate(order, model.FULFILLMENT_WAREHOUSE_EMAIL, date(15, 13), policy)
	require.False(t, res.Eligible)
}

func testGraceDisabled(t *testing.T, policy config.Policy) {
	policy.WeekendGraceEnabled = false
	order := model.Order{Number: "1001", PlacedAt: date(12, 15)}
	res := Evaluate(order, model.FULFILLMENT_WAREHOUSE_EMAIL, date(13, 16), policy)
	require.False(t, res.Eligible)
}

func testSelfFulfillment(t *testing.T, policy config.Policy) {
	order := model.Order{Number: "1001", PlacedAt: date(1, 8)}
	res := Evaluate(order, model.FULFILLMENT_SELF, date(15, 8), policy)
	require.True(t, res.Eligible)
}

func TestFridayMorningOrderGetsNoGrace(t *testing.T) {
	policy := testPolicy()
	// 2024-01-12 was a friday; a 9am order is outside the weekend window
	order := model.Order{Number: "1001", PlacedAt: date(12, 9)}
	res := Evaluate(order, model.FULFILLMENT_WAREHOUSE_EMAIL, date(13, 10), policy)
	require.False(t, res.Eligible)
}

func TestTimeBasedIneligibilityIsMonotone(t *testing.T) {
	policy := testPolicy()
	order := model.Order{Number: "1001", PlacedAt: date(9, 8)}
	t1 := date(10, 9)
	require.False(t, Evaluate(order, model.FULFILLMENT_WAREHOUSE_EMAIL, t1, policy).Eligible)
	for _, later := range []time.Time{t1.Add(time.Hour), t1.Add(24 * time.Hour), t1.Add(30 * 24 * time.Hour)} {
		require.False(t, Evaluate(order, model.FULFILLMENT_WAREHOUSE_EMAIL, later, policy).Eligible)
	}
}

func TestUnknownMethodIsIneligible(t *testing.T) {
	order := model.Order{Number: "1001", PlacedAt: date(10, 8)}
	res := Evaluate(order, model.FulfillmentMethod("dropship"), date(10, 9), testPolicy())
	require.False(t, res.Eligible)
}
