package eligibility

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardDisabledWhenEmpty(t *testing.T) {
	guard := NewGuard("")
	require.False(t, guard.Enabled())
	require.NoError(t, guard.Validate())
}

func TestGuardEvaluatesAgainstContext(t *testing.T) {
	guard := NewGuard(`$.requestType === "cancellation"`)
	require.NoError(t, guard.Validate())

	allowed, err := guard.Evaluate(map[string]any{"requestType": "cancellation"})
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = guard.Evaluate(map[string]any{"requestType": "address_change"})
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestGuardRejectsNonBooleanResult(t *testing.T) {
	guard := NewGuard(`$.orderNumber`)
	_, err := guard.Evaluate(map[string]any{"orderNumber": "1001"})
	require.Error(t, err)
}

func TestGuardValidateCatchesBadSyntax(t *testing.T) {
	guard := NewGuard(`this is not javascript ===`)
	require.Error(t, guard.Validate())
}
