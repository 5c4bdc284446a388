package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/remyhfb/delight-desk-v2-sub006/eligibility"
	"github.com/remyhfb/delight-desk-v2-sub006/fulfillment"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/notify"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence/inmem"
	"github.com/stretchr/testify/require"
)

// wednesday morning, well inside the flat window
var weekdayNow = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

func newRecord(method model.FulfillmentMethod, requestType model.RequestType, createdAt time.Time) *model.WorkflowRecord {
	return &model.WorkflowRecord{
		Id:                uuid.New().String(),
		UserId:            "user-1",
		OrderNumber:       "1001",
		CustomerEmail:     "customer@example.com",
		RequestType:       requestType,
		FulfillmentMethod: method,
		Status:            model.STATUS_PROCESSING,
		Step:              model.STEP_IDENTIFY_ORDER,
		CreatedAt:         createdAt,
		LastTransitionAt:  createdAt,
	}
}

func newMachine(t *testing.T, adapter fulfillment.Adapter, clock *testClock, dispatcher *recordingDispatcher) (*Machine, persistence.WorkflowStore) {
	t.Helper()
	store := inmem.NewInMemWorkflowStore()
	machine := NewMachine(store, fulfillment.NewRegistry(adapter), dispatcher, eligibility.NewGuard(""), nil, testPolicy(), "ops@example.com", clock.Now)
	return machine, store
}

func TestWarehouseFlowReachesAwaitingConfirmation(t *testing.T) {
	clock := newTestClock(weekdayNow)
	dispatcher := &recordingDispatcher{}
	orders := &fakeOrderSource{order: model.Order{
		CustomerEmail: "customer@example.com",
		PlacedAt:      weekdayNow.Add(-2 * time.Hour),
	}}
	adapter := fulfillment.NewWarehouseEmailAdapter(orders, dispatcher, testPolicy(), "warehouse@example.com", clock.Now)
	machine, store := newMachine(t, adapter, clock, dispatcher)

	wf := newRecord(model.FULFILLMENT_WAREHOUSE_EMAIL, model.REQUEST_TYPE_CANCELLATION, clock.Now())
	require.NoError(t, store.Create(wf))
	require.NoError(t, machine.Advance(context.Background(), wf))

	require.Equal(t, model.STATUS_AWAITING_CONFIRMATION, wf.Status)
	require.Equal(t, model.STEP_AWAIT_CONFIRMATION, wf.Step)
	require.True(t, wf.BackendContacted)
	require.False(t, wf.ExternalReplyReceived)
	require.True(t, wf.CustomerAcknowledgmentSent)
	require.Equal(t, 1, dispatcher.sent(notify.TEMPLATE_CUSTOMER_ACK))
	require.Equal(t, 1, dispatcher.sent(notify.TEMPLATE_WAREHOUSE_REQUEST))
	require.NotNil(t, wf.AwaitingDeadline)
	require.Equal(t, clock.Now().Add(8*time.Hour), *wf.AwaitingDeadline)
}

func TestNegativeWarehouseReplyEndsCannotFulfill(t *testing.T) {
	clock := newTestClock(weekdayNow)
	dispatcher := &recordingDispatcher{}
	orders := &fakeOrderSource{order: model.Order{PlacedAt: weekdayNow.Add(-2 * time.Hour)}}
	adapter := fulfillment.NewWarehouseEmailAdapter(orders, dispatcher, testPolicy(), "warehouse@example.com", clock.Now)
	machine, store := newMachine(t, adapter, clock, dispatcher)

	wf := newRecord(model.FULFILLMENT_WAREHOUSE_EMAIL, model.REQUEST_TYPE_CANCELLATION, clock.Now())
	require.NoError(t, store.Create(wf))
	require.NoError(t, machine.Advance(context.Background(), wf))
	require.Equal(t, model.STATUS_AWAITING_CONFIRMATION, wf.Status)

	// reply arrives an hour later
	clock.Advance(time.Hour)
	wf.ExternalReplyReceived = true
	wf.ExternalReply = "can't cancel, already packed"
	wf.Status = model.STATUS_PROCESSING
	wf.Step = model.STEP_FINALIZE
	wf.AwaitingDeadline = nil
	require.NoError(t, store.UpdateCAS(wf, wf.Version))
	require.NoError(t, machine.Advance(context.Background(), wf))

	require.Equal(t, model.STATUS_CANNOT_FULFILL, wf.Status)
	require.NotNil(t, wf.WasUpdated)
	require.False(t, *wf.WasUpdated)
	require.False(t, wf.ChangeApplied)
	require.False(t, wf.RefundProcessed)
	require.NotNil(t, wf.CompletedAt)
	require.Equal(t, 1, dispatcher.sent(notify.TEMPLATE_CUSTOMER_CANNOT_FULFILL))
}

func TestIneligibleBackendShortCircuits(t *testing.T) {
	clock := newTestClock(weekdayNow)
	dispatcher := &recordingDispatcher{}
	adapter := &fakeAdapter{
		method:      model.FULFILLMENT_THREE_PL_API,
		eligibility: fulfillment.EligibilityResult{Eligible: false, Reason: "3pl reports order already picked"},
		order:       model.Order{PlacedAt: weekdayNow.Add(-2 * time.Hour)},
	}
	machine, store := newMachine(t, adapter, clock, dispatcher)

	wf := newRecord(model.FULFILLMENT_THREE_PL_API, model.REQUEST_TYPE_CANCELLATION, clock.Now())
	require.NoError(t, store.Create(wf))
	require.NoError(t, machine.Advance(context.Background(), wf))

	require.Equal(t, model.STATUS_CANNOT_FULFILL, wf.Status)
	require.NotNil(t, wf.WasUpdated)
	require.False(t, *wf.WasUpdated)
	require.Equal(t, "3pl reports order already picked", wf.EligibilityReason)
	require.Equal(t, 0, adapter.applied())
	require.Equal(t, 0, dispatcher.sent(notify.TEMPLATE_WAREHOUSE_REQUEST))
	require.Equal(t, 1, dispatcher.sent(notify.TEMPLATE_CUSTOMER_CANNOT_FULFILL))
}

func TestSynchronousBackendCompletes(t *testing.T) {
	clock := newTestClock(weekdayNow)
	dispatcher := &recordingDispatcher{}
	adapter := &fakeAdapter{
		method:      model.FULFILLMENT_SELF,
		eligibility: fulfillment.EligibilityResult{Eligible: true, Reason: "order not yet fulfilled"},
		outcome:     fulfillment.Outcome{WasUpdated: true, RefundEligible: true},
		order:       model.Order{PlacedAt: weekdayNow.Add(-2 * time.Hour)},
	}
	machine, store := newMachine(t, adapter, clock, dispatcher)

	wf := newRecord(model.FULFILLMENT_SELF, model.REQUEST_TYPE_CANCELLATION, clock.Now())
	require.NoError(t, store.Create(wf))
	require.NoError(t, machine.Advance(context.Background(), wf))

	require.Equal(t, model.STATUS_COMPLETED, wf.Status)
	require.True(t, wf.ChangeApplied)
	require.True(t, wf.RefundProcessed)
	require.NotNil(t, wf.WasUpdated)
	require.True(t, *wf.WasUpdated)
	require.Equal(t, 1, adapter.applied())
	require.Equal(t, 1, dispatcher.sent(notify.TEMPLATE_CUSTOMER_ACK))
	require.Equal(t, 1, dispatcher.sent(notify.TEMPLATE_CUSTOMER_COMPLETED))
}

func TestReentryNeverReappliesChange(t *testing.T) {
	clock := newTestClock(weekdayNow)
	dispatcher := &recordingDispatcher{}
	adapter := &fakeAdapter{
		method:      model.FULFILLMENT_SELF,
		eligibility: fulfillment.EligibilityResult{Eligible: true},
		outcome:     fulfillment.Outcome{WasUpdated: true},
		order:       model.Order{PlacedAt: weekdayNow.Add(-2 * time.Hour)},
	}
	machine, store := newMachine(t, adapter, clock, dispatcher)

	// simulate a crash after the mutation was applied but before
	// finalize was durable
	wf := newRecord(model.FULFILLMENT_SELF, model.REQUEST_TYPE_CANCELLATION, clock.Now())
	wf.Step = model.STEP_CONTACT_BACKEND
	wf.CustomerAcknowledgmentSent = true
	wf.BackendContacted = true
	wf.ChangeApplied = true
	require.NoError(t, store.Create(wf))

	require.NoError(t, machine.Advance(context.Background(), wf))
	require.Equal(t, model.STATUS_COMPLETED, wf.Status)
	require.Equal(t, 0, adapter.applied())
}

func TestBackendFailureSurfacesToOperator(t *testing.T) {
	clock := newTestClock(weekdayNow)
	dispatcher := &recordingDispatcher{}
	adapter := &fakeAdapter{
		method:      model.FULFILLMENT_SELF,
		eligibility: fulfillment.EligibilityResult{Eligible: true},
		applyErr:    errors.New("store api rejected POST /orders/1001/cancel with 503"),
		order:       model.Order{PlacedAt: weekdayNow.Add(-2 * time.Hour)},
	}
	machine, store := newMachine(t, adapter, clock, dispatcher)

	wf := newRecord(model.FULFILLMENT_SELF, model.REQUEST_TYPE_CANCELLATION, clock.Now())
	require.NoError(t, store.Create(wf))
	require.NoError(t, machine.Advance(context.Background(), wf))

	require.Equal(t, model.STATUS_FAILED, wf.Status)
	require.NotEmpty(t, wf.FailureReason)
	require.False(t, wf.ChangeApplied)
	require.Equal(t, 1, dispatcher.sent(notify.TEMPLATE_OPERATOR_FAILED))
	// the customer was acknowledged before the mutation was attempted
	require.True(t, wf.CustomerAcknowledgmentSent)
}

func TestTerminalRecordsAcceptNoTransitions(t *testing.T) {
	clock := newTestClock(weekdayNow)
	dispatcher := &recordingDispatcher{}
	adapter := &fakeAdapter{
		method:      model.FULFILLMENT_SELF,
		eligibility: fulfillment.EligibilityResult{Eligible: true},
		outcome:     fulfillment.Outcome{WasUpdated: true},
	}
	machine, store := newMachine(t, adapter, clock, dispatcher)

	wf := newRecord(model.FULFILLMENT_SELF, model.REQUEST_TYPE_CANCELLATION, clock.Now())
	require.NoError(t, store.Create(wf))
	require.NoError(t, machine.Advance(context.Background(), wf))
	require.Equal(t, model.STATUS_COMPLETED, wf.Status)

	err := machine.Advance(context.Background(), wf)
	var terminal model.TerminalWorkflowError
	require.ErrorAs(t, err, &terminal)
	require.Equal(t, model.STATUS_COMPLETED, terminal.Status)
}

func TestEscalationIsIdempotent(t *testing.T) {
	clock := newTestClock(weekdayNow)
	dispatcher := &recordingDispatcher{}
	orders := &fakeOrderSource{order: model.Order{PlacedAt: weekdayNow.Add(-2 * time.Hour)}}
	adapter := fulfillment.NewWarehouseEmailAdapter(orders, dispatcher, testPolicy(), "warehouse@example.com", clock.Now)
	machine, store := newMachine(t, adapter, clock, dispatcher)

	wf := newRecord(model.FULFILLMENT_WAREHOUSE_EMAIL, model.REQUEST_TYPE_CANCELLATION, clock.Now())
	require.NoError(t, store.Create(wf))
	require.NoError(t, machine.Advance(context.Background(), wf))
	require.Equal(t, model.STATUS_AWAITING_CONFIRMATION, wf.Status)

	clock.Advance(8*time.Hour + time.Minute)
	require.NoError(t, machine.Escalate(context.Background(), wf))
	require.Equal(t, model.STATUS_ESCALATED, wf.Status)
	require.Equal(t, 1, dispatcher.sent(notify.TEMPLATE_OPERATOR_ESCALATION))

	// a second timer delivery is a no-op
	require.NoError(t, machine.Escalate(context.Background(), wf))
	require.Equal(t, 1, dispatcher.sent(notify.TEMPLATE_OPERATOR_ESCALATION))
}
