package inmem

import (
	"testing"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence"
	"github.com/stretchr/testify/require"
)

func record(id string, orderNumber string) *model.WorkflowRecord {
	return &model.WorkflowRecord{
		Id:          id,
		UserId:      "user-1",
		OrderNumber: orderNumber,
		RequestType: model.REQUEST_TYPE_CANCELLATION,
		Status:      model.STATUS_PROCESSING,
		Step:        model.STEP_IDENTIFY_ORDER,
		CreatedAt:   time.Now(),
	}
}

func TestCreateClaimsActiveSlot(t *testing.T) {
	store := NewInMemWorkflowStore()
	require.NoError(t, store.Create(record("wf-1", "1001")))

	err := store.Create(record("wf-2", "1001"))
	var active model.WorkflowActiveError
	require.ErrorAs(t, err, &active)
	require.Equal(t, "wf-1", active.ExistingId)

	// a different request type for the same order is its own slot
	other := record("wf-3", "1001")
	other.RequestType = model.REQUEST_TYPE_ADDRESS_CHANGE
	require.NoError(t, store.Create(other))
}

func TestTerminalRecordFreesActiveSlot(t *testing.T) {
	store := NewInMemWorkflowStore()
	wf := record("wf-1", "1001")
	require.NoError(t, store.Create(wf))

	wf.Status = model.STATUS_CANNOT_FULFILL
	require.NoError(t, store.UpdateCAS(wf, wf.Version))

	require.NoError(t, store.Create(record("wf-2", "1001")))
}

func TestUpdateCASDetectsConflicts(t *testing.T) {
	store := NewInMemWorkflowStore()
	wf := record("wf-1", "1001")
	require.NoError(t, store.Create(wf))

	first, err := store.Get("wf-1")
	require.NoError(t, err)
	second, err := store.Get("wf-1")
	require.NoError(t, err)

	first.Step = model.STEP_CHECK_ELIGIBILITY
	require.NoError(t, store.UpdateCAS(first, first.Version))

	second.Step = model.STEP_FINALIZE
	err = store.UpdateCAS(second, second.Version)
	var conflict persistence.VersionConflictError
	require.ErrorAs(t, err, &conflict)

	current, err := store.Get("wf-1")
	require.NoError(t, err)
	require.Equal(t, model.STEP_CHECK_ELIGIBILITY, current.Step)
}

func TestPollExpiredAwaiting(t *testing.T) {
	store := NewInMemWorkflowStore()
	now := time.Now()

	expired := record("wf-1", "1001")
	require.NoError(t, store.Create(expired))
	past := now.Add(-time.Minute)
	expired.Status = model.STATUS_AWAITING_CONFIRMATION
	expired.AwaitingDeadline = &past
	require.NoError(t, store.UpdateCAS(expired, expired.Version))

	pending := record("wf-2", "1002")
	require.NoError(t, store.Create(pending))
	future := now.Add(time.Hour)
	pending.Status = model.STATUS_AWAITING_CONFIRMATION
	pending.AwaitingDeadline = &future
	require.NoError(t, store.UpdateCAS(pending, pending.Version))

	got, err := store.PollExpiredAwaiting(now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "wf-1", got[0].Id)
}

func TestGetUnknownIsNotFound(t *testing.T) {
	store := NewInMemWorkflowStore()
	_, err := store.Get("missing")
	var notFound persistence.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
