package persistence

import (
	"fmt"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type NotFoundError struct {
	Id string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("workflow %s not found", e.Id)
}

// VersionConflictError signals a lost compare-and-swap race. The caller
// must re-read the record and decide again; it must never blindly
// retry the write.
type VersionConflictError struct {
	Id       string
	Expected uint64
}

func (e VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on workflow %s, expected version %d", e.Id, e.Expected)
}

// WorkflowStore is the single source of truth for workflow state. All
// mutation goes through the state machine which calls UpdateCAS; the
// UI and adapters never write records directly.
type WorkflowStore interface {
	// Create persists a new record and claims the active slot for its
	// (userId, orderNumber, requestType). A second active workflow for
	// the same key fails with model.WorkflowActiveError.
	Create(wf *model.WorkflowRecord) error

	Get(id string) (*model.WorkflowRecord, error)

	// FindActive returns the non-terminal record for the key, or
	// NotFoundError.
	FindActive(userId string, orderNumber string, requestType model.RequestType) (*model.WorkflowRecord, error)

	// UpdateCAS writes the record if the stored version still equals
	// expectedVersion, bumping the version. This is what makes the
	// late-reply versus timeout race safe across processes.
	UpdateCAS(wf *model.WorkflowRecord, expectedVersion uint64) error

	// PollExpiredAwaiting lists workflows awaiting external
	// confirmation whose deadline has passed.
	PollExpiredAwaiting(now time.Time, limit int) ([]*model.WorkflowRecord, error)

	// ListByStatus feeds the operator queue and history display.
	ListByStatus(status model.WorkflowStatus) ([]*model.WorkflowRecord, error)
}
