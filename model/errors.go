package model

import "fmt"

// WorkflowActiveError rejects a second request for an order that
// already has a non-terminal workflow of the same type.
type WorkflowActiveError struct {
	ExistingId  string
	OrderNumber string
	RequestType RequestType
}

func (e WorkflowActiveError) Error() string {
	return fmt.Sprintf("active %s workflow %s already exists for order %s", e.RequestType, e.ExistingId, e.OrderNumber)
}

// StaleReplyError marks an external reply that arrived for a workflow
// no longer awaiting confirmation. It is logged and ignored, never
// applied.
type StaleReplyError struct {
	WorkflowId string
	Status     WorkflowStatus
}

func (e StaleReplyError) Error() string {
	return fmt.Sprintf("stale reply for workflow %s in status %s", e.WorkflowId, e.Status)
}

// LowConfidenceError routes an ambiguous classification to human
// triage instead of the workflow engine.
type LowConfidenceError struct {
	Confidence float64
	Threshold  float64
}

func (e LowConfidenceError) Error() string {
	return fmt.Sprintf("intent confidence %.2f below threshold %.2f", e.Confidence, e.Threshold)
}

// TerminalWorkflowError rejects any transition attempted on a terminal
// record.
type TerminalWorkflowError struct {
	WorkflowId string
	Status     WorkflowStatus
}

func (e TerminalWorkflowError) Error() string {
	return fmt.Sprintf("workflow %s is terminal in status %s", e.WorkflowId, e.Status)
}
