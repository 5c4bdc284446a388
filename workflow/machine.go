package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/remyhfb/delight-desk-v2-sub006/eligibility"
	"github.com/remyhfb/delight-desk-v2-sub006/fulfillment"
	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/notify"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence"
	"go.uber.org/zap"
)

type ApprovalDecision string

const DECISION_APPROVED ApprovalDecision = "approved"
const DECISION_REJECTED ApprovalDecision = "rejected"
const DECISION_PENDING ApprovalDecision = "pending"

// ApprovalGate is an optional policy hook consulted before any backend
// mutation. Pending parks the workflow at contact_backend until a
// later pass.
type ApprovalGate interface {
	BeforeApply(wf *model.WorkflowRecord) (ApprovalDecision, string)
}

// Machine drives a single workflow record through its transitions.
// Every transition is persisted before the external call it enables,
// so a crash resumes at the last durable step instead of re-sending
// email or re-applying a mutation.
type Machine struct {
	store           persistence.WorkflowStore
	adapters        *fulfillment.Registry
	dispatcher      notify.Dispatcher
	guard           *eligibility.Guard
	gate            ApprovalGate
	policy          config.Policy
	operatorAddress string
	now             func() time.Time
}

func NewMachine(store persistence.WorkflowStore, adapters *fulfillment.Registry, dispatcher notify.Dispatcher, guard *eligibility.Guard, gate ApprovalGate, policy config.Policy, operatorAddress string, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{
		store:           store,
		adapters:        adapters,
		dispatcher:      dispatcher,
		guard:           guard,
		gate:            gate,
		policy:          policy,
		operatorAddress: operatorAddress,
		now:             now,
	}
}

// WithAdapters returns a machine identical to m but resolving backends
// from a different registry. The test-workflow trigger uses it to swap
// in stubbed backends without touching live wiring.
func (m *Machine) WithAdapters(adapters *fulfillment.Registry) *Machine {
	copy := *m
	copy.adapters = adapters
	return &copy
}

// Advance runs the workflow forward until it suspends, terminates, or
// loses a persistence race to another instance. Backend errors are
// translated into a Failed transition here, never returned raw.
func (m *Machine) Advance(ctx context.Context, wf *model.WorkflowRecord) error {
	if wf.IsTerminal() {
		return model.TerminalWorkflowError{WorkflowId: wf.Id, Status: wf.Status}
	}
	adapter, err := m.adapters.Get(wf.FulfillmentMethod)
	if err != nil {
		return m.markFailed(ctx, wf, err.Error())
	}
	for wf.Status == model.STATUS_PROCESSING {
		var cont bool
		var stepErr error
		switch wf.Step {
		case model.STEP_IDENTIFY_ORDER:
			cont, stepErr = m.identifyOrder(ctx, wf, adapter)
		case model.STEP_CHECK_ELIGIBILITY:
			cont, stepErr = m.checkEligibility(ctx, wf, adapter)
		case model.STEP_ACKNOWLEDGE_CUSTOMER:
			cont, stepErr = m.acknowledgeCustomer(ctx, wf)
		case model.STEP_CONTACT_BACKEND:
			cont, stepErr = m.contactBackend(ctx, wf, adapter)
		case model.STEP_FINALIZE:
			cont, stepErr = m.finalize(ctx, wf, adapter)
		default:
			return m.markFailed(ctx, wf, "unknown workflow step "+string(wf.Step))
		}
		if stepErr != nil {
			var conflict persistence.VersionConflictError
			if asConflict(stepErr, &conflict) {
				// another instance owns this workflow now
				logger.Info("lost workflow transition race", zap.String("id", wf.Id), zap.Error(stepErr))
				return nil
			}
			return m.markFailed(ctx, wf, stepErr.Error())
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (m *Machine) identifyOrder(ctx context.Context, wf *model.WorkflowRecord, adapter fulfillment.Adapter) (bool, error) {
	_, err := adapter.GetOrder(ctx, wf.OrderNumber)
	if err != nil {
		return false, err
	}
	wf.Step = model.STEP_CHECK_ELIGIBILITY
	if err := m.persist(wf); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Machine) checkEligibility(ctx context.Context, wf *model.WorkflowRecord, adapter fulfillment.Adapter) (bool, error) {
	order, err := adapter.GetOrder(ctx, wf.OrderNumber)
	if err != nil {
		return false, err
	}
	res, err := adapter.CheckEligibility(ctx, *order)
	if err != nil {
		return false, err
	}
	if res.Eligible && m.guard != nil && m.guard.Enabled() {
		allowed, guardErr := m.guard.Evaluate(map[string]any{
			"orderNumber": wf.OrderNumber,
			"requestType": string(wf.RequestType),
			"placedAt":    order.PlacedAt.Format(time.RFC3339),
		})
		if guardErr != nil {
			logger.Error("guard expression error, treating as ineligible", zap.String("id", wf.Id), zap.Error(guardErr))
			allowed = false
		}
		if !allowed {
			res = fulfillment.EligibilityResult{Eligible: false, Reason: "declined by merchant eligibility guard"}
		}
	}
	wf.EligibilityReason = res.Reason
	if !res.Eligible {
		// normal terminal outcome, not an error
		m.notifyCustomer(ctx, wf, notify.TEMPLATE_CUSTOMER_CANNOT_FULFILL, map[string]any{
			"orderNumber": wf.OrderNumber,
			"requestType": string(wf.RequestType),
			"reason":      res.Reason,
		})
		return false, m.markTerminal(wf, model.STATUS_CANNOT_FULFILL, boolPtr(false))
	}
	wf.Step = model.STEP_ACKNOWLEDGE_CUSTOMER
	if err := m.persist(wf); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Machine) acknowledgeCustomer(ctx context.Context, wf *model.WorkflowRecord) (bool, error) {
	if !wf.CustomerAcknowledgmentSent {
		m.notifyCustomer(ctx, wf, notify.TEMPLATE_CUSTOMER_ACK, map[string]any{
			"orderNumber": wf.OrderNumber,
			"requestType": string(wf.RequestType),
		})
		wf.CustomerAcknowledgmentSent = true
	}
	wf.Step = model.STEP_CONTACT_BACKEND
	if err := m.persist(wf); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Machine) contactBackend(ctx context.Context, wf *model.WorkflowRecord, adapter fulfillment.Adapter) (bool, error) {
	// re-entry after a crash must observe existing flags before
	// re-invoking the mutating call
	if wf.ChangeApplied {
		wf.Step = model.STEP_FINALIZE
		if err := m.persist(wf); err != nil {
			return false, err
		}
		return true, nil
	}
	if wf.BackendContacted && adapter.RequiresExternalConfirmation() {
		return false, m.suspendAwaiting(wf)
	}
	if m.gate != nil {
		decision, reason := m.gate.BeforeApply(wf)
		switch decision {
		case DECISION_REJECTED:
			wf.EligibilityReason = reason
			m.notifyCustomer(ctx, wf, notify.TEMPLATE_CUSTOMER_CANNOT_FULFILL, map[string]any{
				"orderNumber": wf.OrderNumber,
				"requestType": string(wf.RequestType),
				"reason":      reason,
			})
			return false, m.markTerminal(wf, model.STATUS_CANNOT_FULFILL, boolPtr(false))
		case DECISION_PENDING:
			logger.Info("approval pending, workflow parked", zap.String("id", wf.Id))
			return false, nil
		}
	}
	order, err := adapter.GetOrder(ctx, wf.OrderNumber)
	if err != nil {
		return false, err
	}
	change := model.Change{Type: wf.RequestType, NewAddress: wf.RequestedAddress}
	wf.Attempts++
	res, err := adapter.ApplyChange(ctx, *order, change)
	if err != nil {
		return false, err
	}
	if !res.Accepted {
		wf.EligibilityReason = "backend refused the change"
		m.notifyCustomer(ctx, wf, notify.TEMPLATE_CUSTOMER_CANNOT_FULFILL, map[string]any{
			"orderNumber": wf.OrderNumber,
			"requestType": string(wf.RequestType),
			"reason":      wf.EligibilityReason,
		})
		return false, m.markTerminal(wf, model.STATUS_CANNOT_FULFILL, boolPtr(false))
	}
	wf.BackendContacted = true
	if res.RequiresConfirmation {
		return false, m.suspendAwaiting(wf)
	}
	wf.ChangeApplied = true
	wf.Step = model.STEP_FINALIZE
	if err := m.persist(wf); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Machine) finalize(ctx context.Context, wf *model.WorkflowRecord, adapter fulfillment.Adapter) (bool, error) {
	outcome, err := adapter.Finalize(ctx, wf, wf.ExternalReply)
	if err != nil {
		return false, err
	}
	if outcome.RefundEligible {
		wf.RefundProcessed = true
	}
	if outcome.WasUpdated {
		// for the warehouse variant the change is applied the moment
		// the operator confirms it, record that here
		wf.ChangeApplied = true
		m.notifyCustomer(ctx, wf, notify.TEMPLATE_CUSTOMER_COMPLETED, map[string]any{
			"orderNumber": wf.OrderNumber,
			"requestType": string(wf.RequestType),
		})
		return false, m.markTerminal(wf, model.STATUS_COMPLETED, boolPtr(true))
	}
	reason := wf.ExternalReply
	if reason == "" {
		reason = "the change could not be made"
	}
	m.notifyCustomer(ctx, wf, notify.TEMPLATE_CUSTOMER_CANNOT_FULFILL, map[string]any{
		"orderNumber": wf.OrderNumber,
		"requestType": string(wf.RequestType),
		"reason":      reason,
	})
	return false, m.markTerminal(wf, model.STATUS_CANNOT_FULFILL, boolPtr(false))
}

func (m *Machine) suspendAwaiting(wf *model.WorkflowRecord) error {
	if !wf.CanTransition(model.STATUS_AWAITING_CONFIRMATION) {
		return model.TerminalWorkflowError{WorkflowId: wf.Id, Status: wf.Status}
	}
	deadline := m.now().Add(m.policy.EscalationTimeout)
	wf.Status = model.STATUS_AWAITING_CONFIRMATION
	wf.Step = model.STEP_AWAIT_CONFIRMATION
	wf.AwaitingDeadline = &deadline
	if err := m.persist(wf); err != nil {
		return err
	}
	logger.Info("workflow awaiting external confirmation", zap.String("id", wf.Id), zap.Time("deadline", deadline))
	return nil
}

// Escalate hands a stalled workflow to a human. It is idempotent under
// at-least-once timer delivery: current status is re-checked and the
// CAS write loses cleanly to a late-arriving reply.
func (m *Machine) Escalate(ctx context.Context, wf *model.WorkflowRecord) error {
	if wf.Status != model.STATUS_AWAITING_CONFIRMATION {
		logger.Info("skipping escalation, workflow no longer awaiting", zap.String("id", wf.Id), zap.String("status", string(wf.Status)))
		return nil
	}
	wf.Status = model.STATUS_ESCALATED
	wf.Step = model.STEP_FINALIZE
	wf.AwaitingDeadline = nil
	now := m.now()
	wf.CompletedAt = &now
	if err := m.persist(wf); err != nil {
		var conflict persistence.VersionConflictError
		if asConflict(err, &conflict) {
			logger.Info("escalation lost race to a reply", zap.String("id", wf.Id))
			return nil
		}
		return err
	}
	if m.operatorAddress != "" {
		m.notify(ctx, notify.TEMPLATE_OPERATOR_ESCALATION, m.operatorAddress, map[string]any{
			"workflowId":  wf.Id,
			"orderNumber": wf.OrderNumber,
			"requestType": string(wf.RequestType),
		})
	}
	logger.Info("workflow escalated", zap.String("id", wf.Id), zap.String("order", wf.OrderNumber))
	return nil
}

func (m *Machine) markTerminal(wf *model.WorkflowRecord, status model.WorkflowStatus, wasUpdated *bool) error {
	if !wf.CanTransition(status) {
		return model.TerminalWorkflowError{WorkflowId: wf.Id, Status: wf.Status}
	}
	wf.Status = status
	wf.Step = model.STEP_FINALIZE
	wf.AwaitingDeadline = nil
	if wasUpdated != nil {
		wf.WasUpdated = wasUpdated
	}
	now := m.now()
	wf.CompletedAt = &now
	if err := m.persist(wf); err != nil {
		return err
	}
	logger.Info("workflow terminal", zap.String("id", wf.Id), zap.String("status", string(status)))
	return nil
}

func (m *Machine) markFailed(ctx context.Context, wf *model.WorkflowRecord, reason string) error {
	if wf.IsTerminal() {
		return nil
	}
	wf.FailureReason = reason
	if err := m.markTerminal(wf, model.STATUS_FAILED, nil); err != nil {
		return err
	}
	if m.operatorAddress != "" {
		m.notify(ctx, notify.TEMPLATE_OPERATOR_FAILED, m.operatorAddress, map[string]any{
			"workflowId":  wf.Id,
			"orderNumber": wf.OrderNumber,
			"requestType": string(wf.RequestType),
			"reason":      reason,
		})
	}
	logger.Error("workflow failed", zap.String("id", wf.Id), zap.String("reason", reason))
	return nil
}

func (m *Machine) persist(wf *model.WorkflowRecord) error {
	wf.LastTransitionAt = m.now()
	return m.store.UpdateCAS(wf, wf.Version)
}

func (m *Machine) notifyCustomer(ctx context.Context, wf *model.WorkflowRecord, templateId notify.TemplateId, contextData map[string]any) {
	m.notify(ctx, templateId, wf.CustomerEmail, contextData)
}

// notification failures are logged, never fatal to the workflow
func (m *Machine) notify(ctx context.Context, templateId notify.TemplateId, recipient string, contextData map[string]any) {
	if err := m.dispatcher.Send(ctx, templateId, recipient, contextData); err != nil {
		logger.Error("notification dispatch failed", zap.String("template", string(templateId)), zap.String("recipient", recipient), zap.Error(err))
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func asConflict(err error, target *persistence.VersionConflictError) bool {
	return errors.As(err, target)
}
