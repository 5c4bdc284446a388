package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remyhfb/delight-desk-v2-sub006/fulfillment"
	"github.com/remyhfb/delight-desk-v2-sub006/intent"
	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/notify"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence"
	"github.com/remyhfb/delight-desk-v2-sub006/util"
	"go.uber.org/zap"
)

// SettingsSource yields the merchant's configured fulfillment method.
// The value is snapshotted onto the workflow record at creation;
// later settings changes never redirect an in-flight workflow.
type SettingsSource interface {
	FulfillmentMethod(ctx context.Context, userId string) (model.FulfillmentMethod, error)
}

type StaticSettings struct {
	Method model.FulfillmentMethod
}

func (s StaticSettings) FulfillmentMethod(ctx context.Context, userId string) (model.FulfillmentMethod, error) {
	return s.Method, nil
}

// WorkflowService is the entry point for everything that creates or
// resumes workflows: inbound email, warehouse replies, escalation
// timers, user cancellation and the operator test trigger. Both
// resumption paths take the per-(order, request type) lock before
// touching state.
type WorkflowService struct {
	store      persistence.WorkflowStore
	machine    *Machine
	extractor  intent.Extractor
	settings   SettingsSource
	dispatcher notify.Dispatcher
	threshold  float64
	locks      *util.KeyLock
	now        func() time.Time
}

func NewWorkflowService(store persistence.WorkflowStore, machine *Machine, extractor intent.Extractor, settings SettingsSource, dispatcher notify.Dispatcher, threshold float64, now func() time.Time) *WorkflowService {
	if now == nil {
		now = time.Now
	}
	return &WorkflowService{
		store:      store,
		machine:    machine,
		extractor:  extractor,
		settings:   settings,
		dispatcher: dispatcher,
		threshold:  threshold,
		locks:      util.NewKeyLock(),
		now:        now,
	}
}

// HandleInboundEmail classifies an email and, if the classification is
// confident enough, creates and drives a workflow. Low-confidence
// email never enters the engine and is left for human triage.
func (s *WorkflowService) HandleInboundEmail(ctx context.Context, req model.InboundEmailRequest) (*model.WorkflowRecord, error) {
	extracted, err := s.extractor.Extract(ctx, req.Body)
	if err != nil {
		return nil, fmt.Errorf("intent extraction failed %w", err)
	}
	if err := intent.Gate(extracted, s.threshold); err != nil {
		logger.Info("email left for triage", zap.String("from", req.FromAddress), zap.Error(err))
		return nil, err
	}
	method, err := s.settings.FulfillmentMethod(ctx, req.UserId)
	if err != nil {
		return nil, err
	}
	wf := &model.WorkflowRecord{
		Id:                uuid.New().String(),
		UserId:            req.UserId,
		OrderNumber:       extracted.OrderNumber,
		CustomerEmail:     req.FromAddress,
		RequestType:       extracted.RequestType,
		FulfillmentMethod: method,
		Status:            model.STATUS_PROCESSING,
		Step:              model.STEP_IDENTIFY_ORDER,
		RequestedAddress:  extracted.RequestedAddress,
		CreatedAt:         s.now(),
		LastTransitionAt:  s.now(),
	}
	s.locks.Lock(wf.IdempotencyKey())
	defer s.locks.Unlock(wf.IdempotencyKey())
	if err := s.store.Create(wf); err != nil {
		return nil, err
	}
	logger.Info("workflow created", zap.String("id", wf.Id), zap.String("order", wf.OrderNumber), zap.String("type", string(wf.RequestType)), zap.String("method", string(method)))
	if err := s.machine.Advance(ctx, wf); err != nil {
		return wf, err
	}
	return wf, nil
}

// HandleWarehouseReply resumes a workflow with the operator's free-text
// answer. Replies for workflows no longer awaiting confirmation are
// stale: logged for audit and ignored.
func (s *WorkflowService) HandleWarehouseReply(ctx context.Context, req model.WarehouseReplyRequest) (*model.WorkflowRecord, error) {
	wf, err := s.locate(req)
	if err != nil {
		return nil, err
	}
	s.locks.Lock(wf.IdempotencyKey())
	defer s.locks.Unlock(wf.IdempotencyKey())
	// re-read under the lock, the record may have moved
	wf, err = s.store.Get(wf.Id)
	if err != nil {
		return nil, err
	}
	if wf.Status != model.STATUS_AWAITING_CONFIRMATION {
		staleErr := model.StaleReplyError{WorkflowId: wf.Id, Status: wf.Status}
		logger.Info("ignoring stale warehouse reply", zap.String("id", wf.Id), zap.String("status", string(wf.Status)), zap.String("reply", req.Body))
		return wf, staleErr
	}
	wf.ExternalReplyReceived = true
	wf.ExternalReply = req.Body
	wf.Status = model.STATUS_PROCESSING
	wf.Step = model.STEP_FINALIZE
	wf.AwaitingDeadline = nil
	wf.LastTransitionAt = s.now()
	if err := s.store.UpdateCAS(wf, wf.Version); err != nil {
		var conflict persistence.VersionConflictError
		if asConflict(err, &conflict) {
			// the escalation timer won; the reply is now stale
			current, getErr := s.store.Get(wf.Id)
			if getErr != nil {
				return nil, getErr
			}
			staleErr := model.StaleReplyError{WorkflowId: wf.Id, Status: current.Status}
			logger.Info("reply lost race to escalation", zap.String("id", wf.Id))
			return current, staleErr
		}
		return nil, err
	}
	logger.Info("warehouse reply received", zap.String("id", wf.Id), zap.String("order", wf.OrderNumber))
	if err := s.machine.Advance(ctx, wf); err != nil {
		return wf, err
	}
	return wf, nil
}

func (s *WorkflowService) locate(req model.WarehouseReplyRequest) (*model.WorkflowRecord, error) {
	if req.WorkflowId != "" {
		return s.store.Get(req.WorkflowId)
	}
	if req.OrderNumber == "" {
		return nil, fmt.Errorf("reply must carry a workflow id or order number")
	}
	requestType := req.RequestType
	if requestType == "" {
		requestType = model.REQUEST_TYPE_CANCELLATION
	}
	// reply webhooks carry no user id, scan the awaiting set
	awaiting, err := s.store.ListByStatus(model.STATUS_AWAITING_CONFIRMATION)
	if err != nil {
		return nil, err
	}
	for _, wf := range awaiting {
		if wf.OrderNumber == req.OrderNumber && wf.RequestType == requestType {
			return wf, nil
		}
	}
	return nil, persistence.NotFoundError{Id: req.OrderNumber}
}

// EscalateExpired is the scheduler entry point. Escalation re-checks
// status under the lock so at-least-once timer delivery and multiple
// process instances stay safe.
func (s *WorkflowService) EscalateExpired(ctx context.Context, limit int) int {
	expired, err := s.store.PollExpiredAwaiting(s.now(), limit)
	if err != nil {
		logger.Error("error polling expired workflows", zap.Error(err))
		return 0
	}
	escalated := 0
	for _, wf := range expired {
		s.locks.Lock(wf.IdempotencyKey())
		current, err := s.store.Get(wf.Id)
		if err == nil {
			if err := s.machine.Escalate(ctx, current); err != nil {
				logger.Error("error escalating workflow", zap.String("id", wf.Id), zap.Error(err))
			} else if current.Status == model.STATUS_ESCALATED {
				escalated++
			}
		}
		s.locks.Unlock(wf.IdempotencyKey())
	}
	return escalated
}

// CancelByUser retracts a request before any backend mutation. Once
// contact_backend has been entered the workflow can only complete or
// escalate.
func (s *WorkflowService) CancelByUser(ctx context.Context, id string) (*model.WorkflowRecord, error) {
	wf, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	s.locks.Lock(wf.IdempotencyKey())
	defer s.locks.Unlock(wf.IdempotencyKey())
	wf, err = s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if wf.IsTerminal() {
		return wf, model.TerminalWorkflowError{WorkflowId: wf.Id, Status: wf.Status}
	}
	if wf.BackendContacted {
		return wf, fmt.Errorf("workflow %s already contacted the backend and can no longer be cancelled", wf.Id)
	}
	wf.EligibilityReason = "cancelled at customer request"
	wf.Status = model.STATUS_CANNOT_FULFILL
	wf.Step = model.STEP_FINALIZE
	now := s.now()
	wf.CompletedAt = &now
	wf.WasUpdated = boolPtr(false)
	wf.LastTransitionAt = now
	if err := s.store.UpdateCAS(wf, wf.Version); err != nil {
		return nil, err
	}
	logger.Info("workflow cancelled by user", zap.String("id", wf.Id))
	return wf, nil
}

// Resume re-drives a workflow parked by a pending approval decision.
func (s *WorkflowService) Resume(ctx context.Context, id string) (*model.WorkflowRecord, error) {
	wf, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	s.locks.Lock(wf.IdempotencyKey())
	defer s.locks.Unlock(wf.IdempotencyKey())
	wf, err = s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if wf.IsTerminal() {
		return wf, model.TerminalWorkflowError{WorkflowId: wf.Id, Status: wf.Status}
	}
	if err := s.machine.Advance(ctx, wf); err != nil {
		return wf, err
	}
	return wf, nil
}

// RunTestWorkflow synthesizes a workflow from operator-supplied email
// text and runs the full state machine with stubbed mutating backends.
// Notifications are genuinely sent to the supplied addresses.
func (s *WorkflowService) RunTestWorkflow(ctx context.Context, req model.TestRunRequest) (*model.WorkflowRecord, error) {
	extracted, err := s.extractor.Extract(ctx, req.EmailBody)
	if err != nil {
		return nil, fmt.Errorf("intent extraction failed %w", err)
	}
	if err := intent.Gate(extracted, s.threshold); err != nil {
		return nil, err
	}
	method, err := s.settings.FulfillmentMethod(ctx, req.UserId)
	if err != nil {
		return nil, err
	}
	orderNumber := fmt.Sprintf("test-%s", extracted.OrderNumber)
	wf := &model.WorkflowRecord{
		Id:                uuid.New().String(),
		UserId:            req.UserId,
		OrderNumber:       orderNumber,
		CustomerEmail:     req.CustomerAddress,
		RequestType:       extracted.RequestType,
		FulfillmentMethod: method,
		Status:            model.STATUS_PROCESSING,
		Step:              model.STEP_IDENTIFY_ORDER,
		RequestedAddress:  extracted.RequestedAddress,
		CreatedAt:         s.now(),
		LastTransitionAt:  s.now(),
	}
	if err := s.store.Create(wf); err != nil {
		return nil, err
	}
	testAdapter := fulfillment.NewTestModeAdapter(method, s.dispatcher, req.WarehouseAddress, req.CustomerAddress)
	testMachine := s.machine.WithAdapters(fulfillment.NewRegistry(testAdapter))
	logger.Info("test workflow started", zap.String("id", wf.Id), zap.String("method", string(method)))
	if err := testMachine.Advance(ctx, wf); err != nil {
		return wf, err
	}
	return wf, nil
}

func (s *WorkflowService) Get(id string) (*model.WorkflowRecord, error) {
	return s.store.Get(id)
}

func (s *WorkflowService) ListByStatus(status model.WorkflowStatus) ([]*model.WorkflowRecord, error) {
	return s.store.ListByStatus(status)
}
