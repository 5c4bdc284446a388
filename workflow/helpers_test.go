package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/remyhfb/delight-desk-v2-sub006/fulfillment"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/notify"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{t: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMail struct {
	template  notify.TemplateId
	recipient string
	context   map[string]any
}

type recordingDispatcher struct {
	mu    sync.Mutex
	sends []sentMail
	err   error
}

func (d *recordingDispatcher) Send(ctx context.Context, templateId notify.TemplateId, recipient string, contextData map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sends = append(d.sends, sentMail{template: templateId, recipient: recipient, context: contextData})
	return nil
}

func (d *recordingDispatcher) sent(templateId notify.TemplateId) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	for _, s := range d.sends {
		if s.template == templateId {
			count++
		}
	}
	return count
}

type fakeOrderSource struct {
	order model.Order
	err   error
}

func (f *fakeOrderSource) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	order := f.order
	order.Number = orderNumber
	return &order, nil
}

// fakeAdapter stands in for an API-backed fulfillment variant.
type fakeAdapter struct {
	method               model.FulfillmentMethod
	requiresConfirmation bool
	eligibility          fulfillment.EligibilityResult
	applyErr             error
	outcome              fulfillment.Outcome
	order                model.Order

	mu         sync.Mutex
	applyCalls int
}

func (f *fakeAdapter) Method() model.FulfillmentMethod {
	return f.method
}

func (f *fakeAdapter) RequiresExternalConfirmation() bool {
	return f.requiresConfirmation
}

func (f *fakeAdapter) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	order := f.order
	order.Number = orderNumber
	return &order, nil
}

func (f *fakeAdapter) CheckEligibility(ctx context.Context, order model.Order) (fulfillment.EligibilityResult, error) {
	return f.eligibility, nil
}

func (f *fakeAdapter) ApplyChange(ctx context.Context, order model.Order, change model.Change) (fulfillment.ApplyResult, error) {
	f.mu.Lock()
	f.applyCalls++
	f.mu.Unlock()
	if f.applyErr != nil {
		return fulfillment.ApplyResult{}, f.applyErr
	}
	return fulfillment.ApplyResult{Accepted: true, RequiresConfirmation: f.requiresConfirmation}, nil
}

func (f *fakeAdapter) Finalize(ctx context.Context, wf *model.WorkflowRecord, externalReply string) (fulfillment.Outcome, error) {
	return f.outcome, nil
}

func (f *fakeAdapter) applied() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyCalls
}

type fakeExtractor struct {
	intent model.Intent
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, emailBody string) (*model.Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	intent := f.intent
	return &intent, nil
}

type fakeGate struct {
	mu       sync.Mutex
	decision ApprovalDecision
	reason   string
}

func (g *fakeGate) BeforeApply(wf *model.WorkflowRecord) (ApprovalDecision, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision, g.reason
}

func (g *fakeGate) set(decision ApprovalDecision) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.decision = decision
}

func testPolicy() config.Policy {
	return config.Policy{
		FlatCutoff:           24 * time.Hour,
		WeekendGraceEnabled:  true,
		EscalationTimeout:    8 * time.Hour,
		SchedulerTick:        time.Second,
		BackendMaxAttempts:   3,
		BackendRetryInterval: time.Millisecond,
	}
}
