package fulfillment

import (
	"context"
	"fmt"

	"github.com/remyhfb/delight-desk-v2-sub006/model"
)

type EligibilityResult struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
}

type ApplyResult struct {
	Accepted             bool `json:"accepted"`
	RequiresConfirmation bool `json:"requiresConfirmation"`
}

type Outcome struct {
	WasUpdated     bool `json:"wasUpdated"`
	RefundEligible bool `json:"refundEligible"`
}

// Adapter abstracts one fulfillment backend. The three variants share
// a single contract so eligibility windows and mutation semantics
// cannot drift between copy-pasted branches.
type Adapter interface {
	Method() model.FulfillmentMethod

	GetOrder(ctx context.Context, orderNumber string) (*model.Order, error)

	CheckEligibility(ctx context.Context, order model.Order) (EligibilityResult, error)

	// ApplyChange performs the mutation for API-backed variants and
	// returns RequiresConfirmation=false; for the warehouse-email
	// variant it only sends the coordination email and returns
	// RequiresConfirmation=true.
	ApplyChange(ctx context.Context, order model.Order, change model.Change) (ApplyResult, error)

	Finalize(ctx context.Context, wf *model.WorkflowRecord, externalReply string) (Outcome, error)

	RequiresExternalConfirmation() bool
}

type Registry struct {
	adapters map[model.FulfillmentMethod]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.FulfillmentMethod]Adapter)}
	for _, a := range adapters {
		r.adapters[a.Method()] = a
	}
	return r
}

func (r *Registry) Get(method model.FulfillmentMethod) (Adapter, error) {
	a, ok := r.adapters[method]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for fulfillment method %s", method)
	}
	return a, nil
}
