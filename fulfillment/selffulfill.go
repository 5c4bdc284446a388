package fulfillment

import (
	"context"
	"fmt"

	"github.com/remyhfb/delight-desk-v2-sub006/model"
)

var _ Adapter = new(selfFulfillmentAdapter)

// selfFulfillmentAdapter mutates orders directly on the merchant's
// store platform. Eligibility is a live shipped/picked check, not an
// elapsed-time rule; a merchant packing their own orders can cancel
// right up until the label is printed.
type selfFulfillmentAdapter struct {
	store *StoreClient
}

func NewSelfFulfillmentAdapter(store *StoreClient) *selfFulfillmentAdapter {
	return &selfFulfillmentAdapter{store: store}
}

func (a *selfFulfillmentAdapter) Method() model.FulfillmentMethod {
	return model.FULFILLMENT_SELF
}

func (a *selfFulfillmentAdapter) RequiresExternalConfirmation() bool {
	return false
}

func (a *selfFulfillmentAdapter) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	return a.store.GetOrder(ctx, orderNumber)
}

func (a *selfFulfillmentAdapter) CheckEligibility(ctx context.Context, order model.Order) (EligibilityResult, error) {
	status, err := a.store.GetOrderStatus(ctx, order.Number)
	if err != nil {
		return EligibilityResult{}, err
	}
	switch status {
	case "picked", "packed", "shipped", "fulfilled":
		return EligibilityResult{
			Eligible: false,
			Reason:   fmt.Sprintf("order already %s", status),
		}, nil
	}
	return EligibilityResult{Eligible: true, Reason: "order not yet fulfilled"}, nil
}

func (a *selfFulfillmentAdapter) ApplyChange(ctx context.Context, order model.Order, change model.Change) (ApplyResult, error) {
	idempotencyKey := order.Number + ":" + string(change.Type)
	var err error
	switch change.Type {
	case model.REQUEST_TYPE_CANCELLATION:
		err = a.store.CancelOrder(ctx, order.Number, idempotencyKey)
	case model.REQUEST_TYPE_ADDRESS_CHANGE:
		err = a.store.UpdateShippingAddress(ctx, order.Number, change.NewAddress, idempotencyKey)
	default:
		return ApplyResult{}, fmt.Errorf("unsupported change type %s", change.Type)
	}
	if err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{Accepted: true, RequiresConfirmation: false}, nil
}

func (a *selfFulfillmentAdapter) Finalize(ctx context.Context, wf *model.WorkflowRecord, externalReply string) (Outcome, error) {
	return Outcome{
		WasUpdated:     wf.ChangeApplied,
		RefundEligible: wf.ChangeApplied && wf.RequestType == model.REQUEST_TYPE_CANCELLATION,
	}, nil
}
