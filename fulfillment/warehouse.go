package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/remyhfb/delight-desk-v2-sub006/eligibility"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/notify"
)

var _ Adapter = new(warehouseEmailAdapter)

// warehouseEmailAdapter coordinates with a human warehouse operator
// over email. Applying a change only sends the coordination request;
// the actual outcome arrives later as a free-text reply, so every
// apply requires external confirmation.
type warehouseEmailAdapter struct {
	orders           OrderSource
	dispatcher       notify.Dispatcher
	policy           config.Policy
	warehouseAddress string
	now              func() time.Time
}

func NewWarehouseEmailAdapter(orders OrderSource, dispatcher notify.Dispatcher, policy config.Policy, warehouseAddress string, now func() time.Time) *warehouseEmailAdapter {
	if now == nil {
		now = time.Now
	}
	return &warehouseEmailAdapter{
		orders:           orders,
		dispatcher:       dispatcher,
		policy:           policy,
		warehouseAddress: warehouseAddress,
		now:              now,
	}
}

func (a *warehouseEmailAdapter) Method() model.FulfillmentMethod {
	return model.FULFILLMENT_WAREHOUSE_EMAIL
}

func (a *warehouseEmailAdapter) RequiresExternalConfirmation() bool {
	return true
}

func (a *warehouseEmailAdapter) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	return a.orders.GetOrder(ctx, orderNumber)
}

func (a *warehouseEmailAdapter) CheckEligibility(ctx context.Context, order model.Order) (EligibilityResult, error) {
	res := eligibility.Evaluate(order, model.FULFILLMENT_WAREHOUSE_EMAIL, a.now(), a.policy)
	return EligibilityResult{Eligible: res.Eligible, Reason: res.Reason}, nil
}

func (a *warehouseEmailAdapter) ApplyChange(ctx context.Context, order model.Order, change model.Change) (ApplyResult, error) {
	detail := ""
	if change.Type == model.REQUEST_TYPE_ADDRESS_CHANGE {
		detail = fmt.Sprintf("New shipping address: %s", change.NewAddress)
	}
	contextData := map[string]any{
		"orderNumber": order.Number,
		"requestType": string(change.Type),
		"detail":      detail,
	}
	err := a.dispatcher.Send(ctx, notify.TEMPLATE_WAREHOUSE_REQUEST, a.warehouseAddress, contextData)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("warehouse coordination email failed %w", err)
	}
	return ApplyResult{Accepted: true, RequiresConfirmation: true}, nil
}

func (a *warehouseEmailAdapter) Finalize(ctx context.Context, wf *model.WorkflowRecord, externalReply string) (Outcome, error) {
	wasUpdated := InterpretReply(externalReply)
	return Outcome{
		WasUpdated:     wasUpdated,
		RefundEligible: wasUpdated && wf.RequestType == model.REQUEST_TYPE_CANCELLATION,
	}, nil
}
