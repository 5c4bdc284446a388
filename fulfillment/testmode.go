package fulfillment

import (
	"context"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/notify"
	"go.uber.org/zap"
)

var _ Adapter = new(testModeAdapter)

// testModeAdapter backs the operator self-verification trigger. It
// synthesizes order data and no-ops every mutating backend call while
// notifications go out for real, so an operator can watch the full
// flow land in their own inbox.
type testModeAdapter struct {
	method           model.FulfillmentMethod
	dispatcher       notify.Dispatcher
	warehouseAddress string
	customerAddress  string
}

func NewTestModeAdapter(method model.FulfillmentMethod, dispatcher notify.Dispatcher, warehouseAddress string, customerAddress string) *testModeAdapter {
	return &testModeAdapter{
		method:           method,
		dispatcher:       dispatcher,
		warehouseAddress: warehouseAddress,
		customerAddress:  customerAddress,
	}
}

func (a *testModeAdapter) Method() model.FulfillmentMethod {
	return a.method
}

func (a *testModeAdapter) RequiresExternalConfirmation() bool {
	return a.method == model.FULFILLMENT_WAREHOUSE_EMAIL
}

func (a *testModeAdapter) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	return &model.Order{
		Number:        orderNumber,
		CustomerEmail: a.customerAddress,
		PlacedAt:      time.Now().Add(-2 * time.Hour),
	}, nil
}

func (a *testModeAdapter) CheckEligibility(ctx context.Context, order model.Order) (EligibilityResult, error) {
	return EligibilityResult{Eligible: true, Reason: "test workflow"}, nil
}

func (a *testModeAdapter) ApplyChange(ctx context.Context, order model.Order, change model.Change) (ApplyResult, error) {
	if a.method == model.FULFILLMENT_WAREHOUSE_EMAIL && a.warehouseAddress != "" {
		contextData := map[string]any{
			"orderNumber": order.Number,
			"requestType": string(change.Type),
			"detail":      "This is a test workflow, no action is required.",
		}
		if err := a.dispatcher.Send(ctx, notify.TEMPLATE_WAREHOUSE_REQUEST, a.warehouseAddress, contextData); err != nil {
			return ApplyResult{}, err
		}
		return ApplyResult{Accepted: true, RequiresConfirmation: true}, nil
	}
	logger.Info("test mode skipping backend mutation", zap.String("order", order.Number), zap.String("type", string(change.Type)))
	return ApplyResult{Accepted: true, RequiresConfirmation: false}, nil
}

func (a *testModeAdapter) Finalize(ctx context.Context, wf *model.WorkflowRecord, externalReply string) (Outcome, error) {
	wasUpdated := true
	if externalReply != "" {
		wasUpdated = InterpretReply(externalReply)
	}
	return Outcome{
		WasUpdated:     wasUpdated,
		RefundEligible: false,
	}, nil
}
