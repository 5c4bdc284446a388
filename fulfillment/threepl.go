package fulfillment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/remyhfb/delight-desk-v2-sub006/eligibility"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
)

var _ Adapter = new(threePLAdapter)

// threePLAdapter drives a third-party logistics provider over its API.
// Mutations are synchronous; no external confirmation round-trip is
// needed.
type threePLAdapter struct {
	orders OrderSource
	api    *apiClient
	policy config.Policy
	now    func() time.Time
}

func NewThreePLAdapter(orders OrderSource, conf config.BackendConfig, policy config.Policy, now func() time.Time) *threePLAdapter {
	if now == nil {
		now = time.Now
	}
	return &threePLAdapter{
		orders: orders,
		api:    newApiClient(conf.ThreePLApiURL, policy.BackendMaxAttempts, policy.BackendRetryInterval),
		policy: policy,
		now:    now,
	}
}

func (a *threePLAdapter) Method() model.FulfillmentMethod {
	return model.FULFILLMENT_THREE_PL_API
}

func (a *threePLAdapter) RequiresExternalConfirmation() bool {
	return false
}

func (a *threePLAdapter) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	return a.orders.GetOrder(ctx, orderNumber)
}

type shipmentResponse struct {
	Status string `json:"status"`
}

func (a *threePLAdapter) CheckEligibility(ctx context.Context, order model.Order) (EligibilityResult, error) {
	res := eligibility.Evaluate(order, model.FULFILLMENT_THREE_PL_API, a.now(), a.policy)
	if !res.Eligible {
		return EligibilityResult{Eligible: false, Reason: res.Reason}, nil
	}
	var shipment shipmentResponse
	err := a.api.doJSON(ctx, http.MethodGet, "/shipments/"+order.Number, nil, nil, &shipment)
	if err != nil {
		return EligibilityResult{}, err
	}
	switch shipment.Status {
	case "picked", "packed", "shipped":
		return EligibilityResult{
			Eligible: false,
			Reason:   fmt.Sprintf("3pl reports order already %s", shipment.Status),
		}, nil
	}
	return EligibilityResult{Eligible: true, Reason: "within modification window, not yet picked"}, nil
}

func (a *threePLAdapter) ApplyChange(ctx context.Context, order model.Order, change model.Change) (ApplyResult, error) {
	headers := map[string]string{"Idempotency-Key": order.Number + ":" + string(change.Type)}
	var err error
	switch change.Type {
	case model.REQUEST_TYPE_CANCELLATION:
		err = a.api.doJSON(ctx, http.MethodPost, "/shipments/"+order.Number+"/cancel", headers, nil, nil)
	case model.REQUEST_TYPE_ADDRESS_CHANGE:
		body := map[string]string{"shippingAddress": change.NewAddress}
		err = a.api.doJSON(ctx, http.MethodPut, "/shipments/"+order.Number+"/address", headers, body, nil)
	default:
		return ApplyResult{}, fmt.Errorf("unsupported change type %s", change.Type)
	}
	if err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{Accepted: true, RequiresConfirmation: false}, nil
}

func (a *threePLAdapter) Finalize(ctx context.Context, wf *model.WorkflowRecord, externalReply string) (Outcome, error) {
	return Outcome{
		WasUpdated:     wf.ChangeApplied,
		RefundEligible: wf.ChangeApplied && wf.RequestType == model.REQUEST_TYPE_CANCELLATION,
	}, nil
}
