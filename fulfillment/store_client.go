package fulfillment

import (
	"context"
	"fmt"
	"net/http"

	gocache "github.com/patrickmn/go-cache"
	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
)

// OrderSource looks up order data from the merchant's store platform.
type OrderSource interface {
	GetOrder(ctx context.Context, orderNumber string) (*model.Order, error)
}

// StoreClient talks to the merchant's store platform. Order-status
// lookups are cached briefly because the same order is checked several
// times within one workflow pass.
type StoreClient struct {
	api         *apiClient
	statusCache *gocache.Cache
}

var _ OrderSource = new(StoreClient)

func NewStoreClient(conf config.BackendConfig, policy config.Policy) *StoreClient {
	return &StoreClient{
		api:         newApiClient(conf.StoreApiURL, policy.BackendMaxAttempts, policy.BackendRetryInterval),
		statusCache: gocache.New(conf.OrderStatusCacheTTL, 2*conf.OrderStatusCacheTTL),
	}
}

func (sc *StoreClient) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := sc.api.doJSON(ctx, http.MethodGet, "/orders/"+orderNumber, nil, nil, &order)
	if err != nil {
		return nil, fmt.Errorf("order %s lookup failed %w", orderNumber, err)
	}
	return &order, nil
}

type orderStatusResponse struct {
	Status string `json:"status"`
}

func (sc *StoreClient) GetOrderStatus(ctx context.Context, orderNumber string) (string, error) {
	if cached, ok := sc.statusCache.Get(orderNumber); ok {
		return cached.(string), nil
	}
	var res orderStatusResponse
	err := sc.api.doJSON(ctx, http.MethodGet, "/orders/"+orderNumber+"/fulfillment", nil, nil, &res)
	if err != nil {
		return "", err
	}
	sc.statusCache.Set(orderNumber, res.Status, gocache.DefaultExpiration)
	return res.Status, nil
}

func (sc *StoreClient) CancelOrder(ctx context.Context, orderNumber string, idempotencyKey string) error {
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	return sc.api.doJSON(ctx, http.MethodPost, "/orders/"+orderNumber+"/cancel", headers, nil, nil)
}

func (sc *StoreClient) UpdateShippingAddress(ctx context.Context, orderNumber string, address string, idempotencyKey string) error {
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	body := map[string]string{"shippingAddress": address}
	return sc.api.doJSON(ctx, http.MethodPut, "/orders/"+orderNumber+"/address", headers, body, nil)
}
