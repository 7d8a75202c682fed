package storefront

import (
	"fmt"

	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/transport"
)

// Services bundles every domain adapter over one shared engine and
// transport.
type Services struct {
	Vehicles        *VehicleService
	Cart            *CartService
	Orders          *OrderService
	DealerConfig    *DealerConfigService
	Recommendations *RecommendationService
}

// NewServices wires all adapters and registers their fetchers.
func NewServices(e *engine.Engine, api *transport.Adapter, log *logger.CtxZapLogger) *Services {
	if log == nil {
		log = logger.NewNop()
	}
	return &Services{
		Vehicles:        NewVehicleService(e, api, log),
		Cart:            NewCartService(e, api, log),
		Orders:          NewOrderService(e, api, log),
		DealerConfig:    NewDealerConfigService(e, api, log),
		Recommendations: NewRecommendationService(e, api, log),
	}
}

// decode asserts the cached value back to its typed shape. Fetchers
// always store the typed value, so a mismatch means a kind collision.
func decode[T any](data any, kind string) (T, error) {
	var zero T
	if data == nil {
		return zero, nil
	}
	v, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("storefront: cached %s has unexpected type %T", kind, data)
	}
	return v, nil
}
