package storefront

import (
	"context"

	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/transport"
)

// RecommendationService serves vehicle and customer recommendations.
// Suggestions go stale fast and depend on cart contents, so cart
// mutations invalidate the whole kind.
type RecommendationService struct {
	engine *engine.Engine
	api    *transport.Adapter
	log    *logger.CtxZapLogger
}

func NewRecommendationService(e *engine.Engine, api *transport.Adapter, log *logger.CtxZapLogger) *RecommendationService {
	s := &RecommendationService{engine: e, api: api, log: log}
	e.RegisterFetcher(KindRecommendations, s.fetch)
	return s
}

// ForVehicle suggests alternatives to one vehicle.
func (s *RecommendationService) ForVehicle(ctx context.Context, vehicleID string) ([]Recommendation, error) {
	return s.query(ctx, map[string]any{"vehicle_id": vehicleID}, vehicleID != "")
}

// ForCustomer suggests vehicles for one customer's history.
func (s *RecommendationService) ForCustomer(ctx context.Context, customerID string) ([]Recommendation, error) {
	return s.query(ctx, map[string]any{"customer_id": customerID}, customerID != "")
}

func (s *RecommendationService) query(ctx context.Context, params map[string]any, enabled bool) ([]Recommendation, error) {
	res, err := s.engine.Query(ctx, KindRecommendations, params, engine.WithEnabled(enabled))
	if err != nil {
		return nil, err
	}
	return decode[[]Recommendation](res.Data, KindRecommendations)
}

func (s *RecommendationService) fetch(ctx context.Context, params any) (any, error) {
	req := transport.Get("/api/recommendations")
	if v := stringParam(params, "vehicle_id"); v != "" {
		req.WithQuery("vehicle_id", v)
	}
	if c := stringParam(params, "customer_id"); c != "" {
		req.WithQuery("customer_id", c)
	}
	var out struct {
		Recommendations []Recommendation `json:"recommendations"`
	}
	if err := s.api.ExecuteJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}
