package storefront

import (
	"context"
	"fmt"

	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/transport"
)

// DealerConfigService reads and saves the per-dealer storefront
// configuration. Config changes rarely, so long stale windows fit here.
type DealerConfigService struct {
	engine *engine.Engine
	api    *transport.Adapter
	log    *logger.CtxZapLogger
}

func NewDealerConfigService(e *engine.Engine, api *transport.Adapter, log *logger.CtxZapLogger) *DealerConfigService {
	s := &DealerConfigService{engine: e, api: api, log: log}
	e.RegisterFetcher(KindDealerConfig, s.fetchConfig)
	return s
}

func dealerKeyParams(dealerID string) map[string]any {
	return map[string]any{"dealer_id": dealerID}
}

// Get returns the configuration for one dealer.
func (s *DealerConfigService) Get(ctx context.Context, dealerID string) (DealerConfig, error) {
	res, err := s.engine.Query(ctx, KindDealerConfig, dealerKeyParams(dealerID),
		engine.WithEnabled(dealerID != ""))
	if err != nil {
		return DealerConfig{}, err
	}
	return decode[DealerConfig](res.Data, KindDealerConfig)
}

// Save writes the configuration, showing the edited value immediately
// and reverting when the server rejects it.
func (s *DealerConfigService) Save(ctx context.Context, cfg DealerConfig) (DealerConfig, error) {
	if cfg.DealerID == "" {
		return DealerConfig{}, fmt.Errorf("storefront: save config needs a dealer id")
	}
	res, err := s.engine.Mutate(ctx, engine.MutationRequest{
		Kind: "dealer_config.save",
		Execute: func(mctx context.Context) (any, error) {
			var out DealerConfig
			req := transport.Put("/api/dealers/" + cfg.DealerID + "/config").WithJSON(cfg)
			if err := s.api.ExecuteJSON(mctx, req, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		Optimistic: []engine.OptimisticUpdate{{
			Kind:      KindDealerConfig,
			Params:    dealerKeyParams(cfg.DealerID),
			Transform: func(any) any { return cfg },
		}},
		ApplyToKind:   KindDealerConfig,
		ApplyToParams: dealerKeyParams(cfg.DealerID),
	})
	if err != nil {
		return DealerConfig{}, err
	}
	return decode[DealerConfig](res.Data, KindDealerConfig)
}

func (s *DealerConfigService) fetchConfig(ctx context.Context, params any) (any, error) {
	dealerID := stringParam(params, "dealer_id")
	if dealerID == "" {
		return nil, fmt.Errorf("storefront: config fetch without dealer id")
	}
	var out DealerConfig
	if err := s.api.ExecuteJSON(ctx, transport.Get("/api/dealers/"+dealerID+"/config"), &out); err != nil {
		return nil, err
	}
	return out, nil
}
