package storefront

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/transport"
)

// VehicleService serves cached vehicle listings, details, comparisons
// and text search.
type VehicleService struct {
	engine *engine.Engine
	api    *transport.Adapter
	log    *logger.CtxZapLogger
}

func NewVehicleService(e *engine.Engine, api *transport.Adapter, log *logger.CtxZapLogger) *VehicleService {
	s := &VehicleService{engine: e, api: api, log: log.With()}

	e.RegisterFetcher(KindVehicles, s.fetchList)
	e.RegisterFetcher(KindVehicleDetail, s.fetchDetail)
	e.RegisterFetcher(KindVehicleCompare, s.fetchCompare)
	e.RegisterFetcher(KindVehicleSearch, s.fetchSearch)
	return s
}

// List returns vehicles matching the filters, served from cache when
// fresh.
func (s *VehicleService) List(ctx context.Context, filters VehicleFilters) ([]Vehicle, error) {
	res, err := s.engine.Query(ctx, KindVehicles, filters)
	if err != nil {
		return nil, err
	}
	return decode[[]Vehicle](res.Data, KindVehicles)
}

// Get returns one vehicle by id. An empty id resolves to the zero
// vehicle without any request.
func (s *VehicleService) Get(ctx context.Context, id string) (Vehicle, error) {
	res, err := s.engine.Query(ctx, KindVehicleDetail,
		map[string]any{"id": id}, engine.WithEnabled(id != ""))
	if err != nil {
		return Vehicle{}, err
	}
	return decode[Vehicle](res.Data, KindVehicleDetail)
}

// Compare returns the vehicles for a set of ids; id order does not
// affect the cache key.
func (s *VehicleService) Compare(ctx context.Context, ids []string) ([]Vehicle, error) {
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)
	res, err := s.engine.Query(ctx, KindVehicleCompare,
		map[string]any{"ids": sorted}, engine.WithEnabled(len(ids) > 0))
	if err != nil {
		return nil, err
	}
	return decode[[]Vehicle](res.Data, KindVehicleCompare)
}

// Search runs a free-text search over the inventory.
func (s *VehicleService) Search(ctx context.Context, text string) ([]Vehicle, error) {
	text = strings.TrimSpace(text)
	res, err := s.engine.Query(ctx, KindVehicleSearch,
		map[string]any{"q": text}, engine.WithEnabled(text != ""))
	if err != nil {
		return nil, err
	}
	return decode[[]Vehicle](res.Data, KindVehicleSearch)
}

// PrefetchDetail warms the detail cache, typically on listing hover.
func (s *VehicleService) PrefetchDetail(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.engine.Prefetch(ctx, KindVehicleDetail, map[string]any{"id": id})
}

// Invalidate marks all vehicle listings stale, e.g. after an inventory
// sync notification.
func (s *VehicleService) Invalidate(ctx context.Context) {
	s.engine.InvalidateKind(ctx, KindVehicles)
	s.engine.InvalidateKind(ctx, KindVehicleSearch)
}

func (s *VehicleService) fetchList(ctx context.Context, params any) (any, error) {
	filters, err := listFilters(params)
	if err != nil {
		return nil, err
	}
	req := transport.Get("/api/vehicles")
	if filters.Make != "" {
		req.WithQuery("make", filters.Make)
	}
	if filters.Model != "" {
		req.WithQuery("model", filters.Model)
	}
	if filters.YearMin > 0 {
		req.WithQuery("year_min", strconv.Itoa(filters.YearMin))
	}
	if filters.YearMax > 0 {
		req.WithQuery("year_max", strconv.Itoa(filters.YearMax))
	}
	if filters.PriceMin > 0 {
		req.WithQuery("price_min", strconv.FormatFloat(filters.PriceMin, 'f', -1, 64))
	}
	if filters.PriceMax > 0 {
		req.WithQuery("price_max", strconv.FormatFloat(filters.PriceMax, 'f', -1, 64))
	}
	for _, style := range filters.BodyStyles {
		req.WithQuery("body_style", style)
	}

	var out struct {
		Vehicles []Vehicle `json:"vehicles"`
	}
	if err := s.api.ExecuteJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Vehicles, nil
}

func (s *VehicleService) fetchDetail(ctx context.Context, params any) (any, error) {
	id := stringParam(params, "id")
	if id == "" {
		return nil, fmt.Errorf("storefront: vehicle detail fetch without id")
	}
	var out Vehicle
	if err := s.api.ExecuteJSON(ctx, transport.Get("/api/vehicles/"+id), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *VehicleService) fetchCompare(ctx context.Context, params any) (any, error) {
	ids := stringSliceParam(params, "ids")
	req := transport.Get("/api/vehicles/compare")
	for _, id := range ids {
		req.WithQuery("id", id)
	}
	var out struct {
		Vehicles []Vehicle `json:"vehicles"`
	}
	if err := s.api.ExecuteJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Vehicles, nil
}

func (s *VehicleService) fetchSearch(ctx context.Context, params any) (any, error) {
	var out struct {
		Vehicles []Vehicle `json:"vehicles"`
	}
	req := transport.Get("/api/vehicles/search").WithQuery("q", stringParam(params, "q"))
	if err := s.api.ExecuteJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Vehicles, nil
}

// listFilters accepts both the typed filters and the map shape that
// untyped callers such as the CLI pass in. Anything else is rejected so
// the unfiltered inventory never gets cached under a filtered key.
func listFilters(params any) (VehicleFilters, error) {
	switch p := params.(type) {
	case nil:
		return VehicleFilters{}, nil
	case VehicleFilters:
		return p, nil
	case *VehicleFilters:
		if p == nil {
			return VehicleFilters{}, nil
		}
		return *p, nil
	case map[string]any:
		var filters VehicleFilters
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName: "json",
			Result:  &filters,
		})
		if err != nil {
			return VehicleFilters{}, err
		}
		if err := dec.Decode(p); err != nil {
			return VehicleFilters{}, fmt.Errorf("storefront: decode vehicle filters: %w", err)
		}
		return filters, nil
	default:
		return VehicleFilters{}, fmt.Errorf("storefront: unsupported vehicle filter params type %T", params)
	}
}

// stringParam reads a string field from map-shaped params. Params come
// back through the cache on invalidation refetches, so both the typed
// and the JSON-roundtripped map shapes must work.
func stringParam(params any, field string) string {
	m, ok := params.(map[string]any)
	if !ok {
		return ""
	}
	v, _ := m[field].(string)
	return v
}

func stringSliceParam(params any, field string) []string {
	m, ok := params.(map[string]any)
	if !ok {
		return nil
	}
	switch v := m[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
