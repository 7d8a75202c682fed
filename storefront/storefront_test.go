package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/transport"
)

// fakeBackend is an in-memory storefront API with per-route hit counts.
type fakeBackend struct {
	mu     sync.Mutex
	hits   map[string]int
	mux    *http.ServeMux
	server *httptest.Server

	cart     Cart
	failCart bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		hits: make(map[string]int),
		mux:  http.NewServeMux(),
		cart: Cart{SessionID: "s-1"},
	}

	b.handle("GET /api/vehicles", func(w http.ResponseWriter, r *http.Request) {
		vehicles := []Vehicle{{VIN: "JT123", Make: "Toyota", Model: "Corolla", Year: 2024, Price: 24500, InStock: true}}
		if r.URL.Query().Get("make") == "Honda" {
			vehicles = []Vehicle{{VIN: "HN456", Make: "Honda", Model: "Civic", Year: 2024, Price: 26100, InStock: true}}
		}
		writeJSON(w, map[string]any{"vehicles": vehicles})
	})
	b.handle("GET /api/vehicles/JT123", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, Vehicle{VIN: "JT123", Make: "Toyota", Model: "Corolla", Year: 2024, Price: 24500})
	})
	b.handle("GET /api/cart/s-1", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		cart := b.cart
		b.mu.Unlock()
		writeJSON(w, cart)
	})
	b.handle("POST /api/cart/s-1/items", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failCart {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":{"code":"vehicle_reserved","message":"Vehicle already reserved"}}`))
			return
		}
		var item CartItem
		_ = json.NewDecoder(r.Body).Decode(&item)
		b.cart.Items = append(b.cart.Items, item)
		b.cart.Subtotal = subtotal(b.cart.Items)
		writeJSON(w, b.cart)
	})
	b.handle("GET /api/recommendations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"recommendations": []Recommendation{{VIN: "HN456", Reason: "similar price", Score: 0.8}}})
	})
	b.handle("GET /api/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"orders": []Order{{OrderID: "o-1", CustomerID: "c-1", Status: "delivered"}}})
	})
	b.handle("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, Order{OrderID: "o-2", CustomerID: "c-1", Status: "placed"})
	})
	b.handle("GET /api/dealers/d-1/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, DealerConfig{DealerID: "d-1", Name: "Main Street Motors", Theme: "light", Currency: "USD"})
	})
	b.handle("PUT /api/dealers/d-1/config", func(w http.ResponseWriter, r *http.Request) {
		var cfg DealerConfig
		_ = json.NewDecoder(r.Body).Decode(&cfg)
		writeJSON(w, cfg)
	})

	b.server = httptest.NewServer(b.mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) handle(pattern string, h http.HandlerFunc) {
	b.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[pattern]++
		b.mu.Unlock()
		h(w, r)
	})
}

func (b *fakeBackend) hitCount(pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[pattern]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestServices(t *testing.T) (*Services, *engine.Engine, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend(t)

	cfg := engine.DefaultConfig()
	cfg.Defaults.BackoffBase = time.Millisecond
	cfg.Defaults.BackoffMax = 5 * time.Millisecond
	e, err := engine.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	api := transport.NewAdapter(backend.server.URL, transport.WithTimeout(5*time.Second))
	return NewServices(e, api, logger.NewNop()), e, backend
}

func TestVehicleList_CachedPerFilterSet(t *testing.T) {
	svc, _, backend := newTestServices(t)
	ctx := context.Background()

	toyotas, err := svc.Vehicles.List(ctx, VehicleFilters{Make: "Toyota"})
	require.NoError(t, err)
	require.Len(t, toyotas, 1)
	assert.Equal(t, "JT123", toyotas[0].VIN)

	// Same filters: cache hit. Different filters: separate key.
	_, err = svc.Vehicles.List(ctx, VehicleFilters{Make: "Toyota"})
	require.NoError(t, err)
	hondas, err := svc.Vehicles.List(ctx, VehicleFilters{Make: "Honda"})
	require.NoError(t, err)
	assert.Equal(t, "HN456", hondas[0].VIN)

	assert.Equal(t, 2, backend.hitCount("GET /api/vehicles"))
}

func TestVehicleList_MapParamsApplyFilters(t *testing.T) {
	_, e, backend := newTestServices(t)
	ctx := context.Background()

	// Untyped callers hand the engine map-shaped filters; the fetcher
	// must apply them instead of fetching the unfiltered inventory.
	res, err := e.Query(ctx, KindVehicles, map[string]any{"make": "Honda", "year_min": float64(2020)})
	require.NoError(t, err)
	vehicles, err := decode[[]Vehicle](res.Data, KindVehicles)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "HN456", vehicles[0].VIN)
	assert.Equal(t, 1, backend.hitCount("GET /api/vehicles"))

	// Unknown param shapes are rejected rather than cached unfiltered.
	_, err = e.Query(ctx, KindVehicles, 42)
	require.Error(t, err)
	assert.Equal(t, 1, backend.hitCount("GET /api/vehicles"))
}

func TestVehicleGet_EmptyIDSkipsRequest(t *testing.T) {
	svc, _, backend := newTestServices(t)

	v, err := svc.Vehicles.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.Equal(t, 0, backend.hitCount("GET /api/vehicles/JT123"))

	v, err = svc.Vehicles.Get(context.Background(), "JT123")
	require.NoError(t, err)
	assert.Equal(t, "Corolla", v.Model)
}

func TestCartAddItem_Reconciled(t *testing.T) {
	svc, _, backend := newTestServices(t)
	ctx := context.Background()

	_, err := svc.Cart.Get(ctx, "s-1")
	require.NoError(t, err)

	cart, err := svc.Cart.AddItem(ctx, "s-1", CartItem{VIN: "JT123", Quantity: 1, UnitPrice: 24500})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, float64(24500), cart.Subtotal)

	// The reconciled cart is cached; no refetch needed.
	got, err := svc.Cart.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, cart, got)
	assert.Equal(t, 1, backend.hitCount("GET /api/cart/s-1"))
}

func TestCartAddItem_RejectedRollsBack(t *testing.T) {
	svc, _, backend := newTestServices(t)
	ctx := context.Background()

	before, err := svc.Cart.Get(ctx, "s-1")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.failCart = true
	backend.mu.Unlock()

	_, err = svc.Cart.AddItem(ctx, "s-1", CartItem{VIN: "JT123", Quantity: 1, UnitPrice: 24500})
	require.Error(t, err)

	after, err := svc.Cart.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, after.Items)
}

func TestCartMutation_InvalidatesRecommendations(t *testing.T) {
	svc, _, backend := newTestServices(t)
	ctx := context.Background()

	_, err := svc.Recommendations.ForVehicle(ctx, "JT123")
	require.NoError(t, err)
	require.Equal(t, 1, backend.hitCount("GET /api/recommendations"))

	_, err = svc.Cart.AddItem(ctx, "s-1", CartItem{VIN: "JT123", Quantity: 1, UnitPrice: 24500})
	require.NoError(t, err)

	// The next read revalidates instead of serving the stale cache.
	_, err = svc.Recommendations.ForVehicle(ctx, "JT123")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.hitCount("GET /api/recommendations"))
}

func TestPlaceOrder_InvalidatesOrdersAndCart(t *testing.T) {
	svc, _, backend := newTestServices(t)
	ctx := context.Background()

	_, err := svc.Orders.List(ctx, "c-1")
	require.NoError(t, err)
	_, err = svc.Cart.Get(ctx, "s-1")
	require.NoError(t, err)

	order, err := svc.Orders.Place(ctx, PlaceOrderRequest{SessionID: "s-1", CustomerID: "c-1", Payment: "card"})
	require.NoError(t, err)
	assert.Equal(t, "o-2", order.OrderID)

	_, err = svc.Orders.List(ctx, "c-1")
	require.NoError(t, err)
	_, err = svc.Cart.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.hitCount("GET /api/orders"))
	assert.Equal(t, 2, backend.hitCount("GET /api/cart/s-1"))
}

func TestDealerConfigSave_Optimistic(t *testing.T) {
	svc, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := svc.DealerConfig.Get(ctx, "d-1")
	require.NoError(t, err)

	saved, err := svc.DealerConfig.Save(ctx, DealerConfig{
		DealerID: "d-1", Name: "Main Street Motors", Theme: "dark", Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, "dark", saved.Theme)

	// The cache already holds the saved config.
	got, err := svc.DealerConfig.Get(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Theme)
}

func TestVehicleCompare_OrderInsensitive(t *testing.T) {
	svc, _, backend := newTestServices(t)
	ctx := context.Background()
	backend.handle("GET /api/vehicles/compare", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"vehicles": []Vehicle{
			{VIN: "JT123"}, {VIN: "HN456"},
		}})
	})

	_, err := svc.Vehicles.Compare(ctx, []string{"JT123", "HN456"})
	require.NoError(t, err)
	// Reversed id order hits the same cache key.
	_, err = svc.Vehicles.Compare(ctx, []string{"HN456", "JT123"})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.hitCount("GET /api/vehicles/compare"))
}
