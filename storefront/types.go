// Package storefront holds the per-domain adapters over the query
// cache engine: vehicles, cart, orders, dealer configuration and
// recommendations. Adapters own URL building and payload shapes; all
// caching, deduplication, retry and invalidation behavior lives in the
// engine.
package storefront

// Resource kinds. Key normalization and per-kind configuration are
// keyed on these.
const (
	KindVehicles        = "vehicles"
	KindVehicleDetail   = "vehicle_detail"
	KindVehicleCompare  = "vehicle_compare"
	KindVehicleSearch   = "vehicle_search"
	KindCart            = "cart"
	KindOrders          = "orders"
	KindOrderTracking   = "order_tracking"
	KindDealerConfig    = "dealer_config"
	KindRecommendations = "recommendations"
)

// Vehicle is one listed car.
type Vehicle struct {
	VIN       string   `json:"vin"`
	Make      string   `json:"make"`
	Model     string   `json:"model"`
	Year      int      `json:"year"`
	Price     float64  `json:"price"`
	BodyStyle string   `json:"body_style"`
	Color     string   `json:"color"`
	Features  []string `json:"features,omitempty"`
	InStock   bool     `json:"in_stock"`
}

// VehicleFilters narrows a listing query. Zero-valued fields are
// omitted from both the cache key and the request.
type VehicleFilters struct {
	Make       string   `json:"make,omitempty"`
	Model      string   `json:"model,omitempty"`
	YearMin    int      `json:"year_min,omitempty"`
	YearMax    int      `json:"year_max,omitempty"`
	PriceMin   float64  `json:"price_min,omitempty"`
	PriceMax   float64  `json:"price_max,omitempty"`
	BodyStyles []string `json:"body_styles,omitempty"`
}

// CartItem is one line in a cart.
type CartItem struct {
	VIN       string  `json:"vin"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Cart is the server-side cart for one session.
type Cart struct {
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
	Subtotal  float64    `json:"subtotal"`
}

// Order is one placed order.
type Order struct {
	OrderID    string  `json:"order_id"`
	CustomerID string  `json:"customer_id"`
	VIN        string  `json:"vin"`
	Status     string  `json:"status"`
	Total      float64 `json:"total"`
	PlacedAt   string  `json:"placed_at"`
}

// OrderTracking is the delivery progress of one order.
type OrderTracking struct {
	OrderID string   `json:"order_id"`
	Status  string   `json:"status"`
	Steps   []string `json:"steps"`
	ETA     string   `json:"eta,omitempty"`
}

// DealerConfig is the per-dealer storefront configuration.
type DealerConfig struct {
	DealerID string          `json:"dealer_id"`
	Name     string          `json:"name"`
	Theme    string          `json:"theme"`
	Currency string          `json:"currency"`
	Features map[string]bool `json:"features,omitempty"`
}

// Recommendation is one suggested vehicle.
type Recommendation struct {
	VIN    string  `json:"vin"`
	Reason string  `json:"reason"`
	Score  float64 `json:"score"`
}
