package storefront

import (
	"context"
	"fmt"

	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/transport"
)

// OrderService lists, tracks, places and cancels orders. Placing an
// order commits the cart server-side, so it invalidates both the order
// list and the cart.
type OrderService struct {
	engine *engine.Engine
	api    *transport.Adapter
	log    *logger.CtxZapLogger
}

func NewOrderService(e *engine.Engine, api *transport.Adapter, log *logger.CtxZapLogger) *OrderService {
	s := &OrderService{engine: e, api: api, log: log}
	e.RegisterFetcher(KindOrders, s.fetchOrders)
	e.RegisterFetcher(KindOrderTracking, s.fetchTracking)
	return s
}

// List returns the orders of one customer.
func (s *OrderService) List(ctx context.Context, customerID string) ([]Order, error) {
	res, err := s.engine.Query(ctx, KindOrders,
		map[string]any{"customer_id": customerID},
		engine.WithEnabled(customerID != ""))
	if err != nil {
		return nil, err
	}
	return decode[[]Order](res.Data, KindOrders)
}

// Track returns delivery progress; tracking moves often, so callers
// usually pair this with a short stale window in configuration.
func (s *OrderService) Track(ctx context.Context, orderID string) (OrderTracking, error) {
	res, err := s.engine.Query(ctx, KindOrderTracking,
		map[string]any{"order_id": orderID},
		engine.WithEnabled(orderID != ""))
	if err != nil {
		return OrderTracking{}, err
	}
	return decode[OrderTracking](res.Data, KindOrderTracking)
}

// PlaceOrderRequest is the checkout payload.
type PlaceOrderRequest struct {
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
	Payment    string `json:"payment_method"`
}

// Place submits the checkout. No optimistic update: an order id only
// exists once the server assigns it. The customer's order list and the
// session cart are invalidated after the response lands.
func (s *OrderService) Place(ctx context.Context, req PlaceOrderRequest) (Order, error) {
	if req.SessionID == "" || req.CustomerID == "" {
		return Order{}, fmt.Errorf("storefront: place order needs a session and a customer")
	}
	res, err := s.engine.Mutate(ctx, engine.MutationRequest{
		Kind: "order.place",
		Execute: func(mctx context.Context) (any, error) {
			var out Order
			if err := s.api.ExecuteJSON(mctx, transport.Post("/api/orders").WithJSON(req), &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		Invalidates: []engine.InvalidationTarget{
			{Kind: KindOrders, Params: map[string]any{"customer_id": req.CustomerID}},
			{Kind: KindCart, Params: cartKeyParams(req.SessionID)},
		},
	})
	if err != nil {
		return Order{}, err
	}
	return decode[Order](res.Data, "order")
}

// Cancel cancels an order, optimistically flipping its status in the
// customer's cached order list.
func (s *OrderService) Cancel(ctx context.Context, customerID, orderID string) (Order, error) {
	res, err := s.engine.Mutate(ctx, engine.MutationRequest{
		Kind: "order.cancel",
		Execute: func(mctx context.Context) (any, error) {
			var out Order
			if err := s.api.ExecuteJSON(mctx, transport.Post("/api/orders/"+orderID+"/cancel"), &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		Optimistic: []engine.OptimisticUpdate{{
			Kind:   KindOrders,
			Params: map[string]any{"customer_id": customerID},
			Transform: func(current any) any {
				orders, _ := current.([]Order)
				out := append([]Order{}, orders...)
				for i := range out {
					if out[i].OrderID == orderID {
						out[i].Status = "cancelled"
					}
				}
				return out
			},
		}},
		Invalidates: []engine.InvalidationTarget{
			{Kind: KindOrderTracking, Params: map[string]any{"order_id": orderID}},
		},
	})
	if err != nil {
		return Order{}, err
	}
	return decode[Order](res.Data, "order")
}

func (s *OrderService) fetchOrders(ctx context.Context, params any) (any, error) {
	customerID := stringParam(params, "customer_id")
	if customerID == "" {
		return nil, fmt.Errorf("storefront: orders fetch without customer id")
	}
	var out struct {
		Orders []Order `json:"orders"`
	}
	req := transport.Get("/api/orders").WithQuery("customer_id", customerID)
	if err := s.api.ExecuteJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (s *OrderService) fetchTracking(ctx context.Context, params any) (any, error) {
	orderID := stringParam(params, "order_id")
	if orderID == "" {
		return nil, fmt.Errorf("storefront: tracking fetch without order id")
	}
	var out OrderTracking
	if err := s.api.ExecuteJSON(ctx, transport.Get("/api/orders/"+orderID+"/tracking"), &out); err != nil {
		return nil, err
	}
	return out, nil
}
