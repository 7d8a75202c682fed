package storefront

import (
	"context"
	"fmt"

	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/transport"
)

// CartService reads and mutates the session cart. Mutations rewrite
// the cached cart optimistically and roll back when the server rejects
// the change; the server response is always the final cart state.
type CartService struct {
	engine *engine.Engine
	api    *transport.Adapter
	log    *logger.CtxZapLogger
}

func NewCartService(e *engine.Engine, api *transport.Adapter, log *logger.CtxZapLogger) *CartService {
	s := &CartService{engine: e, api: api, log: log}
	e.RegisterFetcher(KindCart, s.fetchCart)
	return s
}

func cartKeyParams(sessionID string) map[string]any {
	return map[string]any{"session_id": sessionID}
}

// Get returns the cart for a session.
func (s *CartService) Get(ctx context.Context, sessionID string) (Cart, error) {
	res, err := s.engine.Query(ctx, KindCart, cartKeyParams(sessionID),
		engine.WithEnabled(sessionID != ""))
	if err != nil {
		return Cart{}, err
	}
	return decode[Cart](res.Data, KindCart)
}

// AddItem adds a vehicle to the cart. The cached cart shows the new
// line immediately; a rejected add restores the previous cart.
func (s *CartService) AddItem(ctx context.Context, sessionID string, item CartItem) (Cart, error) {
	if sessionID == "" || item.VIN == "" {
		return Cart{}, fmt.Errorf("storefront: add item needs a session and a vin")
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	return s.mutateCart(ctx, sessionID, "cart.add_item",
		func(cart Cart) Cart {
			cart.Items = append(append([]CartItem{}, cart.Items...), item)
			cart.Subtotal += float64(item.Quantity) * item.UnitPrice
			return cart
		},
		func(mctx context.Context) (any, error) {
			return s.executeCart(mctx, transport.Post("/api/cart/"+sessionID+"/items").WithJSON(item))
		},
	)
}

// UpdateItemQuantity changes the quantity of one line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, sessionID, vin string, quantity int) (Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, sessionID, vin)
	}
	return s.mutateCart(ctx, sessionID, "cart.update_quantity",
		func(cart Cart) Cart {
			items := append([]CartItem{}, cart.Items...)
			for i := range items {
				if items[i].VIN == vin {
					items[i].Quantity = quantity
				}
			}
			cart.Items = items
			cart.Subtotal = subtotal(items)
			return cart
		},
		func(mctx context.Context) (any, error) {
			return s.executeCart(mctx,
				transport.Put("/api/cart/"+sessionID+"/items/"+vin).
					WithJSON(map[string]int{"quantity": quantity}))
		},
	)
}

// RemoveItem deletes one line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, vin string) (Cart, error) {
	return s.mutateCart(ctx, sessionID, "cart.remove_item",
		func(cart Cart) Cart {
			items := make([]CartItem, 0, len(cart.Items))
			for _, it := range cart.Items {
				if it.VIN != vin {
					items = append(items, it)
				}
			}
			cart.Items = items
			cart.Subtotal = subtotal(items)
			return cart
		},
		func(mctx context.Context) (any, error) {
			return s.executeCart(mctx, transport.Delete("/api/cart/"+sessionID+"/items/"+vin))
		},
	)
}

// mutateCart runs one cart mutation: optimistic rewrite, server call,
// authoritative write-back, recommendation invalidation.
func (s *CartService) mutateCart(ctx context.Context, sessionID, kind string, rewrite func(Cart) Cart, execute func(context.Context) (any, error)) (Cart, error) {
	res, err := s.engine.Mutate(ctx, engine.MutationRequest{
		Kind:    kind,
		Execute: execute,
		Optimistic: []engine.OptimisticUpdate{{
			Kind:   KindCart,
			Params: cartKeyParams(sessionID),
			Transform: func(current any) any {
				cart, _ := current.(Cart)
				cart.SessionID = sessionID
				return rewrite(cart)
			},
		}},
		ApplyToKind:   KindCart,
		ApplyToParams: cartKeyParams(sessionID),
		Invalidates: []engine.InvalidationTarget{
			{Kind: KindRecommendations, WholeKind: true},
		},
	})
	if err != nil {
		return Cart{}, err
	}
	return decode[Cart](res.Data, KindCart)
}

func (s *CartService) fetchCart(ctx context.Context, params any) (any, error) {
	sessionID := stringParam(params, "session_id")
	if sessionID == "" {
		return nil, fmt.Errorf("storefront: cart fetch without session id")
	}
	return s.executeCart(ctx, transport.Get("/api/cart/"+sessionID))
}

func (s *CartService) executeCart(ctx context.Context, req *transport.Request) (any, error) {
	var out Cart
	if err := s.api.ExecuteJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func subtotal(items []CartItem) float64 {
	var total float64
	for _, it := range items {
		total += float64(it.Quantity) * it.UnitPrice
	}
	return total
}
