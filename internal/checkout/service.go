// Package checkout splits the cart into one order per shop and submits them.
package checkout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/thequtt/qutt-client/internal/backend"
	"github.com/thequtt/qutt-client/internal/cart"
	"github.com/thequtt/qutt-client/internal/checkout/helpers"
	"github.com/thequtt/qutt-client/pkg/checkout"
	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
	"github.com/thequtt/qutt-client/pkg/logger"
)

type cartSource interface {
	GroupByShop() map[int64]cart.ShopGroup
	RemoveShop(shopID int64)
}

type orderCreator interface {
	CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (*backend.Order, error)
}

// Service executes checkout orchestration.
type Service interface {
	PlaceOrders(ctx context.Context) (*Result, error)
}

// PlacedOrder is an order the backend accepted.
type PlacedOrder struct {
	ShopID    int64
	ShopName  string
	OrderID   string
	Subtotal  decimal.Decimal
	ItemCount int
}

// Result lists the orders placed by one checkout. On a partial failure it
// holds the orders placed before the failing shop.
type Result struct {
	Orders     []PlacedOrder
	FailedShop int64
}

type service struct {
	cart   cartSource
	orders orderCreator
	logg   *logger.Logger
}

// NewService builds a checkout service.
func NewService(c cartSource, orders orderCreator, logg *logger.Logger) (Service, error) {
	if c == nil {
		return nil, fmt.Errorf("cart required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{cart: c, orders: orders, logg: logg}, nil
}

// PlaceOrders submits one order per shop in ascending shop id order. Every
// shop that was ordered is removed from the cart, so lines added while the
// orders were in flight survive. When one order fails, the error is returned
// alongside the partial result and a retry does not duplicate the shops
// already ordered.
func (s *service) PlaceOrders(ctx context.Context) (*Result, error) {
	groups := s.cart.GroupByShop()
	if len(groups) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	shopOrders := helpers.ShopOrdersFromGroups(groups)
	if err := checkout.ValidateShopOrders(shopOrders); err != nil {
		return nil, err
	}
	totals := helpers.ComputeTotalsByShop(groups)

	result := &Result{}
	for _, shopOrder := range shopOrders {
		shopCtx := s.logg.WithShopID(ctx, shopOrder.ShopID)
		order, err := s.orders.CreateOrder(shopCtx, backend.CreateOrderRequest{Items: shopOrder.Lines})
		if err != nil {
			s.logg.Error(shopCtx, "order placement failed", err)
			s.removePlaced(result)
			result.FailedShop = shopOrder.ShopID
			return result, pkgerrors.Wrap(codeOf(err), err, fmt.Sprintf("placing order for shop %d", shopOrder.ShopID)).WithDetails(map[string]any{
				"placed_orders": len(result.Orders),
				"failed_shop":   shopOrder.ShopID,
			})
		}
		s.logg.Info(s.logg.WithField(shopCtx, "order_id", order.OrderID), "order placed")
		result.Orders = append(result.Orders, PlacedOrder{
			ShopID:    shopOrder.ShopID,
			ShopName:  shopOrder.ShopName,
			OrderID:   order.OrderID,
			Subtotal:  totals[shopOrder.ShopID].Subtotal,
			ItemCount: totals[shopOrder.ShopID].ItemCount,
		})
	}
	s.removePlaced(result)
	return result, nil
}

func (s *service) removePlaced(result *Result) {
	for _, placed := range result.Orders {
		s.cart.RemoveShop(placed.ShopID)
	}
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return pkgerrors.CodeDependency
}
