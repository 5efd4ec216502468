package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/thequtt/qutt-client/internal/backend"
	"github.com/thequtt/qutt-client/internal/cart"
	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
	"github.com/thequtt/qutt-client/pkg/storage"
)

type stubOrders struct {
	requests []backend.CreateOrderRequest
	failShop int64
	err      error
	during   func()
}

func (s *stubOrders) CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (*backend.Order, error) {
	s.requests = append(s.requests, req)
	if s.during != nil {
		s.during()
	}
	if s.failShop != 0 && req.Items[0].ShopID == s.failShop {
		return nil, s.err
	}
	return &backend.Order{OrderID: "order-" + decimal.NewFromInt(req.Items[0].ShopID).String(), Status: "PENDING"}, nil
}

func newCart(t *testing.T) *cart.Cart {
	t.Helper()
	c, err := cart.New(cart.Options{Store: storage.NewMemoryStore()})
	if err != nil {
		t.Fatalf("new cart: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	add := func(productID, shopID int64, price string, qty int) {
		if err := c.AddItem(cart.LineItem{ProductID: productID, ShopID: shopID, Name: "p", UnitPrice: decimal.RequireFromString(price), Quantity: qty, ShopName: "shop"}); err != nil {
			t.Fatalf("add item: %v", err)
		}
	}
	add(1, 6, "10", 2)
	add(2, 5, "5", 3)
	add(3, 6, "1", 1)
	return c
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(nil, &stubOrders{}, nil); err == nil {
		t.Fatal("expected error without cart")
	}
	if _, err := NewService(newCart(t), nil, nil); err == nil {
		t.Fatal("expected error without order creator")
	}
}

func TestPlaceOrdersOnePerShop(t *testing.T) {
	c := newCart(t)
	orders := &stubOrders{}
	svc, err := NewService(c, orders, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.PlaceOrders(context.Background())
	if err != nil {
		t.Fatalf("place orders: %v", err)
	}
	if len(orders.requests) != 2 {
		t.Fatalf("expected 2 order requests, got %d", len(orders.requests))
	}
	if orders.requests[0].Items[0].ShopID != 5 || orders.requests[1].Items[0].ShopID != 6 {
		t.Fatalf("expected shops in ascending order, got %+v", orders.requests)
	}
	if len(orders.requests[1].Items) != 2 {
		t.Fatalf("expected shop 6 order to carry 2 lines, got %d", len(orders.requests[1].Items))
	}
	if len(result.Orders) != 2 || result.Orders[1].OrderID != "order-6" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.Orders[1].Subtotal.Equal(decimal.NewFromInt(21)) || result.Orders[1].ItemCount != 3 {
		t.Fatalf("unexpected shop 6 totals %+v", result.Orders[1])
	}
	if c.Len() != 0 {
		t.Fatalf("expected cart cleared, %d lines left", c.Len())
	}
}

func TestPlaceOrdersKeepsLinesAddedDuringSubmission(t *testing.T) {
	c := newCart(t)
	orders := &stubOrders{}
	orders.during = func() {
		orders.during = nil
		if err := c.AddItem(cart.LineItem{ProductID: 9, ShopID: 7, Name: "late", UnitPrice: decimal.NewFromInt(2), Quantity: 1}); err != nil {
			t.Errorf("add item: %v", err)
		}
	}
	svc, _ := NewService(c, orders, nil)

	if _, err := svc.PlaceOrders(context.Background()); err != nil {
		t.Fatalf("place orders: %v", err)
	}
	if len(orders.requests) != 2 {
		t.Fatalf("expected 2 order requests, got %d", len(orders.requests))
	}
	items := c.Items()
	if len(items) != 1 || items[0].ProductID != 9 || items[0].ShopID != 7 {
		t.Fatalf("line added during checkout must stay in the cart, got %+v", items)
	}
}

func TestPlaceOrdersPartialFailure(t *testing.T) {
	c := newCart(t)
	orders := &stubOrders{failShop: 6, err: pkgerrors.New(pkgerrors.CodeForbidden, "shop closed")}
	svc, _ := NewService(c, orders, nil)

	result, err := svc.PlaceOrders(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden code, got %v", err)
	}
	if result == nil || len(result.Orders) != 1 || result.Orders[0].ShopID != 5 || result.FailedShop != 6 {
		t.Fatalf("unexpected partial result %+v", result)
	}
	groups := c.GroupByShop()
	if _, ok := groups[5]; ok {
		t.Fatal("placed shop must be removed from the cart")
	}
	if len(groups[6].Items) != 2 {
		t.Fatalf("failed shop must stay in the cart, got %+v", groups[6])
	}
}

func TestPlaceOrdersPlainErrorIsDependency(t *testing.T) {
	c := newCart(t)
	svc, _ := NewService(c, &stubOrders{failShop: 5, err: errors.New("connection reset")}, nil)
	_, err := svc.PlaceOrders(context.Background())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency code, got %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("nothing placed, cart must be untouched; got %d lines", c.Len())
	}
}

func TestPlaceOrdersEmptyCart(t *testing.T) {
	c, err := cart.New(cart.Options{Store: storage.NewMemoryStore()})
	if err != nil {
		t.Fatalf("new cart: %v", err)
	}
	defer func() { _ = c.Close(context.Background()) }()
	orders := &stubOrders{}
	svc, _ := NewService(c, orders, nil)

	_, err = svc.PlaceOrders(context.Background())
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(orders.requests) != 0 {
		t.Fatal("no orders should be sent for an empty cart")
	}
}
