package helpers

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/thequtt/qutt-client/internal/cart"
)

func groups() map[int64]cart.ShopGroup {
	return map[int64]cart.ShopGroup{
		9: {ShopID: 9, ShopName: "Bakery", Items: []cart.LineItem{
			{ProductID: 4, ShopID: 9, UnitPrice: decimal.NewFromInt(2), Quantity: 5},
		}},
		5: {ShopID: 5, ShopName: "Green Farm", Items: []cart.LineItem{
			{ProductID: 1, ShopID: 5, UnitPrice: decimal.NewFromInt(10), Quantity: 2},
			{ProductID: 2, ShopID: 5, UnitPrice: decimal.RequireFromString("0.5"), Quantity: 3},
		}},
	}
}

func TestShopOrdersFromGroupsOrdersByShop(t *testing.T) {
	orders := ShopOrdersFromGroups(groups())
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ShopID != 5 || orders[1].ShopID != 9 {
		t.Fatalf("expected ascending shop ids, got %d, %d", orders[0].ShopID, orders[1].ShopID)
	}
	if orders[0].ShopName != "Green Farm" {
		t.Fatalf("unexpected shop name %q", orders[0].ShopName)
	}
	if len(orders[0].Lines) != 2 || orders[0].Lines[1].ProductID != 2 || orders[0].Lines[1].Quantity != 3 {
		t.Fatalf("unexpected lines %+v", orders[0].Lines)
	}
	for _, order := range orders {
		for _, line := range order.Lines {
			if line.ShopID != order.ShopID {
				t.Fatalf("line %+v tagged with wrong shop", line)
			}
		}
	}
}

func TestComputeTotalsByShop(t *testing.T) {
	totals := ComputeTotalsByShop(groups())
	if got := totals[5]; !got.Subtotal.Equal(decimal.RequireFromString("21.5")) || got.ItemCount != 5 {
		t.Fatalf("unexpected totals for shop 5: %+v", got)
	}
	if got := totals[9]; !got.Subtotal.Equal(decimal.NewFromInt(10)) || got.ItemCount != 5 {
		t.Fatalf("unexpected totals for shop 9: %+v", got)
	}
}
