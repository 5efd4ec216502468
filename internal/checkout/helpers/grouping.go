package helpers

import (
	"github.com/shopspring/decimal"

	"github.com/thequtt/qutt-client/internal/cart"
	"github.com/thequtt/qutt-client/pkg/checkout"
)

// ShopOrdersFromGroups turns cart groups into order requests, one per shop,
// in ascending shop id order.
func ShopOrdersFromGroups(groups map[int64]cart.ShopGroup) []checkout.ShopOrder {
	ids := cart.ShopIDs(groups)
	orders := make([]checkout.ShopOrder, 0, len(ids))
	for _, id := range ids {
		group := groups[id]
		lines := make([]checkout.OrderLine, 0, len(group.Items))
		for _, item := range group.Items {
			lines = append(lines, checkout.OrderLine{
				ProductID: item.ProductID,
				ShopID:    id,
				Quantity:  item.Quantity,
			})
		}
		orders = append(orders, checkout.ShopOrder{
			ShopID:   id,
			ShopName: group.ShopName,
			Lines:    lines,
		})
	}
	return orders
}

// ShopTotals captures pre-calculated totals for one shop.
type ShopTotals struct {
	ShopID    int64
	Subtotal  decimal.Decimal
	ItemCount int
}

// ComputeTotalsByShop returns the subtotal and quantity of every group.
func ComputeTotalsByShop(groups map[int64]cart.ShopGroup) map[int64]ShopTotals {
	results := make(map[int64]ShopTotals, len(groups))
	for id, group := range groups {
		results[id] = ShopTotals{
			ShopID:    id,
			Subtotal:  group.Subtotal(),
			ItemCount: group.Quantity(),
		}
	}
	return results
}
