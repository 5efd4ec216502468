package cart

import "github.com/shopspring/decimal"

// Key identifies a line item. Two items are the same iff both ids match.
type Key struct {
	ProductID int64
	ShopID    int64
}

// LineItem is one product-and-quantity entry scoped to a shop. The JSON
// names match the persisted cart format of the mobile clients.
type LineItem struct {
	ProductID  int64           `json:"id" validate:"gt=0"`
	ShopID     int64           `json:"shopId" validate:"gt=0"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"price" validate:"nonnegative"`
	Quantity   int             `json:"quantity" validate:"min=1"`
	ShopName   string          `json:"shopName,omitempty"`
	PictureRef string          `json:"picture,omitempty"`
}

// Key returns the identity key of the item.
func (i LineItem) Key() Key {
	return Key{ProductID: i.ProductID, ShopID: i.ShopID}
}

// Subtotal is UnitPrice x Quantity.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ShopGroup is the slice of a cart belonging to one shop.
type ShopGroup struct {
	ShopID   int64
	ShopName string
	Items    []LineItem
}

// Subtotal sums the group's line subtotals.
func (g ShopGroup) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range g.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Quantity sums the group's quantities.
func (g ShopGroup) Quantity() int {
	n := 0
	for _, item := range g.Items {
		n = addQuantity(n, item.Quantity)
	}
	return n
}
