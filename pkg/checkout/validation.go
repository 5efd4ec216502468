package checkout

import (
	"fmt"

	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
)

// OrderLine is one entry of an order request body.
type OrderLine struct {
	ProductID int64 `json:"product_id"`
	ShopID    int64 `json:"shop_id"`
	Quantity  int   `json:"quantity"`
}

// ShopOrder is the set of lines submitted as a single order to one shop.
type ShopOrder struct {
	ShopID   int64
	ShopName string
	Lines    []OrderLine
}

// LineViolation explains why a line cannot be submitted.
type LineViolation struct {
	ShopID    int64  `json:"shop_id"`
	ProductID int64  `json:"product_id,omitempty"`
	Reason    string `json:"reason"`
}

// ValidateShopOrders ensures every order targets one shop, is non-empty, and
// carries each product once with a positive quantity.
func ValidateShopOrders(orders []ShopOrder) error {
	var violations []LineViolation
	seenShops := make(map[int64]struct{}, len(orders))
	for _, order := range orders {
		if order.ShopID <= 0 {
			violations = append(violations, LineViolation{ShopID: order.ShopID, Reason: "shop id must be positive"})
			continue
		}
		if _, dup := seenShops[order.ShopID]; dup {
			violations = append(violations, LineViolation{ShopID: order.ShopID, Reason: "shop appears in more than one order"})
			continue
		}
		seenShops[order.ShopID] = struct{}{}
		if len(order.Lines) == 0 {
			violations = append(violations, LineViolation{ShopID: order.ShopID, Reason: "order has no items"})
			continue
		}
		seenProducts := make(map[int64]struct{}, len(order.Lines))
		for _, line := range order.Lines {
			switch {
			case line.ShopID != order.ShopID:
				violations = append(violations, LineViolation{ShopID: order.ShopID, ProductID: line.ProductID, Reason: fmt.Sprintf("item belongs to shop %d", line.ShopID)})
			case line.Quantity < 1:
				violations = append(violations, LineViolation{ShopID: order.ShopID, ProductID: line.ProductID, Reason: "quantity must be at least 1"})
			default:
				if _, dup := seenProducts[line.ProductID]; dup {
					violations = append(violations, LineViolation{ShopID: order.ShopID, ProductID: line.ProductID, Reason: "product listed twice"})
				}
				seenProducts[line.ProductID] = struct{}{}
			}
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("checkout rejected %d line(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
