package backend

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thequtt/qutt-client/pkg/checkout"
	"github.com/thequtt/qutt-client/pkg/enums"
	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
)

const (
	pathOrders     = "/orders/"
	pathShopOrders = "/orders/shop-orders/"
)

// OrderItem is one line of a placed order.
type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	ShopID      int64           `json:"shop_id,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Order is an order as returned by the backend.
type Order struct {
	OrderID         string          `json:"order_id"`
	Status          string          `json:"status"`
	ShopNames       []string        `json:"shop_names,omitempty"`
	UserName        string          `json:"user_name,omitempty"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	TotalSum        decimal.Decimal `json:"total_sum"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []OrderItem     `json:"items"`
}

// OrderStatus parses Status, reporting false for values the client does
// not know.
func (o Order) OrderStatus() (enums.OrderStatus, bool) {
	status, err := enums.ParseOrderStatus(o.Status)
	return status, err == nil
}

// CreateOrderRequest is the body of POST /orders/. All lines belong to one shop.
type CreateOrderRequest struct {
	Items []checkout.OrderLine `json:"items"`
}

// Orders lists the signed-in user's orders.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, call{op: "orders.list", method: http.MethodGet, path: pathOrders, out: &orders, auth: authRequired}); err != nil {
		return nil, err
	}
	return orders, nil
}

// Order fetches one order by its public id.
func (c *Client) Order(ctx context.Context, orderID string) (*Order, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	var order Order
	if err := c.do(ctx, call{op: "orders.get", method: http.MethodGet, path: pathOrders + id.String() + "/", out: &order, auth: authRequired}); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder places one order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	var order Order
	if err := c.do(ctx, call{op: "orders.create", method: http.MethodPost, path: pathOrders, body: req, out: &order, auth: authRequired}); err != nil {
		return nil, err
	}
	return &order, nil
}

// ShopOrders lists the orders received by one of the user's shops.
func (c *Client) ShopOrders(ctx context.Context, shopID int64) ([]Order, error) {
	if shopID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id must be positive")
	}
	var orders []Order
	path := pathShopOrders + strconv.FormatInt(shopID, 10) + "/"
	if err := c.do(ctx, call{op: "orders.shop", method: http.MethodGet, path: path, out: &orders, auth: authRequired}); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus lets a shop owner confirm or reject an order.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status enums.OrderStatus) (*Order, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{"status": status})
	}
	var order Order
	body := map[string]string{"status": status.String()}
	if err := c.do(ctx, call{op: "orders.update_status", method: http.MethodPatch, path: pathOrders + id.String() + "/", body: body, out: &order, auth: authRequired}); err != nil {
		return nil, err
	}
	return &order, nil
}

func parseOrderID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "order id must be a uuid")
	}
	return id, nil
}
