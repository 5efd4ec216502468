package backend

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
	"github.com/thequtt/qutt-client/pkg/types"
	"github.com/thequtt/qutt-client/pkg/validators"
)

const (
	pathShops     = "/products/shops/"
	pathMyShops   = "/products/my-shops/"
	pathProducts  = "/products/products/"
	pathLocations = "/map/locations/"

	defaultProductCategory = "other"
)

// Shop is a shop or farm as listed by the backend.
type Shop struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Address      string          `json:"address,omitempty"`
	Category     types.Ref       `json:"category"`
	OpeningHours string          `json:"opening_hours,omitempty"`
	Picture      string          `json:"picture,omitempty"`
	Location     *types.Location `json:"location,omitempty"`
	IsActive     *bool           `json:"is_active,omitempty"`
}

// Product is a product offered by a shop.
type Product struct {
	ID          int64           `json:"id"`
	Shop        types.Ref       `json:"shop"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Category    string          `json:"category,omitempty"`
	Picture     string          `json:"picture,omitempty"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// ShopWithProducts is the shop detail view including its catalogue.
type ShopWithProducts struct {
	Shop
	Products []Product `json:"products"`
}

// NewProduct is the body of POST /products/products/.
type NewProduct struct {
	ShopID      int64           `json:"shop" validate:"gt=0"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"nonnegative"`
	Quantity    int             `json:"quantity" validate:"min=0"`
	Category    string          `json:"category"`
	Picture     *string         `json:"picture"`
}

// Shops lists every shop.
func (c *Client) Shops(ctx context.Context) ([]Shop, error) {
	var shops []Shop
	if err := c.do(ctx, call{op: "shops.list", method: http.MethodGet, path: pathShops, out: &shops, auth: authOptional}); err != nil {
		return nil, err
	}
	return shops, nil
}

// Shop fetches one shop.
func (c *Client) Shop(ctx context.Context, shopID int64) (*Shop, error) {
	if shopID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id must be positive")
	}
	var shop Shop
	path := fmt.Sprintf("%s%d/", pathShops, shopID)
	if err := c.do(ctx, call{op: "shops.get", method: http.MethodGet, path: path, out: &shop, auth: authOptional}); err != nil {
		return nil, err
	}
	return &shop, nil
}

// ShopWithProducts fetches a shop together with its products.
func (c *Client) ShopWithProducts(ctx context.Context, shopID int64) (*ShopWithProducts, error) {
	if shopID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id must be positive")
	}
	var shop ShopWithProducts
	path := fmt.Sprintf("%s%d/with-products/", pathShops, shopID)
	if err := c.do(ctx, call{op: "shops.with_products", method: http.MethodGet, path: path, out: &shop, auth: authOptional}); err != nil {
		return nil, err
	}
	return &shop, nil
}

// ShopProducts lists the products of one shop.
func (c *Client) ShopProducts(ctx context.Context, shopID int64) ([]Product, error) {
	if shopID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id must be positive")
	}
	var products []Product
	path := fmt.Sprintf("%s%d/products/", pathShops, shopID)
	if err := c.do(ctx, call{op: "shops.products", method: http.MethodGet, path: path, out: &products, auth: authOptional}); err != nil {
		return nil, err
	}
	return products, nil
}

// MyShops lists the shops owned by the signed-in user.
func (c *Client) MyShops(ctx context.Context) ([]Shop, error) {
	var shops []Shop
	if err := c.do(ctx, call{op: "shops.mine", method: http.MethodGet, path: pathMyShops, out: &shops, auth: authRequired}); err != nil {
		return nil, err
	}
	return shops, nil
}

// IsShopOwner reports whether the user owns at least one shop. A 403 means
// the account has no owner role and is not an error.
func (c *Client) IsShopOwner(ctx context.Context) (bool, []Shop, error) {
	shops, err := c.MyShops(ctx)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return len(shops) > 0, shops, nil
}

// CreateProduct adds a product to one of the user's shops.
func (c *Client) CreateProduct(ctx context.Context, req NewProduct) (*Product, error) {
	req.Name = validators.SanitizeString(req.Name, 0)
	req.Description = validators.SanitizeString(req.Description, 0)
	if req.Category == "" {
		req.Category = defaultProductCategory
	}
	if err := validators.Struct(req); err != nil {
		return nil, err
	}
	var product Product
	if err := c.do(ctx, call{op: "products.create", method: http.MethodPost, path: pathProducts, body: req, out: &product, auth: authRequired}); err != nil {
		return nil, err
	}
	return &product, nil
}

// Locations lists the map locations shops are attached to.
func (c *Client) Locations(ctx context.Context) ([]types.Location, error) {
	var locations []types.Location
	if err := c.do(ctx, call{op: "map.locations", method: http.MethodGet, path: pathLocations, out: &locations, auth: authOptional}); err != nil {
		return nil, err
	}
	return locations, nil
}

// ShopDistance pairs a shop with its distance from a reference point.
type ShopDistance struct {
	Shop       Shop
	DistanceKm float64
}

// NearestShops orders shops with a valid location by distance from
// (lat, lng). Shops without a location are left out.
func NearestShops(shops []Shop, lat, lng float64) []ShopDistance {
	out := make([]ShopDistance, 0, len(shops))
	for _, shop := range shops {
		if shop.Location == nil || shop.Location.Validate() != nil {
			continue
		}
		out = append(out, ShopDistance{Shop: shop, DistanceKm: shop.Location.DistanceKm(lat, lng)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}
