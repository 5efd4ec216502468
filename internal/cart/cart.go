// Package cart is the client-side shopping cart: line items keyed by
// (product, shop), merge and quantity rules, per-shop grouping and
// background persistence.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
	"github.com/thequtt/qutt-client/pkg/logger"
	"github.com/thequtt/qutt-client/pkg/metrics"
	"github.com/thequtt/qutt-client/pkg/storage"
	"github.com/thequtt/qutt-client/pkg/validators"
)

const (
	DefaultPersistTimeout = 5 * time.Second

	storeComponent = "cart"
)

// Options configures a Cart.
type Options struct {
	Store          storage.Store
	Logger         *logger.Logger
	Metrics        *metrics.StoreMetrics
	PersistTimeout time.Duration
}

// Cart holds the authoritative in-memory cart. Reads always observe the
// latest mutation; persistence happens afterwards and its failures are
// only logged.
type Cart struct {
	store          storage.Store
	logg           *logger.Logger
	metrics        *metrics.StoreMetrics
	persistTimeout time.Duration

	mu    sync.RWMutex
	items []LineItem

	persister *persister
}

// New returns an empty cart and starts its background writer. Call Load to
// restore the persisted cart and Close to stop the writer.
func New(opts Options) (*Cart, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("cart store is required")
	}
	c := &Cart{
		store:          opts.Store,
		logg:           opts.Logger,
		metrics:        opts.Metrics,
		persistTimeout: opts.PersistTimeout,
	}
	if c.logg == nil {
		c.logg = logger.Nop()
	}
	if c.persistTimeout <= 0 {
		c.persistTimeout = DefaultPersistTimeout
	}
	c.persister = newPersister(c.write)
	return c, nil
}

// Load replaces the in-memory cart with the persisted one. Absent or
// unreadable data yields an empty cart. Lines with a non-positive quantity
// are dropped and duplicate keys are merged.
func (c *Cart) Load(ctx context.Context) {
	items := c.read(ctx)
	c.mu.Lock()
	c.items = normalize(items)
	c.mu.Unlock()
}

func (c *Cart) read(ctx context.Context) []LineItem {
	ctx, cancel := context.WithTimeout(ctx, c.persistTimeout)
	defer cancel()
	raw, err := c.store.Get(ctx, storage.KeyCart)
	if err != nil {
		if !storage.IsNotFound(err) {
			c.metrics.IncFailure(storeComponent, "get")
			c.logg.Error(ctx, "failed to read persisted cart", err)
		}
		return nil
	}
	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.metrics.IncFailure(storeComponent, "decode")
		c.logg.Error(ctx, "failed to decode persisted cart", err)
		return nil
	}
	return items
}

func normalize(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[Key]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if i, ok := index[item.Key()]; ok {
			out[i].Quantity = addQuantity(out[i].Quantity, item.Quantity)
			continue
		}
		index[item.Key()] = len(out)
		out = append(out, item)
	}
	return out
}

// addQuantity sums two positive quantities, saturating at math.MaxInt.
func addQuantity(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// AddItem appends item, or adds its quantity to the existing line with the
// same key leaving that line's other fields as first stored. A merge whose
// sum does not fit in an int is rejected and leaves the cart unchanged.
func (c *Cart) AddItem(item LineItem) error {
	if err := validators.Struct(item); err != nil {
		return err
	}
	var err error
	c.mutateIf(func(items []LineItem) ([]LineItem, bool) {
		i := indexOf(items, item.Key())
		if i < 0 {
			return append(items, item), true
		}
		if items[i].Quantity > math.MaxInt-item.Quantity {
			err = pkgerrors.New(pkgerrors.CodeValidation, "quantity too large").WithDetails(map[string]any{
				"product_id": item.ProductID,
				"shop_id":    item.ShopID,
			})
			return items, false
		}
		items[i].Quantity += item.Quantity
		return items, true
	})
	return err
}

// RemoveItem deletes the matching line. Unknown keys are a no-op.
func (c *Cart) RemoveItem(productID, shopID int64) {
	key := Key{ProductID: productID, ShopID: shopID}
	c.mutateIf(func(items []LineItem) ([]LineItem, bool) {
		i := indexOf(items, key)
		if i < 0 {
			return items, false
		}
		return slices.Delete(items, i, i+1), true
	})
}

// UpdateQuantity sets the quantity of the matching line. A quantity <= 0
// removes it. Unknown keys are a no-op.
func (c *Cart) UpdateQuantity(productID, shopID int64, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID, shopID)
		return
	}
	key := Key{ProductID: productID, ShopID: shopID}
	c.mutateIf(func(items []LineItem) ([]LineItem, bool) {
		i := indexOf(items, key)
		if i < 0 {
			return items, false
		}
		items[i].Quantity = quantity
		return items, true
	})
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mutate(func([]LineItem) []LineItem { return nil })
}

// RemoveShop drops every line belonging to shopID.
func (c *Cart) RemoveShop(shopID int64) {
	c.mutateIf(func(items []LineItem) ([]LineItem, bool) {
		kept := slices.DeleteFunc(items, func(item LineItem) bool { return item.ShopID == shopID })
		return kept, len(kept) != len(items)
	})
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Find returns the line with the given key.
func (c *Cart) Find(productID, shopID int64) (LineItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.items, Key{ProductID: productID, ShopID: shopID}); i >= 0 {
		return c.items[i], true
	}
	return LineItem{}, false
}

// Len is the number of distinct lines.
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Total is the sum of UnitPrice x Quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount is the sum of quantities over all lines.
func (c *Cart) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, item := range c.items {
		n = addQuantity(n, item.Quantity)
	}
	return n
}

// GroupByShop splits the cart by shop in one pass. Within a group, items
// keep their cart order.
func (c *Cart) GroupByShop() map[int64]ShopGroup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	groups := make(map[int64]ShopGroup)
	for _, item := range c.items {
		group, ok := groups[item.ShopID]
		if !ok {
			group = ShopGroup{ShopID: item.ShopID, ShopName: item.ShopName}
		}
		group.Items = append(group.Items, item)
		groups[item.ShopID] = group
	}
	return groups
}

// ShopIDs returns the keys of groups in ascending order.
func ShopIDs(groups map[int64]ShopGroup) []int64 {
	ids := make([]int64, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Flush waits until every mutation made before the call has been handed to
// the store.
func (c *Cart) Flush(ctx context.Context) error {
	return c.persister.Flush(ctx)
}

// Close writes the last pending snapshot and stops the background writer.
// Later mutations still apply in memory but are no longer persisted.
func (c *Cart) Close(ctx context.Context) error {
	return c.persister.Close(ctx)
}

func (c *Cart) mutate(fn func([]LineItem) []LineItem) {
	c.mutateIf(func(items []LineItem) ([]LineItem, bool) {
		return fn(items), true
	})
}

// mutateIf applies fn under the write lock and schedules a persist when fn
// reports a change. The snapshot is encoded before the lock is released so
// persisted order matches mutation order.
func (c *Cart) mutateIf(fn func([]LineItem) ([]LineItem, bool)) {
	c.mu.Lock()
	items, changed := fn(c.items)
	if !changed {
		c.mu.Unlock()
		return
	}
	c.items = items
	data, err := encode(items)
	if err == nil && !c.persister.submit(data) {
		c.logg.Debug(context.Background(), "cart closed, mutation kept in memory only")
	}
	c.mu.Unlock()
	if err != nil {
		c.metrics.IncFailure(storeComponent, "encode")
		c.logg.Error(context.Background(), "failed to encode cart", err)
	}
}

func encode(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}

func (c *Cart) write(data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
	defer cancel()
	if err := c.store.Set(ctx, storage.KeyCart, string(data)); err != nil {
		c.metrics.IncFailure(storeComponent, "set")
		c.logg.Error(ctx, "failed to persist cart", err)
	}
}

func indexOf(items []LineItem, key Key) int {
	return slices.IndexFunc(items, func(item LineItem) bool { return item.Key() == key })
}
