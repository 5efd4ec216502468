package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thequtt/qutt-client/pkg/auth/authtest"
	"github.com/thequtt/qutt-client/pkg/config"
	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
)

type placedRequest struct {
	auth  string
	items []map[string]any
}

type harness struct {
	t      *testing.T
	cfg    *config.Config
	access string

	mu     sync.Mutex
	orders []placedRequest
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, access: authtest.Mint(t, 7, time.Now().Add(time.Hour))}

	r := chi.NewRouter()
	r.Post("/users/token/", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, map[string]string{"access": h.access, "refresh": "refresh-1"})
	})
	r.Get("/products/shops/{shopID}/with-products/", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "shopID") {
		case "3":
			writeBody(w, http.StatusOK, map[string]any{
				"id":   3,
				"name": "Green Farm",
				"products": []map[string]any{
					{"id": 11, "shop": 3, "name": "Eggs", "price": "2.50", "quantity": 40},
				},
			})
		case "4":
			writeBody(w, http.StatusOK, map[string]any{
				"id":   4,
				"name": "Bakery",
				"products": []map[string]any{
					{"id": 21, "shop": 4, "name": "Bread", "price": "4.00", "quantity": 10},
				},
			})
		default:
			writeBody(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		}
	})
	r.Post("/orders/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Items []map[string]any `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeBody(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		h.mu.Lock()
		h.orders = append(h.orders, placedRequest{auth: r.Header.Get("Authorization"), items: body.Items})
		h.mu.Unlock()
		writeBody(w, http.StatusCreated, map[string]any{
			"order_id":  uuid.NewString(),
			"status":    "PENDING",
			"total_sum": "0",
			"items":     []any{},
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	h.cfg = &config.Config{
		App: config.AppConfig{Env: config.AppEnvDev, LogLevel: "error"},
		API: config.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second, UserAgent: "qutt-test"},
		Auth: config.AuthConfig{
			RefreshCooldown: 30 * time.Second,
			RefreshLeadTime: 5 * time.Minute,
			RefreshMinDelay: time.Minute,
			StoreTimeout:    5 * time.Second,
		},
		Storage: config.StorageConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "qutt.db")},
		Cart:    config.CartConfig{PersistTimeout: 5 * time.Second},
	}
	return h
}

func writeBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *harness) run(args ...string) (string, error) {
	var out bytes.Buffer
	c := &cli{
		out:       &out,
		logOutput: io.Discard,
		loadConfig: func() (*config.Config, error) {
			cfg := *h.cfg
			return &cfg, nil
		},
	}
	err := execute(context.Background(), c, args)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "qutt %v", args)
	return out
}

func TestVersionSkipsConfig(t *testing.T) {
	var out bytes.Buffer
	c := &cli{
		out:       &out,
		logOutput: io.Discard,
		loadConfig: func() (*config.Config, error) {
			return nil, errors.New("config must not be loaded")
		},
	}
	require.NoError(t, execute(context.Background(), c, []string{"version"}))
	assert.Contains(t, out.String(), "qutt version "+Version)
}

func TestConfigErrorIsReported(t *testing.T) {
	c := &cli{
		out:       io.Discard,
		logOutput: io.Discard,
		loadConfig: func() (*config.Config, error) {
			return nil, errors.New("boom")
		},
	}
	err := execute(context.Background(), c, []string{"status"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestLoginCartCheckoutFlow(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("status")
	assert.Contains(t, out, "session: unauthenticated")

	out = h.mustRun("login", "--email", "ana@example.com", "--password", "hunter22")
	assert.Contains(t, out, "signed in as user 7")

	h.mustRun("cart", "add", "3", "11", "2")
	h.mustRun("cart", "add", "4", "21")

	out = h.mustRun("status")
	assert.Contains(t, out, "session: authenticated")
	assert.Contains(t, out, "user: 7")
	assert.Contains(t, out, "cart: 3 item(s), total 9.00")

	out = h.mustRun("checkout")
	assert.Contains(t, out, "at Green Farm (2 item(s), 5.00)")
	assert.Contains(t, out, "at Bakery (1 item(s), 4.00)")

	h.mu.Lock()
	require.Len(t, h.orders, 2)
	first, second := h.orders[0], h.orders[1]
	h.mu.Unlock()
	assert.Equal(t, "Bearer "+h.access, first.auth)
	require.Len(t, first.items, 1)
	assert.EqualValues(t, 3, first.items[0]["shop_id"])
	assert.EqualValues(t, 11, first.items[0]["product_id"])
	assert.EqualValues(t, 2, first.items[0]["quantity"])
	require.Len(t, second.items, 1)
	assert.EqualValues(t, 4, second.items[0]["shop_id"])

	out = h.mustRun("cart", "list")
	assert.Contains(t, out, "cart is empty")

	h.mustRun("logout")
	out = h.mustRun("status")
	assert.Contains(t, out, "session: unauthenticated")
}

func TestCartEditsPersistAcrossRuns(t *testing.T) {
	h := newHarness(t)

	h.mustRun("cart", "add", "3", "11", "1")
	h.mustRun("cart", "add", "3", "11", "2")
	h.mustRun("cart", "add", "4", "21", "1")
	h.mustRun("cart", "update", "3", "11", "5")
	h.mustRun("cart", "remove", "4", "21")

	out := h.mustRun("--json", "cart", "list")
	var view cartView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Shops, 1)
	assert.Equal(t, int64(3), view.Shops[0].ShopID)
	assert.Equal(t, "Green Farm", view.Shops[0].ShopName)
	require.Len(t, view.Shops[0].Items, 1)
	assert.Equal(t, 5, view.Shops[0].Items[0].Quantity)
	assert.Equal(t, "12.50", view.Total)

	h.mustRun("cart", "update", "3", "11", "0")
	out = h.mustRun("cart", "list")
	assert.Contains(t, out, "cart is empty")
}

func TestCartAddRejectsUnknownProduct(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("cart", "add", "3", "99")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = h.run("cart", "add", "3", "abc")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCheckoutRequiresSession(t *testing.T) {
	h := newHarness(t)
	h.mustRun("cart", "add", "3", "11")

	_, err := h.run("checkout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign in")

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Empty(t, h.orders)
}

func TestStatusJSONIncludesCounters(t *testing.T) {
	h := newHarness(t)
	h.mustRun("login", "--email", "ana@example.com", "--password", "hunter22")

	out := h.mustRun("--json", "status", "--metrics")
	var view statusView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.True(t, view.Authenticated)
	require.NotNil(t, view.Token)
	assert.Equal(t, strconv.Itoa(7), view.Token.UserID)
	assert.NotEmpty(t, view.NextRefresh)
	assert.Equal(t, 0, view.CartItems)
}
