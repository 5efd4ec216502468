package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thequtt/qutt-client/pkg/auth/authtest"
	"github.com/thequtt/qutt-client/pkg/enums"
	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
	"github.com/thequtt/qutt-client/pkg/metrics"
	"github.com/thequtt/qutt-client/pkg/storage"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	manager   *Manager
	store     *failingStore
	refresher *fakeRefresher
	clock     *fakeClock
	registry  *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     &failingStore{MemoryStore: storage.NewMemoryStore()},
		refresher: &fakeRefresher{},
		clock:     newFakeClock(baseTime),
		registry:  prometheus.NewRegistry(),
	}
	mgr, err := NewManager(Options{
		Store:        h.store,
		Refresher:    h.refresher,
		Clock:        h.clock,
		Metrics:      metrics.NewSessionMetrics(h.registry),
		StoreMetrics: metrics.NewStoreMetrics(h.registry),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(mgr.Close)
	h.manager = mgr
	return h
}

func (h *harness) stored(t *testing.T, key string) string {
	t.Helper()
	v, err := h.store.MemoryStore.Get(context.Background(), key)
	if storage.IsNotFound(err) {
		return ""
	}
	require.NoError(t, err)
	return v
}

func (h *harness) seed(t *testing.T, access, refresh string) {
	t.Helper()
	ctx := context.Background()
	if access != "" {
		require.NoError(t, h.store.MemoryStore.Set(ctx, storage.KeyAccessToken, access))
	}
	if refresh != "" {
		require.NoError(t, h.store.MemoryStore.Set(ctx, storage.KeyRefreshToken, refresh))
	}
}

func (h *harness) refreshOutcome(t *testing.T, outcome string) float64 {
	return h.counter(t, "qutt_session_refresh_total", "outcome", outcome)
}

func (h *harness) storeFailures(t *testing.T, op string) float64 {
	return h.counter(t, "qutt_store_failures_total", "op", op)
}

func (h *harness) counter(t *testing.T, name, label, value string) float64 {
	t.Helper()
	mfs, err := h.registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabel(metric, label, value) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name && pair.GetValue() == value {
			return true
		}
	}
	return false
}

func TestNewManagerRequiresCollaborators(t *testing.T) {
	if _, err := NewManager(Options{Refresher: &fakeRefresher{}}); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := NewManager(Options{Store: storage.NewMemoryStore()}); err == nil {
		t.Fatal("expected error without refresher")
	}
}

func TestInitializeWithoutToken(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, enums.AuthStateUninitialized, h.manager.State())

	h.manager.Initialize(context.Background())

	assert.Equal(t, enums.AuthStateUnauthenticated, h.manager.State())
	assert.False(t, h.manager.IsAuthenticated())
	assert.Empty(t, h.clock.Pending())
}

func TestInitializeSwallowsStoreErrors(t *testing.T) {
	h := newHarness(t)
	h.seed(t, authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1")
	h.store.failGet = true

	h.manager.Initialize(context.Background())

	assert.Equal(t, enums.AuthStateUnauthenticated, h.manager.State())
	assert.Zero(t, h.refresher.calls.Load())
}

func TestInitializeSchedulesRefreshForValidToken(t *testing.T) {
	h := newHarness(t)
	access := authtest.Mint(t, 1, baseTime.Add(time.Hour))
	h.seed(t, access, "r1")

	h.manager.Initialize(context.Background())

	assert.Equal(t, enums.AuthStateAuthenticated, h.manager.State())
	assert.Equal(t, access, h.manager.AccessToken())
	assert.Equal(t, []time.Duration{55 * time.Minute}, h.clock.Pending())
	assert.Zero(t, h.refresher.calls.Load())

	next := authtest.Mint(t, 1, baseTime.Add(2*time.Hour))
	h.refresher.respond(Tokens{Access: next}, nil)
	h.clock.Advance(55 * time.Minute)

	assert.EqualValues(t, 1, h.refresher.calls.Load())
	assert.Equal(t, next, h.manager.AccessToken())
	assert.Equal(t, next, h.stored(t, storage.KeyAccessToken))
	assert.Equal(t, []time.Duration{time.Hour}, h.clock.Pending())
}

func TestInitializeRefreshesExpiringToken(t *testing.T) {
	h := newHarness(t)
	h.seed(t, authtest.Mint(t, 1, baseTime.Add(2*time.Minute)), "r1")
	next := authtest.Mint(t, 1, baseTime.Add(time.Hour))
	h.refresher.respond(Tokens{Access: next}, nil)

	h.manager.Initialize(context.Background())

	assert.EqualValues(t, 1, h.refresher.calls.Load())
	assert.Equal(t, []string{"r1"}, h.refresher.received)
	assert.Equal(t, enums.AuthStateAuthenticated, h.manager.State())
	assert.Equal(t, next, h.manager.AccessToken())
}

func TestInitializeRefreshesMalformedToken(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "garbage", "r1")
	h.refresher.respond(Tokens{}, errors.New("refresh token expired"))

	h.manager.Initialize(context.Background())

	assert.EqualValues(t, 1, h.refresher.calls.Load())
	assert.Equal(t, enums.AuthStateUnauthenticated, h.manager.State())
	assert.Empty(t, h.stored(t, storage.KeyAccessToken))
	assert.Empty(t, h.stored(t, storage.KeyRefreshToken))
}

func TestSignInPersistsAndSchedules(t *testing.T) {
	h := newHarness(t)
	rec := &stateRecorder{}
	h.manager.Subscribe(rec.record)
	access := authtest.Mint(t, 7, baseTime.Add(3*time.Minute))

	require.NoError(t, h.manager.SignIn(context.Background(), access, "r1"))

	assert.True(t, h.manager.IsAuthenticated())
	assert.Equal(t, access, h.stored(t, storage.KeyAccessToken))
	assert.Equal(t, "r1", h.stored(t, storage.KeyRefreshToken))
	// Inside the lead time the schedule floors at the minimum delay.
	assert.Equal(t, []time.Duration{time.Minute}, h.clock.Pending())
	assert.Equal(t, []enums.AuthState{enums.AuthStateAuthenticated}, rec.snapshot())
}

func TestSignInValidatesAccessToken(t *testing.T) {
	h := newHarness(t)
	err := h.manager.SignIn(context.Background(), "  ", "r1")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.False(t, h.manager.IsAuthenticated())
	assert.Empty(t, h.stored(t, storage.KeyRefreshToken))
}

func TestSignInWithoutRefreshTokenDropsStaleOne(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "", "stale")

	require.NoError(t, h.manager.SignIn(context.Background(), authtest.Mint(t, 1, baseTime.Add(time.Hour)), ""))

	assert.Empty(t, h.stored(t, storage.KeyRefreshToken))
	assert.False(t, h.manager.Refresh(context.Background()))
	assert.Zero(t, h.refresher.calls.Load())
}

func TestSignInIgnoresStoreFailures(t *testing.T) {
	h := newHarness(t)
	h.store.failSet = true
	access := authtest.Mint(t, 1, baseTime.Add(time.Hour))

	require.NoError(t, h.manager.SignIn(context.Background(), access, "r1"))

	assert.Equal(t, access, h.manager.AccessToken())
	assert.Equal(t, 2.0, h.storeFailures(t, "set"))
}

func TestSignInReplacesPendingSchedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.manager.SignIn(ctx, authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))
	require.NoError(t, h.manager.SignIn(ctx, authtest.Mint(t, 1, baseTime.Add(2*time.Hour)), "r2"))

	assert.Equal(t, []time.Duration{115 * time.Minute}, h.clock.Pending())
	h.clock.Advance(time.Hour)
	assert.Zero(t, h.refresher.calls.Load(), "superseded timer must not fire")
}

func TestRefreshWhileInFlightReturnsFalse(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.SignIn(context.Background(), authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))
	next := authtest.Mint(t, 1, baseTime.Add(2*time.Hour))
	h.refresher.respond(Tokens{Access: next}, nil)
	h.refresher.entered = make(chan struct{}, 1)
	h.refresher.release = make(chan struct{})

	first := make(chan bool, 1)
	go func() {
		first <- h.manager.Refresh(context.Background())
	}()
	<-h.refresher.entered
	assert.Equal(t, enums.AuthStateRefreshing, h.manager.State())

	// Runs synchronously: it must not wait for the parked attempt.
	assert.False(t, h.manager.Refresh(context.Background()))
	assert.EqualValues(t, 1, h.refresher.calls.Load())
	assert.True(t, h.manager.IsAuthenticated(), "suppressed refresh must not sign out")
	assert.Equal(t, 1.0, h.refreshOutcome(t, metrics.RefreshSuppressed))

	close(h.refresher.release)
	assert.True(t, <-first)
	assert.EqualValues(t, 1, h.refresher.calls.Load())
	assert.Equal(t, next, h.manager.AccessToken())
	assert.Equal(t, enums.AuthStateAuthenticated, h.manager.State())
}

func TestRefreshCooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.manager.SignIn(ctx, authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))
	h.refresher.respond(Tokens{Access: authtest.Mint(t, 1, baseTime.Add(2*time.Hour))}, nil)

	require.True(t, h.manager.Refresh(ctx))
	h.clock.Advance(29 * time.Second)
	assert.False(t, h.manager.Refresh(ctx))
	assert.EqualValues(t, 1, h.refresher.calls.Load())
	assert.True(t, h.manager.IsAuthenticated(), "suppressed refresh must not sign out")
	assert.Equal(t, 1.0, h.refreshOutcome(t, metrics.RefreshSuppressed))

	h.clock.Advance(time.Second)
	assert.True(t, h.manager.Refresh(ctx))
	assert.EqualValues(t, 2, h.refresher.calls.Load())
}

func TestRefreshWithoutStoredToken(t *testing.T) {
	h := newHarness(t)
	access := authtest.Mint(t, 1, baseTime.Add(time.Hour))
	h.seed(t, access, "")
	h.manager.Initialize(context.Background())

	assert.False(t, h.manager.Refresh(context.Background()))
	assert.Zero(t, h.refresher.calls.Load())
	assert.Equal(t, access, h.manager.AccessToken())
	assert.Equal(t, enums.AuthStateAuthenticated, h.manager.State())
	assert.Equal(t, 1.0, h.refreshOutcome(t, metrics.RefreshNoToken))
}

func TestRefreshFailureSignsOut(t *testing.T) {
	h := newHarness(t)
	rec := &stateRecorder{}
	require.NoError(t, h.manager.SignIn(context.Background(), authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))
	h.manager.Subscribe(rec.record)
	h.refresher.respond(Tokens{}, errors.New("401 token_not_valid"))

	assert.False(t, h.manager.Refresh(context.Background()))

	assert.Equal(t, enums.AuthStateUnauthenticated, h.manager.State())
	assert.Empty(t, h.manager.AccessToken())
	assert.Empty(t, h.stored(t, storage.KeyAccessToken))
	assert.Empty(t, h.stored(t, storage.KeyRefreshToken))
	assert.Empty(t, h.clock.Pending())
	assert.Equal(t, []enums.AuthState{enums.AuthStateRefreshing, enums.AuthStateUnauthenticated}, rec.snapshot())
	assert.Equal(t, 1.0, h.refreshOutcome(t, metrics.RefreshFailure))
}

func TestRefreshMissingAccessIsFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.SignIn(context.Background(), authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))
	h.refresher.respond(Tokens{Refresh: "r2"}, nil)

	assert.False(t, h.manager.Refresh(context.Background()))
	assert.False(t, h.manager.IsAuthenticated())
	assert.Empty(t, h.stored(t, storage.KeyRefreshToken))
}

func TestRefreshPersistsRotatedRefreshToken(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.SignIn(context.Background(), authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))
	next := authtest.Mint(t, 1, baseTime.Add(2*time.Hour))
	h.refresher.respond(Tokens{Access: next, Refresh: "r2"}, nil)

	require.True(t, h.manager.Refresh(context.Background()))
	assert.Equal(t, next, h.stored(t, storage.KeyAccessToken))
	assert.Equal(t, "r2", h.stored(t, storage.KeyRefreshToken))
}

func TestSignOutDuringRefreshDiscardsResult(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.SignIn(context.Background(), authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))
	h.refresher.respond(Tokens{Access: authtest.Mint(t, 1, baseTime.Add(2*time.Hour))}, nil)
	h.refresher.entered = make(chan struct{}, 1)
	h.refresher.release = make(chan struct{})

	done := make(chan bool, 1)
	go func() { done <- h.manager.Refresh(context.Background()) }()
	<-h.refresher.entered
	h.manager.SignOut(context.Background())
	close(h.refresher.release)

	assert.False(t, <-done)
	assert.Equal(t, enums.AuthStateUnauthenticated, h.manager.State())
	assert.Empty(t, h.stored(t, storage.KeyAccessToken))
	assert.Equal(t, 1.0, h.refreshOutcome(t, metrics.RefreshDiscarded))
}

func TestSignOutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := &stateRecorder{}
	require.NoError(t, h.manager.SignIn(ctx, authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))
	h.manager.Subscribe(rec.record)

	h.manager.SignOut(ctx)
	h.manager.SignOut(ctx)

	assert.Equal(t, enums.AuthStateUnauthenticated, h.manager.State())
	assert.False(t, h.manager.IsAuthenticated())
	assert.Zero(t, h.store.Len())
	assert.Empty(t, h.clock.Pending())
	assert.Equal(t, []enums.AuthState{enums.AuthStateUnauthenticated}, rec.snapshot())
}

func TestSignOutToleratesDeleteErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.manager.SignIn(ctx, authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))
	h.store.failDelete = true

	h.manager.SignOut(ctx)

	assert.False(t, h.manager.IsAuthenticated())
	assert.Equal(t, 2.0, h.storeFailures(t, "delete"))
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	h := newHarness(t)
	rec := &stateRecorder{}
	unsubscribe := h.manager.Subscribe(rec.record)
	unsubscribe()
	unsubscribe()

	require.NoError(t, h.manager.SignIn(context.Background(), authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))
	assert.Empty(t, rec.snapshot())
}

func TestCloseCancelsSchedule(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.SignIn(context.Background(), authtest.Mint(t, 1, baseTime.Add(time.Hour)), "r1"))

	h.manager.Close()

	assert.Empty(t, h.clock.Pending())
	h.clock.Advance(2 * time.Hour)
	assert.Zero(t, h.refresher.calls.Load())
	assert.False(t, h.manager.Refresh(context.Background()))
	assert.NotEmpty(t, h.stored(t, storage.KeyRefreshToken), "close keeps stored tokens")
}

func TestNextRefreshDelay(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		exp  time.Time
		want time.Duration
	}{
		{exp: baseTime.Add(time.Hour), want: 55 * time.Minute},
		{exp: baseTime.Add(6 * time.Minute), want: time.Minute},
		{exp: baseTime.Add(5*time.Minute + 30*time.Second), want: time.Minute},
		{exp: baseTime.Add(-time.Hour), want: time.Minute},
	}
	for _, tc := range cases {
		if got := h.manager.NextRefreshDelay(authtest.Mint(t, 1, tc.exp)); got != tc.want {
			t.Fatalf("exp %v: expected %v, got %v", tc.exp.Sub(baseTime), tc.want, got)
		}
	}
	if got := h.manager.NextRefreshDelay("garbage"); got != time.Minute {
		t.Fatalf("malformed token: expected min delay, got %v", got)
	}
}
