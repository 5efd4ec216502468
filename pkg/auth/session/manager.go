// Package session owns the client's access/refresh token pair: persistence,
// expiry tracking, proactive refresh and sign-out.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/thequtt/qutt-client/pkg/auth"
	"github.com/thequtt/qutt-client/pkg/config"
	"github.com/thequtt/qutt-client/pkg/enums"
	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
	"github.com/thequtt/qutt-client/pkg/logger"
	"github.com/thequtt/qutt-client/pkg/metrics"
	"github.com/thequtt/qutt-client/pkg/storage"
	"go.uber.org/multierr"
)

const (
	DefaultCooldown     = 30 * time.Second
	DefaultLeadTime     = 5 * time.Minute
	DefaultMinDelay     = time.Minute
	DefaultStoreTimeout = 5 * time.Second

	storeComponent = "session"
)

// Tokens is the result of a refresh call. Refresh is empty unless the
// backend rotated the refresh token.
type Tokens struct {
	Access  string
	Refresh string
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (Tokens, error)
}

// Options configures a Manager. Zero durations fall back to the defaults.
type Options struct {
	Store        storage.Store
	Refresher    Refresher
	Clock        Clock
	Logger       *logger.Logger
	Metrics      *metrics.SessionMetrics
	StoreMetrics *metrics.StoreMetrics

	Cooldown     time.Duration
	LeadTime     time.Duration
	MinDelay     time.Duration
	StoreTimeout time.Duration
}

// OptionsFromConfig copies the refresh tuning from cfg.
func OptionsFromConfig(cfg config.AuthConfig) Options {
	return Options{
		Cooldown:     cfg.RefreshCooldown,
		LeadTime:     cfg.RefreshLeadTime,
		MinDelay:     cfg.RefreshMinDelay,
		StoreTimeout: cfg.StoreTimeout,
	}
}

// Manager is the single source of truth for the current credentials.
type Manager struct {
	store        storage.Store
	refresher    Refresher
	clock        Clock
	logg         *logger.Logger
	metrics      *metrics.SessionMetrics
	storeMetrics *metrics.StoreMetrics

	cooldown     time.Duration
	leadTime     time.Duration
	minDelay     time.Duration
	storeTimeout time.Duration

	// ops sequences mutating operations; it is never held across the network call.
	ops sync.Mutex

	mu            sync.Mutex
	state         enums.AuthState
	access        string
	epoch         uint64
	timer         Timer
	timerGen      uint64
	refreshing    bool
	lastRefreshAt time.Time
	closed        bool
	observers     map[uint64]func(enums.AuthState)
	nextObserver  uint64
}

// NewManager constructs a Manager in the Uninitialized state.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if opts.Refresher == nil {
		return nil, fmt.Errorf("session refresher is required")
	}
	m := &Manager{
		store:        opts.Store,
		refresher:    opts.Refresher,
		clock:        opts.Clock,
		logg:         opts.Logger,
		metrics:      opts.Metrics,
		storeMetrics: opts.StoreMetrics,
		cooldown:     orDefault(opts.Cooldown, DefaultCooldown),
		leadTime:     orDefault(opts.LeadTime, DefaultLeadTime),
		minDelay:     orDefault(opts.MinDelay, DefaultMinDelay),
		storeTimeout: orDefault(opts.StoreTimeout, DefaultStoreTimeout),
		state:        enums.AuthStateUninitialized,
		observers:    make(map[uint64]func(enums.AuthState)),
	}
	if m.clock == nil {
		m.clock = SystemClock{}
	}
	if m.logg == nil {
		m.logg = logger.Nop()
	}
	return m, nil
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

// Initialize restores a persisted access token. A token that is expired or
// inside the lead time is refreshed immediately; otherwise a refresh is
// scheduled. Store read failures count as "no token".
func (m *Manager) Initialize(ctx context.Context) {
	m.ops.Lock()
	if m.isClosed() {
		m.ops.Unlock()
		return
	}
	access := m.read(ctx, storage.KeyAccessToken)
	if access == "" {
		notify := m.transition(enums.AuthStateUnauthenticated)
		m.ops.Unlock()
		notify()
		return
	}

	m.mu.Lock()
	m.access = access
	m.mu.Unlock()
	notify := m.transition(enums.AuthStateAuthenticated)

	if auth.ExpiresWithin(access, m.clock.Now(), m.leadTime) {
		m.ops.Unlock()
		notify()
		m.logg.Info(ctx, "stored access token is expiring, refreshing")
		m.Refresh(ctx)
		return
	}
	m.arm(access)
	m.ops.Unlock()
	notify()
}

// SignIn stores a new token pair and schedules its refresh. An empty refresh
// token removes any stale one left in the store.
func (m *Manager) SignIn(ctx context.Context, accessToken, refreshToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	refreshToken = strings.TrimSpace(refreshToken)
	if accessToken == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access token is required")
	}

	m.ops.Lock()
	if m.isClosed() {
		m.ops.Unlock()
		return pkgerrors.New(pkgerrors.CodeInternal, "session manager is closed")
	}
	m.cancelTimer()

	_ = m.write(ctx, storage.KeyAccessToken, accessToken)
	if refreshToken != "" {
		_ = m.write(ctx, storage.KeyRefreshToken, refreshToken)
	} else {
		_ = m.remove(ctx, storage.KeyRefreshToken)
	}

	m.mu.Lock()
	m.access = accessToken
	m.epoch++
	m.mu.Unlock()
	notify := m.transition(enums.AuthStateAuthenticated)
	m.arm(accessToken)
	m.ops.Unlock()

	if claims := auth.DecodeClaims(accessToken); claims != nil {
		ctx = m.logg.WithUserID(ctx, claims.Identity())
	}
	m.logg.Info(m.logg.WithTokenFingerprint(ctx, accessToken), "signed in")
	notify()
	return nil
}

// Refresh exchanges the stored refresh token for a new access token. It
// returns false without a network call while another attempt is in flight,
// while the cooldown since the last attempt is running, or when no refresh
// token is stored. Any failure of the attempt itself signs the user out.
func (m *Manager) Refresh(ctx context.Context) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if m.refreshing {
		m.mu.Unlock()
		m.metrics.ObserveRefresh(metrics.RefreshSuppressed)
		m.logg.Debug(ctx, "refresh suppressed, another attempt is in flight")
		return false
	}
	if !m.lastRefreshAt.IsZero() && m.clock.Now().Sub(m.lastRefreshAt) < m.cooldown {
		m.mu.Unlock()
		m.metrics.ObserveRefresh(metrics.RefreshSuppressed)
		m.logg.Debug(ctx, "refresh suppressed by cooldown")
		return false
	}
	m.refreshing = true
	epoch := m.epoch
	m.mu.Unlock()

	ok := m.runRefresh(context.WithoutCancel(ctx), epoch)

	m.mu.Lock()
	m.refreshing = false
	m.lastRefreshAt = m.clock.Now()
	m.mu.Unlock()
	return ok
}

func (m *Manager) runRefresh(ctx context.Context, epoch uint64) bool {
	refreshToken := m.read(ctx, storage.KeyRefreshToken)
	if refreshToken == "" {
		m.metrics.ObserveRefresh(metrics.RefreshNoToken)
		m.logg.Debug(ctx, "refresh skipped, no refresh token stored")
		return false
	}

	notify, current := m.transitionAt(epoch, enums.AuthStateRefreshing)
	if !current {
		m.metrics.ObserveRefresh(metrics.RefreshDiscarded)
		return false
	}
	notify()

	started := m.clock.Now()
	tokens, err := m.refresher.RefreshTokens(ctx, refreshToken)
	m.metrics.ObserveRefreshDuration(m.clock.Now().Sub(started))
	if err == nil && strings.TrimSpace(tokens.Access) == "" {
		err = pkgerrors.New(pkgerrors.CodeDependency, "refresh response missing access token")
	}

	m.ops.Lock()
	m.mu.Lock()
	stale := m.epoch != epoch || m.closed
	m.mu.Unlock()
	if stale {
		m.ops.Unlock()
		m.metrics.ObserveRefresh(metrics.RefreshDiscarded)
		m.logg.Info(ctx, "refresh result discarded, session changed while in flight")
		return false
	}

	if err != nil {
		notify := m.signOutLocked(ctx)
		m.ops.Unlock()
		m.metrics.ObserveRefresh(metrics.RefreshFailure)
		m.logg.Error(ctx, "token refresh failed, signed out", err)
		notify()
		return false
	}

	access := strings.TrimSpace(tokens.Access)
	_ = m.write(ctx, storage.KeyAccessToken, access)
	if rotated := strings.TrimSpace(tokens.Refresh); rotated != "" {
		_ = m.write(ctx, storage.KeyRefreshToken, rotated)
	}
	m.mu.Lock()
	m.access = access
	m.mu.Unlock()
	notify = m.transition(enums.AuthStateAuthenticated)
	m.arm(access)
	m.ops.Unlock()

	m.metrics.ObserveRefresh(metrics.RefreshSuccess)
	m.logg.Info(m.logg.WithTokenFingerprint(ctx, access), "access token refreshed")
	notify()
	return true
}

// SignOut cancels the scheduled refresh, deletes both tokens and clears the
// in-memory credentials. It is idempotent; store errors are only logged.
func (m *Manager) SignOut(ctx context.Context) {
	m.ops.Lock()
	notify := m.signOutLocked(ctx)
	m.ops.Unlock()
	m.logg.Info(ctx, "signed out")
	notify()
}

// signOutLocked must be called with ops held.
func (m *Manager) signOutLocked(ctx context.Context) func() {
	m.cancelTimer()
	err := multierr.Append(
		m.remove(ctx, storage.KeyAccessToken),
		m.remove(ctx, storage.KeyRefreshToken),
	)
	if err != nil {
		m.logg.Error(ctx, "failed to delete stored tokens", err)
	}
	m.mu.Lock()
	m.access = ""
	m.epoch++
	m.mu.Unlock()
	m.metrics.IncSignOut()
	return m.transition(enums.AuthStateUnauthenticated)
}

// IsAuthenticated reports whether an access token is held.
func (m *Manager) IsAuthenticated() bool {
	return m.AccessToken() != ""
}

// AccessToken returns the current access token, or "" when signed out.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access
}

// State returns the current lifecycle state.
func (m *Manager) State() enums.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn to be called after every state transition. fn runs
// on the goroutine that caused the transition, with no locks held.
func (m *Manager) Subscribe(fn func(enums.AuthState)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

// Close cancels the scheduled refresh and stops further refreshes. Stored
// tokens are left in place for the next Initialize.
func (m *Manager) Close() {
	m.ops.Lock()
	defer m.ops.Unlock()
	m.cancelTimer()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// NextRefreshDelay reports how long after now a refresh for token would be
// scheduled.
func (m *Manager) NextRefreshDelay(token string) time.Duration {
	delay := auth.TimeUntilExpiry(token, m.clock.Now()) - m.leadTime
	if delay < m.minDelay {
		return m.minDelay
	}
	return delay
}

// arm replaces the pending timer. Callers hold ops.
func (m *Manager) arm(access string) {
	delay := m.NextRefreshDelay(access)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timerGen++
	gen := m.timerGen
	m.timer = m.clock.AfterFunc(delay, func() { m.fire(gen) })
}

func (m *Manager) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.timerGen || m.closed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	ctx := m.logg.WithField(context.Background(), "trigger", "schedule")
	m.Refresh(ctx)
}

func (m *Manager) cancelTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// transition sets the state and returns a func that notifies observers,
// to be called once no locks are held.
func (m *Manager) transition(next enums.AuthState) func() {
	m.mu.Lock()
	return m.setStateLocked(next)
}

// transitionAt is transition guarded by the session epoch. It reports false
// without changing state when the session was replaced or closed.
func (m *Manager) transitionAt(epoch uint64, next enums.AuthState) (func(), bool) {
	m.mu.Lock()
	if m.epoch != epoch || m.closed {
		m.mu.Unlock()
		return func() {}, false
	}
	return m.setStateLocked(next), true
}

// setStateLocked is called with mu held and releases it.
func (m *Manager) setStateLocked(next enums.AuthState) func() {
	if m.state == next {
		m.mu.Unlock()
		return func() {}
	}
	m.state = next
	observers := make([]func(enums.AuthState), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()
	return func() {
		for _, fn := range observers {
			fn(next)
		}
	}
}

func (m *Manager) read(ctx context.Context, key string) string {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	value, err := m.store.Get(ctx, key)
	if err != nil {
		if !storage.IsNotFound(err) {
			m.storeFailure(ctx, "get", key, err)
		}
		return ""
	}
	return strings.TrimSpace(value)
}

func (m *Manager) write(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	if err := m.store.Set(ctx, key, value); err != nil {
		m.storeFailure(ctx, "set", key, err)
		return err
	}
	return nil
}

func (m *Manager) remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	if err := m.store.Delete(ctx, key); err != nil && !storage.IsNotFound(err) {
		m.storeMetrics.IncFailure(storeComponent, "delete")
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (m *Manager) storeFailure(ctx context.Context, op, key string, err error) {
	m.storeMetrics.IncFailure(storeComponent, op)
	m.logg.Error(m.logg.WithField(ctx, "key", key), "session store "+op+" failed", err)
}
