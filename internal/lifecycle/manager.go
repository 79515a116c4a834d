// Package lifecycle orchestrates connection management: driver construction,
// SSH tunneling, health supervision, and automatic reconnection.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/zequel-labs/zequel/internal/core/domain"
	"github.com/zequel-labs/zequel/internal/core/port"
	"github.com/zequel-labs/zequel/internal/driver"
	"github.com/zequel-labs/zequel/internal/tunnel"
)

const (
	defaultHealthInterval = 30 * time.Second
	defaultBackoffBase    = time.Second
	pingTimeout           = 10 * time.Second
)

var (
	connectsTotal     = metrics.NewCounter("zequel_connects_total")
	disconnectsTotal  = metrics.NewCounter("zequel_disconnects_total")
	reconnectAttempts = metrics.NewCounter("zequel_reconnect_attempts_total")
	queriesObserved   = metrics.NewCounter("zequel_instrumented_queries_total")
)

// DriverFactory constructs a fresh driver for a backend type. Swappable for
// tests.
type DriverFactory func(domain.DatabaseType) (port.Driver, error)

// connEntry is one Active Connection Registry slot: the live driver, the
// config that produced it, and the health check handle when one runs.
type connEntry struct {
	driver port.Driver
	config domain.ConnectionConfig
	health *healthHandle
}

// Manager owns the three registries of the connection core: active
// connections, tunnels (delegated to tunnel.Manager), and the reconnect
// guard. Construct one per process; tear down with DisconnectAll.
type Manager struct {
	newDriver DriverFactory
	tunnels   *tunnel.Manager
	events    port.StatusBroadcaster
	store     port.ConfigStore
	logger    *slog.Logger

	healthInterval time.Duration
	backoffBase    time.Duration

	mu          sync.Mutex
	conns       map[string]*connEntry
	lastConfigs map[string]domain.ConnectionConfig

	// connectLocks serializes Connect per connection id, so the
	// replace-or-create decision and the registry store are one atomic step
	// for any given id.
	connectLocks *xsync.MapOf[string, *sync.Mutex]

	// reconnecting is the Reconnect Guard: ids with an in-flight reconnect.
	reconnecting *xsync.MapOf[string, struct{}]

	testGroup singleflight.Group
}

// Option customizes a Manager.
type Option func(*Manager)

// WithHealthInterval overrides the health check interval.
func WithHealthInterval(d time.Duration) Option {
	return func(m *Manager) { m.healthInterval = d }
}

// WithBackoffBase overrides the first reconnect backoff delay. Subsequent
// delays double from it.
func WithBackoffBase(d time.Duration) Option {
	return func(m *Manager) { m.backoffBase = d }
}

// WithDriverFactory swaps the driver factory.
func WithDriverFactory(f DriverFactory) Option {
	return func(m *Manager) { m.newDriver = f }
}

// WithConfigStore provides the durable config fallback used when
// reconnecting a connection the manager has not connected this process.
func WithConfigStore(s port.ConfigStore) Option {
	return func(m *Manager) { m.store = s }
}

// NewManager creates a connection lifecycle manager.
func NewManager(tunnels *tunnel.Manager, events port.StatusBroadcaster, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		newDriver:      driver.New,
		tunnels:        tunnels,
		events:         events,
		logger:         logger,
		healthInterval: defaultHealthInterval,
		backoffBase:    defaultBackoffBase,
		conns:          make(map[string]*connEntry),
		lastConfigs:    make(map[string]domain.ConnectionConfig),
		connectLocks:   xsync.NewMapOf[string, *sync.Mutex](),
		reconnecting:   xsync.NewMapOf[string, struct{}](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect establishes a live connection for cfg.ID and returns its driver.
// An existing connection for the same id is torn down first, so at most one
// driver is live per id.
func (m *Manager) Connect(ctx context.Context, cfg domain.ConnectionConfig) (port.Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// One Connect at a time per id. Without this, two concurrent callers
	// both pass the replace check and the loser's driver leaks alive with a
	// second health loop ticking against the same id.
	lock, _ := m.connectLocks.LoadOrStore(cfg.ID, &sync.Mutex{})
	lock.Lock()
	defer lock.Unlock()

	// Disconnect-before-replace. Best effort: teardown failures are logged
	// inside Disconnect, never propagated.
	if m.IsConnected(cfg.ID) {
		m.Disconnect(ctx, cfg.ID)
	}

	effective := cfg
	if cfg.SSHEnabled() {
		localPort, err := m.tunnels.Open(cfg.ID, *cfg.SSH, cfg.EffectiveHost(), cfg.EffectivePort())
		if err != nil {
			return nil, err
		}
		effective.Host = "127.0.0.1"
		effective.Port = localPort
	}

	drv, err := m.newDriver(cfg.Type)
	if err != nil {
		return nil, err
	}
	if err := drv.Connect(ctx, effective); err != nil {
		return nil, err
	}

	// Decorate the query surface exactly once, right after construction.
	// Drivers without the capability (MongoDB, Redis) are left alone.
	if in, ok := drv.(port.Instrumentable); ok {
		in.InstrumentQueries(m.queryHook(cfg.ID))
	}

	entry := &connEntry{driver: drv, config: cfg}

	m.mu.Lock()
	m.conns[cfg.ID] = entry
	m.lastConfigs[cfg.ID] = cfg
	if healthCheckable(cfg.Type) {
		entry.health = m.startHealthCheck(cfg.ID)
	}
	m.mu.Unlock()

	connectsTotal.Inc()
	m.logger.Info("connected",
		slog.String("connection_id", cfg.ID),
		slog.String("type", string(cfg.Type)),
		slog.Bool("ssh", cfg.SSHEnabled()),
	)

	return drv, nil
}

// queryHook builds the instrumentation callback for one connection. It only
// adds an observability side effect; results and errors pass through the
// driver untouched.
func (m *Manager) queryHook(id string) port.QueryHook {
	return func(query string, elapsed time.Duration, err error) {
		queriesObserved.Inc()
		m.events.BroadcastQueryLog(domain.QueryLogEvent{
			ConnectionID:  id,
			SQL:           query,
			ExecutionTime: elapsed.Milliseconds(),
			Timestamp:     time.Now(),
		})
		_ = err // failed queries are logged the same way
	}
}

// Disconnect tears down the connection for id: health timer first, then the
// tunnel if one exists, then the driver. Returns false when nothing was
// registered.
func (m *Manager) Disconnect(ctx context.Context, id string) bool {
	m.mu.Lock()
	entry, ok := m.conns[id]
	if ok {
		delete(m.conns, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	if entry.health != nil {
		entry.health.stop()
	}
	if m.tunnels.Has(id) {
		m.tunnels.Close(id)
	}
	if err := entry.driver.Disconnect(ctx); err != nil {
		// Cleanup must not prevent progress.
		m.logger.Warn("driver disconnect failed",
			slog.String("connection_id", id),
			slog.String("error", err.Error()),
		)
	}

	disconnectsTotal.Inc()
	m.logger.Info("disconnected", slog.String("connection_id", id))
	return true
}

// DisconnectAll disconnects every registered connection; used at shutdown.
func (m *Manager) DisconnectAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Disconnect(ctx, id)
	}
}

// TestConnection probes cfg without touching the active registry. Concurrent
// tests for the same id are coalesced. It never returns an error; every
// failure mode is encoded in the result.
func (m *Manager) TestConnection(ctx context.Context, cfg domain.ConnectionConfig) domain.TestConnectionResult {
	v, _, _ := m.testGroup.Do(cfg.ID, func() (any, error) {
		return m.testConnection(ctx, cfg), nil
	})
	return v.(domain.TestConnectionResult)
}

func (m *Manager) testConnection(ctx context.Context, cfg domain.ConnectionConfig) domain.TestConnectionResult {
	if err := cfg.Validate(); err != nil {
		return domain.TestConnectionResult{Error: domain.ErrorMessage(err)}
	}

	drv, err := m.newDriver(cfg.Type)
	if err != nil {
		return domain.TestConnectionResult{Error: domain.ErrorMessage(err)}
	}

	if !cfg.SSHEnabled() {
		return drv.TestConnection(ctx, cfg)
	}

	// The temporary tunnel gets its own registry id so a test can never
	// tear down a live tunnel for the same connection.
	tunnelID := "test-" + cfg.ID + "-" + uuid.NewString()

	localPort, err := m.tunnels.Open(tunnelID, *cfg.SSH, cfg.EffectiveHost(), cfg.EffectivePort())
	if err != nil {
		sshFailed := false
		msg := domain.ErrorMessage(err)
		return domain.TestConnectionResult{
			Error:      msg,
			SSHSuccess: &sshFailed,
			SSHError:   msg,
		}
	}
	defer m.tunnels.Close(tunnelID)

	effective := cfg
	effective.Host = "127.0.0.1"
	effective.Port = localPort

	result := drv.TestConnection(ctx, effective)
	sshOK := true
	result.SSHSuccess = &sshOK
	return result
}

// GetConnection returns the live driver for id, or nil.
func (m *Manager) GetConnection(id string) port.Driver {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.conns[id]; ok {
		return entry.driver
	}
	return nil
}

// IsConnected reports whether id has a live driver. Unknown ids are false.
func (m *Manager) IsConnected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[id]
	return ok
}

// CreateDriver exposes the factory for composition and testing.
func (m *Manager) CreateDriver(t domain.DatabaseType) (port.Driver, error) {
	return m.newDriver(t)
}

// lastConfig returns the config cached at the most recent connect for id,
// falling back to the durable store.
func (m *Manager) lastConfig(ctx context.Context, id string) *domain.ConnectionConfig {
	m.mu.Lock()
	cfg, ok := m.lastConfigs[id]
	m.mu.Unlock()
	if ok {
		return &cfg
	}
	if m.store != nil {
		if stored, err := m.store.GetConnectionConfig(ctx, id); err == nil && stored != nil {
			return stored
		}
	}
	return nil
}

// healthCheckable excludes the embedded variant (local-only) and the
// columnar variant (no benefit from polling) from periodic health checks.
func healthCheckable(t domain.DatabaseType) bool {
	return t != domain.TypeSQLite && t != domain.TypeClickHouse
}
