package driver

import (
	"context"
	"sync"
	"time"

	"github.com/zequel-labs/zequel/internal/core/domain"
	"github.com/zequel-labs/zequel/internal/core/port"
)

// probeResult is what a backend-specific probe reports during a connection
// test.
type probeResult struct {
	serverVersion string
	serverInfo    string
}

// runTestConnection implements the shared connect → probe → disconnect flow
// behind every driver's TestConnection. Disconnect runs in a deferred path so
// it happens even when connect or the probe fails, and the result keeps the
// first error even if the cleanup disconnect fails too. Latency is wall-clock
// from start to completion.
func runTestConnection(
	ctx context.Context,
	d port.Driver,
	cfg domain.ConnectionConfig,
	probe func(ctx context.Context) (probeResult, error),
) (result domain.TestConnectionResult) {
	start := time.Now()

	defer func() {
		// A panicking driver must still yield a structured result.
		if r := recover(); r != nil {
			result.Success = false
			result.Error = domain.ErrorMessage(r)
		}
		result.Latency = time.Since(start).Milliseconds()
	}()
	defer func() {
		_ = d.Disconnect(ctx)
	}()

	if err := d.Connect(ctx, cfg); err != nil {
		return domain.TestConnectionResult{Error: domain.ErrorMessage(err)}
	}

	pr, err := probe(ctx)
	if err != nil {
		return domain.TestConnectionResult{Error: domain.ErrorMessage(err)}
	}

	return domain.TestConnectionResult{
		Success:       true,
		ServerVersion: pr.serverVersion,
		ServerInfo:    pr.serverInfo,
	}
}

// queryObserver holds the optional instrumentation hook for drivers that
// implement port.Instrumentable. The zero value is an absent hook.
type queryObserver struct {
	hook port.QueryHook
}

// InstrumentQueries installs the hook. Called at most once per connection,
// by the lifecycle manager, after a successful connect.
func (o *queryObserver) InstrumentQueries(hook port.QueryHook) {
	o.hook = hook
}

// observe reports one finished query to the hook, if installed. It never
// panics on odd input and never alters the caller's result or error.
func (o *queryObserver) observe(query string, start time.Time, err error) {
	if o.hook == nil {
		return
	}
	o.hook(query, time.Since(start), err)
}

// cancelState tracks the context cancel function of the in-flight query so
// CancelQuery can abort it. fire runs on a different goroutine than
// arm/disarm (the cancel entry point races the query by nature), so the
// field is mutex-guarded.
type cancelState struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (c *cancelState) arm(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	return ctx
}

func (c *cancelState) disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// fire cancels the in-flight query, reporting whether one was running.
func (c *cancelState) fire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	c.cancel = nil
	return true
}
