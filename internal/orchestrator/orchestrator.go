// Package orchestrator implements the Connection Orchestrator (C6): the
// single place that decides, for a given tool call, whether the server is
// already usably connected to a browser, should attach to one, or must
// refuse. Grounded in the teacher's internal/browser/remote.go
// (GetRemoteDebuggingInfo, ConnectToRunningChrome) for the "probe before
// connect" shape, generalized per spec.md §4.6 into the spec's
// refusal-based policy: ensure_connected never launches a browser on the
// caller's behalf, it only reports whether one is reachable. Launching is
// exclusively the job of the explicit launch_with_profile tool, which always
// talks to supervisor.EnsureBrowser directly.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"

	"chromecontrol/internal/cdp"
	cerrors "chromecontrol/internal/errors"
	"chromecontrol/internal/profile"
	"chromecontrol/internal/supervisor"
)

// Connection bundles everything downstream components need once a browser
// is known good: the supervisor instance, the live target registry, and the
// session manager. It is the spec's "connected" state (spec.md §3).
type Connection struct {
	Instance *supervisor.Instance
	Targets  *cdp.Registry
	Sessions *cdp.Manager

	mu       sync.Mutex
	closed   bool
}

// Closed reports whether this connection has already been torn down.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.Sessions.CloseAll()
	c.Instance.Close()
}

// Orchestrator holds the server's single current Connection (or none). It is
// the only component allowed to replace that pointer.
type Orchestrator struct {
	mu      sync.Mutex
	current *Connection

	Host string
	Port int
}

// New creates an orchestrator bound to a debugging host/port pair. Host and
// Port are fixed at server startup (spec.md §6 --port flag); they never
// change for the life of the process.
func New(host string, port int) *Orchestrator {
	if host == "" {
		host = "localhost"
	}
	return &Orchestrator{Host: host, Port: port}
}

// Current returns the live connection, or nil if there is none.
func (o *Orchestrator) Current() *Connection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// EnsureConnected implements the spec's refusal-based policy: if a
// connection already exists and still answers, return it; otherwise probe
// the configured port for an already-running, externally managed Chromium
// and attach to it. It never spawns a process — that is launch_with_profile's
// job alone. Returns a not-connected error when nothing is reachable.
func (o *Orchestrator) EnsureConnected(ctx context.Context) (*Connection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil && !o.current.Closed() && o.current.Instance.Alive(ctx) {
		return o.current, nil
	}

	v, err := cdp.ProbeVersion(ctx, o.Host, o.Port)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.NotConnected,
			fmt.Sprintf("no browser reachable on %s:%d; call launch_with_profile first", o.Host, o.Port))
	}
	if !cdp.IsRealChromium(v) {
		return nil, cerrors.New(cerrors.PortNotBrowser,
			fmt.Sprintf("port %d answers but is not Chromium (Browser=%q)", o.Port, v.Browser))
	}

	conn, err := o.attach(ctx, &supervisor.Instance{Port: o.Port, Managed: false})
	if err != nil {
		return nil, err
	}
	o.current = conn
	return conn, nil
}

// LaunchWithProfile implements launch_with_profile: build (or re-mirror) the
// shadow profile, ensure a browser is running against it, and make the
// result the orchestrator's current connection. If force is false and a
// live connection already exists, the existing connection is returned
// unchanged (the profile is still re-mirrored so cookie/domain edits take
// effect on the *next* launch). If force is true, any existing connection
// is torn down first and a new browser instance is always started.
func (o *Orchestrator) LaunchWithProfile(ctx context.Context, builder *profile.Builder, srcProfileDir, shadowDir string, cookieDomains []string, req supervisor.Request, force bool) (*Connection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := builder.Mirror(srcProfileDir, shadowDir, cookieDomains); err != nil {
		return nil, err
	}
	req.UserDataDir = shadowDir

	if !force && o.current != nil && !o.current.Closed() && o.current.Instance.Alive(ctx) {
		return o.current, nil
	}

	if o.current != nil {
		o.current.teardown()
		o.current = nil
	}

	inst, err := supervisor.EnsureBrowser(ctx, req)
	if err != nil {
		return nil, err
	}
	conn, err := o.attach(ctx, inst)
	if err != nil {
		return nil, err
	}
	o.current = conn
	return conn, nil
}

// attach wraps an Instance (freshly launched or externally running) in a
// Connection by establishing the root browser context, target registry and
// session manager over it.
func (o *Orchestrator) attach(ctx context.Context, inst *supervisor.Instance) (*Connection, error) {
	rootCtx := inst.BrowserCtx

	if rootCtx == nil {
		allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, fmt.Sprintf("ws://%s:%d", o.Host, o.Port))
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		rootCtx = browserCtx
		inst.BindContext(browserCtx, func() { browserCancel(); allocCancel() })
	}

	if err := chromedp.Run(rootCtx); err != nil {
		return nil, cerrors.Wrap(err, cerrors.NotConnected, "establishing root browser context")
	}

	conn := &Connection{
		Instance: inst,
		Targets:  cdp.NewRegistry(rootCtx),
		Sessions: cdp.NewManager(rootCtx),
	}

	inst.WatchExit(context.Background(), func(stillAlive bool) {
		if !stillAlive {
			conn.teardown()
		}
	})

	return conn, nil
}

// Disconnect implements close_browser: tears down the current connection and
// its managed process (if any), and clears the orchestrator's pointer so the
// next ensure_connected call refuses until a new launch or attach happens.
func (o *Orchestrator) Disconnect() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return
	}
	o.current.teardown()
	o.current = nil
}
