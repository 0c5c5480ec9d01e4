// Package supervisor implements the control server's Process Supervisor
// (C4): it finds a Chromium-family executable, prepares the launch command
// line, spawns the process (or attaches to one already answering on the
// debugging port), verifies liveness, and tolerates the process re-parenting
// itself away from the spawn handle. Grounded in the teacher's
// internal/browser/browser.go (Launch, getSecureChromeOptions and its three
// variants) and internal/browser/remote.go (GetRemoteDebuggingInfo /
// ConnectToRunningChrome), consolidated into the single supervisor contract
// spec.md §4.4 asks for in place of the teacher's two drifted launchers.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"chromecontrol/internal/cdp"
	cerrors "chromecontrol/internal/errors"
)

// Request is the C4 contract's input: ensure_browser(profile_request).
type Request struct {
	Host            string
	Port            int
	UserDataDir     string // already-prepared profile directory (C5's job)
	ProfileName     string
	ExecutablePath  string // override; empty means "search"
	SecurityProfile SecurityProfile
	Headless        bool
}

// Instance is a running or attached BrowserInstance (spec.md §3). Managed
// is false when we merely attached to a browser we didn't spawn.
type Instance struct {
	Port            int
	Managed         bool
	ExecutablePath  string
	SecurityProfile SecurityProfile

	AllocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	BrowserCtx      context.Context
	browserCancel   context.CancelFunc

	Diagnostics []string
}

// BindContext attaches a root browser context to an Instance that did not
// already have one (the externally-managed attach path, where EnsureBrowser
// has nothing to hand back but a port). cancel is stashed so Close() tears
// the connection down exactly like the managed launch path does; for an
// unmanaged instance this only closes our websocket to it, it never kills
// the external process.
func (i *Instance) BindContext(ctx context.Context, cancel context.CancelFunc) {
	i.BrowserCtx = ctx
	i.browserCancel = cancel
}

// Close tears down the launched/attached process tree. Only the explicit
// close_browser tool path is allowed to call this (spec.md §4.4).
func (i *Instance) Close() {
	if i.browserCancel != nil {
		i.browserCancel()
	}
	if i.allocatorCancel != nil {
		i.allocatorCancel()
	}
}

// Alive re-probes the debugging port with a cheap version query. Used by
// the Connection Orchestrator (C6) to decide whether a current instance is
// still good, and by the re-parenting tolerance logic in EnsureBrowser.
func (i *Instance) Alive(ctx context.Context) bool {
	v, err := cdp.ProbeVersion(ctx, "localhost", i.Port)
	return err == nil && cdp.IsRealChromium(v)
}

// WatchExit implements C4 step 6: when the spawn handle's context ends,
// Chromium sometimes re-parents its window process and only the handle
// dies, so we re-probe the port once before declaring the instance dead.
// onExit receives true if the instance remains usable (port still real
// Chromium), false if it must be torn down.
func (i *Instance) WatchExit(background context.Context, onExit func(stillAlive bool)) {
	if !i.Managed {
		return
	}
	go func() {
		<-i.BrowserCtx.Done()
		probeCtx, cancel := context.WithTimeout(background, 3*time.Second)
		defer cancel()
		onExit(i.Alive(probeCtx))
	}()
}

func diag(log *[]string, format string, args ...interface{}) {
	*log = append(*log, fmt.Sprintf(format, args...))
}

// EnsureBrowser implements C4's startup contract:
//  1. probe the port; accept only a genuine Chromium and attach to it,
//  2. else locate an executable and spawn a fresh one against UserDataDir,
//  3. verify liveness with bounded backoff (~12s total budget).
//
// It starts no goroutine itself. The liveness watcher, which tolerates the
// process re-parenting itself (the spawn handle can die while the browser,
// now orphaned to init/launchd, keeps listening), is started separately by
// Instance.WatchExit.
func EnsureBrowser(ctx context.Context, req Request) (*Instance, error) {
	var diagLog []string

	if v, err := cdp.ProbeVersion(ctx, req.Host, req.Port); err == nil {
		if !cdp.IsRealChromium(v) {
			return nil, cerrors.New(cerrors.PortNotBrowser,
				fmt.Sprintf("port %d answers but is not Chromium (Browser=%q)", req.Port, v.Browser))
		}
		diag(&diagLog, "attached to externally managed browser on port %d (%s)", req.Port, v.Browser)
		inst := &Instance{Port: req.Port, Managed: false, Diagnostics: diagLog}
		return inst, nil
	}

	exe := req.ExecutablePath
	if exe == "" {
		candidates := discoverExecutables()
		if len(candidates) == 0 {
			return nil, cerrors.New(cerrors.ChromiumNotFound, "no Chromium-family executable found on this system")
		}
		exe = candidates[0].Path
		diag(&diagLog, "selected executable %s", exe)
	}

	clearSingletonLocks(req.UserDataDir, req.ProfileName)

	opts := launchFlags(req.SecurityProfile)
	opts = append(opts,
		chromedp.ExecPath(exe),
		chromedp.UserDataDir(req.UserDataDir),
		chromedp.Flag("remote-debugging-port", req.Port),
	)
	if req.ProfileName != "" {
		opts = append(opts, chromedp.Flag("profile-directory", req.ProfileName))
	}
	if req.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	verifyCtx, verifyCancel := context.WithTimeout(browserCtx, 12*time.Second)
	defer verifyCancel()

	// A no-op Run forces chromedp to spawn the process and complete its own
	// websocket handshake: C4 step 4 ("spawn"). The handshake finishing
	// does not guarantee the remote-debugging HTTP port is already
	// answering, so step 5 ("verify liveness with bounded backoff") is a
	// separate retry loop below against the port itself.
	if err := chromedp.Run(verifyCtx, chromedp.ActionFunc(func(context.Context) error { return nil })); err != nil {
		browserCancel()
		allocCancel()
		diag(&diagLog, "spawn failed: %v", err)
		ce := cerrors.Wrap(err, cerrors.BrowserFailedToStart, "spawn timed out or failed")
		return nil, cerrors.WithContext(ce, "diagnostics", diagLog)
	}

	verifyRetry := &cerrors.RetryConfig{
		MaxAttempts: 6,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Backoff:     cerrors.ExponentialBackoff,
	}
	verifyErr := cerrors.Retry(verifyCtx, verifyRetry, func() error {
		v, err := cdp.ProbeVersion(verifyCtx, req.Host, req.Port)
		if err != nil {
			return cerrors.Wrap(err, cerrors.ChromeTimeoutError, "probing spawned browser's debugging port")
		}
		if !cdp.IsRealChromium(v) {
			return cerrors.New(cerrors.PortNotBrowser, "spawned process is not answering as Chromium")
		}
		return nil
	})
	if verifyErr != nil {
		browserCancel()
		allocCancel()
		diag(&diagLog, "verify failed: %v", verifyErr)
		ce := cerrors.Wrap(verifyErr, cerrors.BrowserFailedToStart, "port/version verify timed out or failed")
		return nil, cerrors.WithContext(ce, "diagnostics", diagLog)
	}

	diag(&diagLog, "spawned and verified on port %d", req.Port)

	inst := &Instance{
		Port:            req.Port,
		Managed:         true,
		ExecutablePath:  exe,
		SecurityProfile: req.SecurityProfile,
		AllocatorCtx:    allocCtx,
		allocatorCancel: allocCancel,
		BrowserCtx:      browserCtx,
		browserCancel:   browserCancel,
		Diagnostics:     diagLog,
	}
	return inst, nil
}
