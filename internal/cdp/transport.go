package cdp

import (
	"sync"

	"github.com/chromedp/chromedp"

	cerrors "chromecontrol/internal/errors"
)

// Action is anything chromedp.Run can execute: a typed CDP command or a
// bundle of them. Handlers build these with cdproto's generated command
// constructors (e.g. page.Navigate(url)) exactly as the teacher does.
type Action = chromedp.Action

// Send issues one CDP round trip on a session and maps connection failures
// to the spec's transport-gone kind (spec.md §4.1: "underlying socket
// closed -> all pending commands fail with transport-gone").
func Send(s *Session, actions ...Action) error {
	if err := RequireSession(s); err != nil {
		return err
	}
	if err := chromedp.Run(s.ctx, actions...); err != nil {
		if s.ctx.Err() != nil {
			return cerrors.Wrap(err, cerrors.TransportGone, "command failed: underlying channel closed")
		}
		return cerrors.Wrap(err, cerrors.ChromeScriptError, "command failed")
	}
	return nil
}

// Subscriber is an explicit, named event listener. Per the spec's design
// notes (§9 "never rely on anonymous closures for unsubscribe"), every
// long-lived listener in this codebase is a Subscriber value stored by its
// owner (the Interception Engine, the HAR recorder) instead of a bare
// closure passed to chromedp.ListenTarget and forgotten.
type Subscriber struct {
	Name    string
	Handler func(ev interface{})

	mu        sync.Mutex
	unsubbed  bool
}

// Subscribe registers a Subscriber's handler on a session's event stream.
// The returned function detaches it; detaching twice is a no-op.
func Subscribe(s *Session, sub *Subscriber) (unsubscribe func()) {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		sub.mu.Lock()
		dead := sub.unsubbed
		sub.mu.Unlock()
		if dead {
			return
		}
		sub.Handler(ev)
	})
	return func() {
		sub.mu.Lock()
		sub.unsubbed = true
		sub.mu.Unlock()
	}
}

// Close tears down a session's underlying chromedp context, synthesizing
// "closed" for every subscriber still listening on it (their handlers will
// simply never fire again once the context is cancelled, matching the
// spec's "signal closed on every stream" requirement).
func Close(s *Session) {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}
