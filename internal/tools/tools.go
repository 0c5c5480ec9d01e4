// Package tools implements the Tool Handlers (C10): thin adapters that turn
// one dispatcher.Tool call into a CDP action sequence against C1-C8. Each
// handler is intentionally small — the state machines live in the packages
// it calls into (orchestrator, interception, stealth, profile); this package
// only translates validated arguments into calls on them and CDP results
// back into plain maps.
//
// Grounded in the teacher's internal/browser/page.go (Navigate, Click,
// SendKeys, Text, Title, Location) for the DOM/navigation action shapes.
package tools

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"chromecontrol/internal/blocking"
	"chromecontrol/internal/cdp"
	"chromecontrol/internal/dispatcher"
	cerrors "chromecontrol/internal/errors"
	"chromecontrol/internal/interception"
	"chromecontrol/internal/orchestrator"
	"chromecontrol/internal/profile"
	"chromecontrol/internal/recorder"
	"chromecontrol/internal/stealth"
	"chromecontrol/internal/supervisor"
)

// Registry holds every cross-cutting dependency the tool handlers close
// over. It is constructed once at server startup in main.go and is the
// single place that owns mutable server-wide state outside the Dispatcher
// itself (the stealth injector handle, the interception engine, the
// blocking engine, the profile builder).
type Registry struct {
	Orchestrator *orchestrator.Orchestrator
	Dispatcher   *dispatcher.Dispatcher
	Builder      *profile.Builder
	Blocker      *blocking.BlockingEngine

	BaseProfileDir string // platform Chrome "User Data" root; profile subdirectories live under it
	ShadowDir      string
	CookieDomains []string
	LaunchRequest supervisor.Request

	interception *interception.Engine
	stealthInj   *stealth.Injector

	harMu  sync.Mutex
	harRec map[target.ID]*recorder.Recorder
	harSub map[target.ID]func()
}

func (reg *Registry) conn() (*orchestrator.Connection, error) {
	c := reg.Orchestrator.Current()
	if c == nil || c.Closed() {
		return nil, cerrors.New(cerrors.NotConnected, "no active browser connection")
	}
	return c, nil
}

func (reg *Registry) interceptionEngine(conn *orchestrator.Connection) *interception.Engine {
	if reg.interception == nil {
		reg.interception = interception.NewEngine(conn.Sessions, reg.Blocker)
	}
	return reg.interception
}

// RegisterAll installs the full tool catalog on d.
func RegisterAll(reg *Registry) {
	registerConnectionTools(reg)
	registerNavigationTools(reg)
	registerInterceptionTools(reg)
	registerSessionTools(reg)
	registerScriptingTools(reg)
	registerDocsTools(reg)
}

func str(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]interface{}, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func intArg(args map[string]interface{}, key string) int {
	i, _ := args[key].(int)
	return i
}

func resolvePage(conn *orchestrator.Connection, explicit string) (cdp.Target, error) {
	return conn.Targets.Resolve(target.ID(explicit))
}

func runOnPage(ctx context.Context, conn *orchestrator.Connection, tgt cdp.Target, actions ...chromedp.Action) error {
	session := conn.Sessions.Ephemeral(tgt.ID)
	return cdp.Send(session, actions...)
}

func fmtTarget(t cdp.Target) map[string]interface{} {
	return map[string]interface{}{
		"id":    string(t.ID),
		"kind":  string(t.Kind),
		"url":   t.URL,
		"title": t.Title,
	}
}
