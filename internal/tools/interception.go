package tools

import (
	"context"
	"regexp"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"

	"chromecontrol/internal/blocking"
	"chromecontrol/internal/dispatcher"
	cerrors "chromecontrol/internal/errors"
	"chromecontrol/internal/interception"
	"chromecontrol/internal/stealth"
	"chromecontrol/internal/validation"
)

// filterPending splits a pending-queue snapshot by Fetch stage: callers list
// request-stage and response-stage pauses through separate tools even though
// both are served from the same Context.Pending() queue.
func filterPending(entries []interception.Observed, responseStage bool) []interception.Observed {
	out := make([]interception.Observed, 0, len(entries))
	for _, o := range entries {
		if (o.Stage == "response") == responseStage {
			out = append(out, o)
		}
	}
	return out
}

// decodeHeaders converts the generic object argument set_interception_rule
// receives over JSON-RPC into the map[string]string Rule.SetHeaders expects,
// rejecting anything validation.ValidateHeaders flags (oversized values,
// control characters, the handful of headers rewriting would corrupt).
func decodeHeaders(raw interface{}) (map[string]string, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok || obj == nil {
		return nil, nil
	}
	headers := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			return nil, cerrors.New(cerrors.InvalidArguments, "set_headers values must be strings")
		}
		headers[k] = s
	}
	if err := validation.ValidateHeaders(headers); err != nil {
		return nil, cerrors.Wrap(err, cerrors.InvalidArguments, "validating set_headers")
	}
	return headers, nil
}

// newBlockingEngine builds a blocking.BlockingEngine from tool arguments,
// matching the shape internal/blocking.Config expects (grounded in the
// teacher's cmd/churl domain/pattern blocklist flags).
func newBlockingEngine(domains, patterns, allowDomains []string) (*blocking.BlockingEngine, error) {
	cfg := &blocking.Config{
		Enabled:      true,
		Domains:      domains,
		URLPatterns:  patterns,
		AllowDomains: allowDomains,
	}
	engine, err := blocking.NewBlockingEngine(cfg)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.InvalidArguments, "configuring blocking engine")
	}
	return engine, nil
}

func registerInterceptionTools(reg *Registry) {
	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "set_interception_rule",
		Description: "Register a request interception rule on a target: observe, modify, mock, fail, or delay matching requests.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "target_id", Kind: dispatcher.KindString, Required: true},
			{Name: "id", Kind: dispatcher.KindString, Required: true},
			{Name: "pattern", Kind: dispatcher.KindString, Required: true},
			{Name: "action", Kind: dispatcher.KindString, Required: true,
				Enum: []string{"observe", "modify", "mock", "fail", "delay"}},
			{Name: "mock_status", Kind: dispatcher.KindInt, Default: 200},
			{Name: "mock_body", Kind: dispatcher.KindString},
			{Name: "set_method", Kind: dispatcher.KindString},
			{Name: "delay_ms", Kind: dispatcher.KindInt, Default: 0},
			{Name: "set_headers", Kind: dispatcher.KindObject},
			{Name: "auto_continue", Kind: dispatcher.KindBool, Default: true},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			conn, err := reg.conn()
			if err != nil {
				return nil, err
			}
			tgt, err := resolvePage(conn, str(args, "target_id"))
			if err != nil {
				return nil, err
			}

			re, err := regexp.Compile(str(args, "pattern"))
			if err != nil {
				return nil, cerrors.Wrap(err, cerrors.InvalidArguments, "compiling pattern")
			}

			headers, err := decodeHeaders(args["set_headers"])
			if err != nil {
				return nil, err
			}

			engine := reg.interceptionEngine(conn)
			c, err := engine.Enable(tgt.ID)
			if err != nil {
				return nil, err
			}
			c.SetAutoContinue(boolArg(args, "auto_continue"))

			rule := interception.Rule{
				ID:          str(args, "id"),
				Pattern:     re,
				Action:      interception.Action(str(args, "action")),
				MockStatus:  intArg(args, "mock_status"),
				MockBody:    []byte(str(args, "mock_body")),
				SetMethod:   str(args, "set_method"),
				SetHeaders:  headers,
				DelayMillis: intArg(args, "delay_ms"),
			}
			if err := c.AddRule(rule); err != nil {
				return nil, err
			}
			return map[string]interface{}{"registered": rule.ID}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "remove_interception_rule",
		Description: "Remove a previously registered interception rule by id.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "target_id", Kind: dispatcher.KindString, Required: true},
			{Name: "id", Kind: dispatcher.KindString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			conn, err := reg.conn()
			if err != nil {
				return nil, err
			}
			tgt, err := resolvePage(conn, str(args, "target_id"))
			if err != nil {
				return nil, err
			}
			engine := reg.interceptionEngine(conn)
			if !engine.Active(tgt.ID) {
				return map[string]interface{}{"removed": false}, nil
			}
			c, _ := engine.Enable(tgt.ID)
			c.RemoveRule(str(args, "id"))
			return map[string]interface{}{"removed": true}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "disable_interception",
		Description: "Disable request interception on a target: unsubscribes, drains any paused requests unmodified, and clears its rule list.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "target_id", Kind: dispatcher.KindString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			conn, err := reg.conn()
			if err != nil {
				return nil, err
			}
			tgt, err := resolvePage(conn, str(args, "target_id"))
			if err != nil {
				return nil, err
			}
			engine := reg.interceptionEngine(conn)
			wasActive := engine.Active(tgt.ID)
			engine.Disable(tgt.ID)
			return map[string]interface{}{"disabled": wasActive}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "list_intercepted_requests",
		Description: "Snapshot the request-stage paused requests currently sitting in the pending queue for a target.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "target_id", Kind: dispatcher.KindString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			conn, err := reg.conn()
			if err != nil {
				return nil, err
			}
			tgt, err := resolvePage(conn, str(args, "target_id"))
			if err != nil {
				return nil, err
			}
			engine := reg.interceptionEngine(conn)
			if !engine.Active(tgt.ID) {
				return map[string]interface{}{"pending": []interception.Observed{}}, nil
			}
			c, _ := engine.Enable(tgt.ID)
			return map[string]interface{}{"pending": filterPending(c.Pending(), false)}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "list_intercepted_responses",
		Description: "Snapshot the response-stage paused requests currently sitting in the pending queue for a target.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "target_id", Kind: dispatcher.KindString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			conn, err := reg.conn()
			if err != nil {
				return nil, err
			}
			tgt, err := resolvePage(conn, str(args, "target_id"))
			if err != nil {
				return nil, err
			}
			engine := reg.interceptionEngine(conn)
			if !engine.Active(tgt.ID) {
				return map[string]interface{}{"pending": []interception.Observed{}}, nil
			}
			c, _ := engine.Enable(tgt.ID)
			return map[string]interface{}{"pending": filterPending(c.Pending(), true)}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "resume_intercepted_request",
		Description: "Resume a paused request sitting in the pending queue because its context is not in auto-continue mode.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "target_id", Kind: dispatcher.KindString, Required: true},
			{Name: "request_id", Kind: dispatcher.KindString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			conn, err := reg.conn()
			if err != nil {
				return nil, err
			}
			tgt, err := resolvePage(conn, str(args, "target_id"))
			if err != nil {
				return nil, err
			}
			engine := reg.interceptionEngine(conn)
			if !engine.Active(tgt.ID) {
				return map[string]interface{}{"resumed": false}, nil
			}
			c, _ := engine.Enable(tgt.ID)
			resumed := c.Resume(fetch.RequestID(str(args, "request_id")))
			return map[string]interface{}{"resumed": resumed}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "mock_endpoint",
		Description: "Shortcut for set_interception_rule with action=mock: serve a fixed status/body for URLs matching a pattern.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "target_id", Kind: dispatcher.KindString, Required: true},
			{Name: "id", Kind: dispatcher.KindString, Required: true},
			{Name: "pattern", Kind: dispatcher.KindString, Required: true},
			{Name: "status", Kind: dispatcher.KindInt, Default: 200},
			{Name: "body", Kind: dispatcher.KindString, Default: ""},
			{Name: "content_type", Kind: dispatcher.KindString, Default: "application/json"},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			conn, err := reg.conn()
			if err != nil {
				return nil, err
			}
			tgt, err := resolvePage(conn, str(args, "target_id"))
			if err != nil {
				return nil, err
			}
			re, err := regexp.Compile(str(args, "pattern"))
			if err != nil {
				return nil, cerrors.Wrap(err, cerrors.InvalidArguments, "compiling pattern")
			}
			engine := reg.interceptionEngine(conn)
			c, err := engine.Enable(tgt.ID)
			if err != nil {
				return nil, err
			}
			if err := c.AddRule(interception.Rule{
				ID:          str(args, "id"),
				Pattern:     re,
				Action:      interception.ActionMock,
				MockStatus:  intArg(args, "status"),
				MockBody:    []byte(str(args, "body")),
				MockHeaders: map[string]string{"Content-Type": str(args, "content_type")},
			}); err != nil {
				return nil, err
			}
			return map[string]interface{}{"registered": str(args, "id")}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "configure_blocking",
		Description: "Replace the domain/pattern blocklist applied to all intercepted targets.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "domains", Kind: dispatcher.KindStringArray},
			{Name: "patterns", Kind: dispatcher.KindStringArray},
			{Name: "allow_domains", Kind: dispatcher.KindStringArray},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			domains, _ := args["domains"].([]string)
			patterns, _ := args["patterns"].([]string)
			allowDomains, _ := args["allow_domains"].([]string)

			engine, err := newBlockingEngine(domains, patterns, allowDomains)
			if err != nil {
				return nil, err
			}
			reg.Blocker = engine
			return map[string]interface{}{"domains": len(domains), "patterns": len(patterns)}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "blocking_stats",
		Description: "Report the active blocklist's rule count and request accept/block counters.",
		Advanced:    true,
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if reg.Blocker == nil {
				return map[string]interface{}{"configured": false}, nil
			}
			stats := reg.Blocker.GetDetailedStats()
			return map[string]interface{}{
				"configured":       true,
				"rules":            reg.Blocker.ListRules(),
				"requests_blocked": stats.RequestsBlocked,
				"requests_allowed": stats.RequestsAllowed,
				"domains_blocked":  stats.DomainsBlocked,
				"patterns_blocked": stats.PatternsBlocked,
			}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "set_stealth",
		Description: "Enable or disable the fingerprint-masking document-start script on the current connection.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "enabled", Kind: dispatcher.KindBool, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			conn, err := reg.conn()
			if err != nil {
				return nil, err
			}
			if boolArg(args, "enabled") {
				if reg.stealthInj != nil {
					return map[string]interface{}{"enabled": true}, nil
				}
				inj, err := stealth.Apply(conn.Instance.BrowserCtx, uint32(conn.Instance.Port))
				if err != nil {
					return nil, err
				}
				reg.stealthInj = inj
				return map[string]interface{}{"enabled": true}, nil
			}
			if reg.stealthInj != nil {
				if err := reg.stealthInj.Remove(conn.Instance.BrowserCtx); err != nil {
					return nil, err
				}
				reg.stealthInj = nil
			}
			return map[string]interface{}{"enabled": false}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "set_user_agent",
		Description: "Override the User-Agent header and navigator.userAgent reported by a target.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "target_id", Kind: dispatcher.KindString},
			{Name: "user_agent", Kind: dispatcher.KindString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			conn, err := reg.conn()
			if err != nil {
				return nil, err
			}
			tgt, err := resolvePage(conn, str(args, "target_id"))
			if err != nil {
				return nil, err
			}
			ua := str(args, "user_agent")
			if err := validation.ValidateUserAgent(ua); err != nil {
				return nil, cerrors.Wrap(err, cerrors.InvalidArguments, "validating user_agent")
			}
			if err := runOnPage(ctx, conn, tgt, chromedp.ActionFunc(func(ctx context.Context) error {
				return emulation.SetUserAgentOverride(ua).Do(ctx)
			})); err != nil {
				return nil, cerrors.Wrap(err, cerrors.HandlerRaised, "overriding user agent")
			}
			return map[string]interface{}{"user_agent": ua}, nil
		},
	})
}
