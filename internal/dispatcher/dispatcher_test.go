package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	cerrors "chromecontrol/internal/errors"
)

func alwaysConnected(ctx context.Context) error { return nil }

func TestDispatcherCallUnknownTool(t *testing.T) {
	d := New(alwaysConnected)
	res := d.Call(context.Background(), "does_not_exist", nil, 0)
	if res.Success {
		t.Fatal("expected failure for unknown tool")
	}
}

func TestDispatcherCallBypassesEnsureConnectedForAllowList(t *testing.T) {
	calls := 0
	d := New(func(ctx context.Context) error {
		calls++
		return errors.New("no browser")
	})
	d.Register(&Tool{
		Name: "status",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"connected": false}, nil
		},
	})

	res := d.Call(context.Background(), "status", nil, 0)
	if !res.Success {
		t.Fatalf("expected status to succeed without a connection, got %+v", res)
	}
	if calls != 0 {
		t.Fatalf("expected ensureConnected not to be called for an allow-listed tool, called %d times", calls)
	}
}

func TestDispatcherCallRequiresConnectionForOrdinaryTools(t *testing.T) {
	d := New(func(ctx context.Context) error {
		return cerrors.New(cerrors.NotConnected, "no browser reachable")
	})
	d.Register(&Tool{
		Name: "browser_action",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			t.Fatal("handler must not run when ensureConnected fails")
			return nil, nil
		},
	})

	res := d.Call(context.Background(), "browser_action", nil, 0)
	if res.Success {
		t.Fatal("expected failure when not connected")
	}
}

func TestDispatcherCallValidatesArguments(t *testing.T) {
	d := New(alwaysConnected)
	d.Register(&Tool{
		Name:   "browser_action",
		Schema: Schema{Params: []Param{{Name: "url", Kind: KindString, Required: true}}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"url": args["url"]}, nil
		},
	})

	res := d.Call(context.Background(), "browser_action", map[string]interface{}{}, 0)
	if res.Success {
		t.Fatal("expected schema validation to reject missing required argument")
	}

	res = d.Call(context.Background(), "browser_action", map[string]interface{}{"url": "https://example.com"}, 0)
	if !res.Success {
		t.Fatalf("expected call to succeed with valid arguments, got %+v", res)
	}
}

func TestDispatcherCallRecoversHandlerPanic(t *testing.T) {
	d := New(alwaysConnected)
	d.Register(&Tool{
		Name: "dom_interact",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			panic("boom")
		},
	})

	res := d.Call(context.Background(), "dom_interact", nil, 0)
	if res.Success {
		t.Fatal("expected panic to surface as a failed ToolResult")
	}
}

func TestDispatcherCallHonorsDeadline(t *testing.T) {
	d := New(alwaysConnected)
	d.Register(&Tool{
		Name: "manage_tabs",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return "too slow", nil
			}
		},
	})

	res := d.Call(context.Background(), "manage_tabs", nil, 10)
	if res.Success {
		t.Fatal("expected deadline exceeded to surface as a failed ToolResult")
	}
}

func TestDispatcherListHidesAdvancedToolsUntilEnabled(t *testing.T) {
	d := New(alwaysConnected)
	d.Register(&Tool{Name: "status"})
	d.Register(&Tool{Name: "set_stealth", Advanced: true})

	if got := len(d.List()); got != 1 {
		t.Fatalf("expected 1 visible tool before enabling advanced tools, got %d", got)
	}

	d.SetAdvancedEnabled(true)
	if got := len(d.List()); got != 2 {
		t.Fatalf("expected 2 visible tools after enabling advanced tools, got %d", got)
	}
}

func TestDispatcherSetAdvancedEnabledNotifiesOnlyOnChange(t *testing.T) {
	d := New(alwaysConnected)
	notified := 0
	d.OnVisibilityChange(func() { notified++ })

	d.SetAdvancedEnabled(false) // already false: no-op
	if notified != 0 {
		t.Fatalf("expected no notification for a no-op transition, got %d", notified)
	}

	d.SetAdvancedEnabled(true)
	d.SetAdvancedEnabled(true) // already true: no-op
	if notified != 1 {
		t.Fatalf("expected exactly one notification, got %d", notified)
	}
}
