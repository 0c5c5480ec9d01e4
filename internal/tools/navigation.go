package tools

import (
	"context"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"chromecontrol/internal/dispatcher"
	cerrors "chromecontrol/internal/errors"
	"chromecontrol/internal/orchestrator"
	"chromecontrol/internal/validation"
)

// allowedNavigationProtocols bounds browser_action/manage_tabs navigation to
// schemes a control tool should legitimately drive a page to; javascript:
// and data: URLs are rejected unconditionally by validation.ValidateURL.
var allowedNavigationProtocols = []string{"http", "https", "about", "file"}

func registerNavigationTools(reg *Registry) {
	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "browser_action",
		Description: "Perform a page-level navigation action: navigate, back, forward, or reload.",
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "action", Kind: dispatcher.KindString, Required: true, Enum: []string{"navigate", "back", "forward", "reload"}},
			{Name: "url", Kind: dispatcher.KindString},
			{Name: "target_id", Kind: dispatcher.KindString},
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

			var action chromedp.Action
			switch str(args, "action") {
			case "navigate":
				url := str(args, "url")
				if url == "" {
					return nil, cerrors.New(cerrors.InvalidArguments, "navigate requires a url")
				}
				if err := validation.ValidateURL(url, allowedNavigationProtocols); err != nil {
					return nil, cerrors.Wrap(err, cerrors.InvalidArguments, "validating navigate url")
				}
				action = chromedp.Navigate(url)
			case "back":
				action = chromedp.NavigateBack()
			case "forward":
				action = chromedp.NavigateForward()
			case "reload":
				action = chromedp.Reload()
			}

			if err := runOnPage(ctx, conn, tgt, action); err != nil {
				return nil, err
			}
			conn.Targets.NoteActivated(tgt.ID)
			return map[string]interface{}{"target_id": string(tgt.ID)}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "manage_tabs",
		Description: "List, create, close, activate, or query page targets.",
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "action", Kind: dispatcher.KindString, Required: true, Enum: []string{"list", "new", "close", "activate", "get_url", "get_title"}},
			{Name: "target_id", Kind: dispatcher.KindString},
			{Name: "url", Kind: dispatcher.KindString, Default: "about:blank"},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			conn, err := reg.conn()
			if err != nil {
				return nil, err
			}

			switch str(args, "action") {
			case "list":
				pages := conn.Targets.Pages()
				out := make([]map[string]interface{}, 0, len(pages))
				for _, p := range pages {
					out = append(out, fmtTarget(p))
				}
				return map[string]interface{}{"targets": out}, nil

			case "new":
				url := str(args, "url")
				if err := validation.ValidateURL(url, allowedNavigationProtocols); err != nil {
					return nil, cerrors.Wrap(err, cerrors.InvalidArguments, "validating new tab url")
				}
				info, err := newTargetInfo(ctx, conn, url)
				if err != nil {
					return nil, err
				}
				return info, nil

			case "close":
				tgt, err := resolvePage(conn, str(args, "target_id"))
				if err != nil {
					return nil, err
				}
				conn.Sessions.CloseEphemeral(tgt.ID)
				conn.Sessions.ClosePersistent(tgt.ID, "")
				if err := chromedp.Run(conn.Instance.BrowserCtx, target.CloseTarget(tgt.ID)); err != nil {
					return nil, cerrors.Wrap(err, cerrors.TransportGone, "closing target")
				}
				return map[string]interface{}{"closed": string(tgt.ID)}, nil

			case "activate":
				tgt, err := resolvePage(conn, str(args, "target_id"))
				if err != nil {
					return nil, err
				}
				if err := chromedp.Run(conn.Instance.BrowserCtx, target.ActivateTarget(tgt.ID)); err != nil {
					return nil, cerrors.Wrap(err, cerrors.TransportGone, "activating target")
				}
				conn.Targets.NoteActivated(tgt.ID)
				return map[string]interface{}{"activated": string(tgt.ID)}, nil

			case "get_url":
				tgt, err := resolvePage(conn, str(args, "target_id"))
				if err != nil {
					return nil, err
				}
				var url string
				if err := runOnPage(ctx, conn, tgt, chromedp.Location(&url)); err != nil {
					return nil, err
				}
				return map[string]interface{}{"url": url}, nil

			case "get_title":
				tgt, err := resolvePage(conn, str(args, "target_id"))
				if err != nil {
					return nil, err
				}
				var title string
				if err := runOnPage(ctx, conn, tgt, chromedp.Title(&title)); err != nil {
					return nil, err
				}
				return map[string]interface{}{"title": title}, nil
			}
			return nil, cerrors.New(cerrors.InvalidArguments, "unreachable action")
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "dom_interact",
		Description: "Click, type into, or read text from an element selected by a CSS selector.",
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "action", Kind: dispatcher.KindString, Required: true, Enum: []string{"click", "type", "get_text"}},
			{Name: "selector", Kind: dispatcher.KindString, Required: true},
			{Name: "text", Kind: dispatcher.KindString},
			{Name: "target_id", Kind: dispatcher.KindString},
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
			selector := str(args, "selector")

			switch str(args, "action") {
			case "click":
				if err := runOnPage(ctx, conn, tgt, chromedp.Click(selector)); err != nil {
					return nil, cerrors.Wrap(err, cerrors.SelectorNotFound, "clicking "+selector)
				}
				return map[string]interface{}{"clicked": selector}, nil

			case "type":
				if err := runOnPage(ctx, conn, tgt, chromedp.SendKeys(selector, str(args, "text"))); err != nil {
					return nil, cerrors.Wrap(err, cerrors.SelectorNotFound, "typing into "+selector)
				}
				return map[string]interface{}{"typed": selector}, nil

			case "get_text":
				var text string
				if err := runOnPage(ctx, conn, tgt, chromedp.Text(selector, &text)); err != nil {
					return nil, cerrors.Wrap(err, cerrors.SelectorNotFound, "reading "+selector)
				}
				return map[string]interface{}{"text": text}, nil
			}
			return nil, cerrors.New(cerrors.InvalidArguments, "unreachable action")
		},
	})
}

func newTargetInfo(ctx context.Context, conn *orchestrator.Connection, url string) (map[string]interface{}, error) {
	var id target.ID
	err := chromedp.Run(conn.Instance.BrowserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		newID, err := target.CreateTarget(url).Do(ctx)
		if err != nil {
			return err
		}
		id = newID
		return nil
	}))
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.TransportGone, "creating target")
	}
	conn.Targets.NoteActivated(id)
	return map[string]interface{}{"target_id": string(id)}, nil
}
