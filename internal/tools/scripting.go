package tools

import (
	"context"

	"github.com/chromedp/chromedp"

	"chromecontrol/internal/dispatcher"
	cerrors "chromecontrol/internal/errors"
	"chromecontrol/internal/validation"
)

// registerScriptingTools installs run_script, the one tool that hands
// caller-supplied JavaScript straight to the page. Everything else in this
// package drives the page through named CDP actions (Click, SendKeys,
// Navigate); this is the escape hatch, so it is the one handler that runs
// its argument through validation.ValidateJavaScript before touching CDP.
func registerScriptingTools(reg *Registry) {
	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "run_script",
		Description: "Evaluate a JavaScript expression in the page's main frame and return its JSON-serializable result.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "script", Kind: dispatcher.KindString, Required: true},
			{Name: "target_id", Kind: dispatcher.KindString},
			{Name: "allow_dangerous", Kind: dispatcher.KindBool, Default: false},
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

			script := str(args, "script")
			allowDangerous := boolArg(args, "allow_dangerous")
			if err := validation.ValidateJavaScript(script, allowDangerous); err != nil {
				return nil, cerrors.Wrap(err, cerrors.InvalidArguments, "validating script")
			}

			var result interface{}
			if err := runOnPage(ctx, conn, tgt, chromedp.Evaluate(script, &result)); err != nil {
				return nil, cerrors.Wrap(err, cerrors.HandlerRaised, "evaluating script")
			}
			return map[string]interface{}{"result": result}, nil
		},
	})
}
