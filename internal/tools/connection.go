package tools

import (
	"context"
	"path/filepath"

	"chromecontrol/internal/dispatcher"
	cerrors "chromecontrol/internal/errors"
	"chromecontrol/internal/profile"
	"chromecontrol/internal/validation"
)

func registerConnectionTools(reg *Registry) {
	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "status",
		Description: "Report whether a browser connection is currently live.",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			c := reg.Orchestrator.Current()
			if c == nil || c.Closed() {
				return map[string]interface{}{"connected": false}, nil
			}
			return map[string]interface{}{
				"connected": true,
				"port":      c.Instance.Port,
				"managed":   c.Instance.Managed,
			}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "launch_with_profile",
		Description: "Ensure a Chromium instance is running against a shadow copy of the named profile, launching one if needed.",
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "profile", Kind: dispatcher.KindString, Default: "Default"},
			{Name: "force", Kind: dispatcher.KindBool, Default: false},
			{Name: "cookie_domains", Kind: dispatcher.KindStringArray},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			profileName := str(args, "profile")
			if err := validation.ValidateProfileName(profileName); err != nil {
				return nil, cerrors.Wrap(err, cerrors.InvalidArguments, "validating profile name")
			}
			force := boolArg(args, "force")

			var domains []string
			if raw, ok := args["cookie_domains"].([]string); ok {
				domains = raw
			} else if len(reg.CookieDomains) > 0 {
				domains = reg.CookieDomains
			}

			req := reg.LaunchRequest
			req.ProfileName = profileName
			srcProfileDir := filepath.Join(reg.BaseProfileDir, profileName)

			conn, err := reg.Orchestrator.LaunchWithProfile(ctx, reg.Builder, srcProfileDir, reg.ShadowDir, domains, req, force)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"port":    conn.Instance.Port,
				"managed": conn.Instance.Managed,
			}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "close_browser",
		Description: "Disconnect from and, if managed, terminate the current browser instance. The only code path permitted to do so.",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			reg.Orchestrator.Disconnect()
			return map[string]interface{}{"closed": true}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "show_advanced_tools",
		Description: "Make the advanced tool catalog visible to subsequent tools/list calls.",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			reg.Dispatcher.SetAdvancedEnabled(true)
			return map[string]interface{}{"advanced_tools_enabled": true}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "hide_advanced_tools",
		Description: "Hide the advanced tool catalog from subsequent tools/list calls.",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			reg.Dispatcher.SetAdvancedEnabled(false)
			return map[string]interface{}{"advanced_tools_enabled": false}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "list_profiles",
		Description: "List Chrome profiles discoverable under the configured profile base directory.",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			names, err := profile.ListProfiles(reg.BaseProfileDir)
			if err != nil {
				return nil, cerrors.Wrap(err, cerrors.ProfileNotFoundError, "listing profiles")
			}
			return map[string]interface{}{"profiles": names}, nil
		},
	})
}
