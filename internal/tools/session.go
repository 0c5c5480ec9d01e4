package tools

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"chromecontrol/internal/cdp"
	"chromecontrol/internal/dispatcher"
	cerrors "chromecontrol/internal/errors"
	"chromecontrol/internal/recorder"
	"chromecontrol/internal/validation"
)

// registerSessionTools exposes cookie/storage export-import (a session
// snapshot a caller can replay against a freshly-launched shadow profile)
// and HAR capture, grounded in the teacher's internal/recorder package
// (main.go's chromedp.ListenTarget(ctx, rec.HandleNetworkEvent(ctx)) wiring,
// reused verbatim here per-target instead of for one fixed root context)
// and cdproto/network's cookie commands for the storage snapshot.
func registerSessionTools(reg *Registry) {
	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "export_session",
		Description: "Snapshot cookies, localStorage, and sessionStorage for a target as JSON.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
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
			session := conn.Sessions.Ephemeral(tgt.ID)

			var cookies []*network.Cookie
			var localJSON, sessionJSON string
			err = chromedp.Run(session.Context(), chromedp.ActionFunc(func(ctx context.Context) error {
				c, err := network.GetCookies().Do(ctx)
				if err != nil {
					return err
				}
				cookies = c
				return nil
			}),
				chromedp.Evaluate(`JSON.stringify(Object.entries(localStorage))`, &localJSON),
				chromedp.Evaluate(`JSON.stringify(Object.entries(sessionStorage))`, &sessionJSON),
			)
			if err != nil {
				return nil, cerrors.Wrap(err, cerrors.ChromeScriptError, "exporting session")
			}

			var localEntries, sessionEntries [][2]string
			_ = json.Unmarshal([]byte(localJSON), &localEntries)
			_ = json.Unmarshal([]byte(sessionJSON), &sessionEntries)

			return map[string]interface{}{
				"cookies":          cookies,
				"local_storage":    localEntries,
				"session_storage":  sessionEntries,
			}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "import_session",
		Description: "Restore a previously exported cookies/localStorage/sessionStorage snapshot into a target.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "target_id", Kind: dispatcher.KindString},
			{Name: "snapshot", Kind: dispatcher.KindObject, Required: true},
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
			session := conn.Sessions.Ephemeral(tgt.ID)

			snapshot, _ := args["snapshot"].(map[string]interface{})
			params := decodeCookieParams(snapshot["cookies"])
			localEntries := decodeStorageEntries(snapshot["local_storage"])
			sessionEntries := decodeStorageEntries(snapshot["session_storage"])

			actions := []chromedp.Action{}
			if len(params) > 0 {
				actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
					return network.SetCookies(params).Do(ctx)
				}))
			}
			for _, kv := range localEntries {
				actions = append(actions, chromedp.Evaluate(setStorageItemJS("localStorage", kv[0], kv[1]), nil))
			}
			for _, kv := range sessionEntries {
				actions = append(actions, chromedp.Evaluate(setStorageItemJS("sessionStorage", kv[0], kv[1]), nil))
			}

			if err := chromedp.Run(session.Context(), actions...); err != nil {
				return nil, cerrors.Wrap(err, cerrors.ChromeScriptError, "importing session")
			}
			return map[string]interface{}{
				"cookies_restored": len(params),
				"local_restored":   len(localEntries),
				"session_restored": len(sessionEntries),
			}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "start_har_recording",
		Description: "Begin recording network traffic on a target as a HAR log.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
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

			reg.harMu.Lock()
			defer reg.harMu.Unlock()
			if reg.harRec == nil {
				reg.harRec = make(map[target.ID]*recorder.Recorder)
				reg.harSub = make(map[target.ID]func())
			}
			if _, active := reg.harRec[tgt.ID]; active {
				return map[string]interface{}{"already_recording": true}, nil
			}

			rec, err := recorder.New()
			if err != nil {
				return nil, cerrors.Wrap(err, cerrors.ChromeScriptError, "creating HAR recorder")
			}

			session, _ := conn.Sessions.AcquirePersistent(tgt.ID, cdp.PurposeHAR)
			if err := cdp.Send(session, network.Enable()); err != nil {
				conn.Sessions.ClosePersistent(tgt.ID, cdp.PurposeHAR)
				return nil, err
			}
			unsub := cdp.Subscribe(session, &cdp.Subscriber{
				Name:    "har:" + string(tgt.ID),
				Handler: rec.HandleNetworkEvent(session.Context()),
			})

			reg.harRec[tgt.ID] = rec
			reg.harSub[tgt.ID] = unsub
			return map[string]interface{}{"recording": true}, nil
		},
	})

	reg.Dispatcher.Register(&dispatcher.Tool{
		Name:        "export_har_file",
		Description: "Stop the target's active HAR recording and write the accumulated HAR log to a file on disk; fails if no recording is active.",
		Advanced:    true,
		Schema: dispatcher.Schema{Params: []dispatcher.Param{
			{Name: "target_id", Kind: dispatcher.KindString},
			{Name: "path", Kind: dispatcher.KindString, Required: true},
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

			reg.harMu.Lock()
			rec, ok := reg.harRec[tgt.ID]
			if ok {
				if unsub := reg.harSub[tgt.ID]; unsub != nil {
					unsub()
				}
				delete(reg.harRec, tgt.ID)
				delete(reg.harSub, tgt.ID)
			}
			reg.harMu.Unlock()

			if !ok {
				return nil, cerrors.New(cerrors.HARNotRecording, "no HAR recording active for this target")
			}
			conn.Sessions.ClosePersistent(tgt.ID, cdp.PurposeHAR)

			dir, name := filepath.Split(str(args, "path"))
			path := filepath.Join(dir, validation.SanitizeFilename(name))
			if err := rec.WriteHAR(path); err != nil {
				return nil, cerrors.Wrap(err, cerrors.ChromeScriptError, "writing HAR file")
			}
			return map[string]interface{}{"path": path}, nil
		},
	})
}

func decodeCookieParams(raw interface{}) []*network.CookieParam {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]*network.CookieParam, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		p := &network.CookieParam{
			Name:  fieldStr(m, "name"),
			Value: fieldStr(m, "value"),
			Domain: fieldStr(m, "domain"),
			Path:   fieldStr(m, "path"),
		}
		if p.Name == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func decodeStorageEntries(raw interface{}) [][2]string {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([][2]string, 0, len(list))
	for _, item := range list {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			continue
		}
		k, _ := pair[0].(string)
		v, _ := pair[1].(string)
		out = append(out, [2]string{k, v})
	}
	return out
}

func fieldStr(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func setStorageItemJS(store, key, value string) string {
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(value)
	return store + ".setItem(" + string(k) + ", " + string(v) + ")"
}
