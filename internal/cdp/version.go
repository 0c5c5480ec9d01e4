// Package cdp implements the control server's CDP Transport (C1), Target
// Registry (C2) and Session Manager (C3). It wraps chromedp/cdproto rather
// than speaking the WebSocket wire format itself: chromedp already owns that
// layer (gobwas/ws underneath), and the teacher (tmc-misc/chrome-to-har)
// never reimplements it either — it builds directly on chromedp.Run /
// chromedp.ListenTarget, which is the pattern this package generalizes.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	cerrors "chromecontrol/internal/errors"
)

// VersionInfo mirrors the JSON body of Chromium's /json/version endpoint.
// The Browser field is the sole source of truth the spec's Process
// Supervisor (C4) and Connection Orchestrator (C6) use to decide "is this
// actually Chromium" versus an embedded WebView or a headless-shell
// look-alike.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion       string `json:"Protocol-Version"`
	UserAgent             string `json:"User-Agent"`
	V8Version             string `json:"V8-Version"`
	WebKitVersion         string `json:"WebKit-Version"`
	WebSocketDebuggerURL  string `json:"webSocketDebuggerUrl"`
}

// TargetInfo mirrors one entry of the /json/list response.
type TargetInfo struct {
	Description          string `json:"description"`
	DevtoolsFrontendURL   string `json:"devtoolsFrontendUrl"`
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	Type                  string `json:"type"`
	URL                   string `json:"url"`
	WebSocketDebuggerURL  string `json:"webSocketDebuggerUrl"`
	ParentID              string `json:"parentId,omitempty"`
}

var httpProbeClient = &http.Client{Timeout: 3 * time.Second}

func debuggingURL(host string, port int, path string) string {
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d%s", host, port, path)
}

// ProbeVersion performs the C4 step-1 "probe the debugging port" check. It
// never returns a *transport* error for connection refused — that case is
// the caller's cue to either launch or refuse, not a hard failure.
func ProbeVersion(ctx context.Context, host string, port int) (*VersionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, debuggingURL(host, port, "/json/version"), nil)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.InternalError, "building version probe request")
	}
	resp, err := httpProbeClient.Do(req)
	if err != nil {
		return nil, err // connection-level failure; not itself a ChromeError
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, cerrors.New(cerrors.PortNotBrowser, fmt.Sprintf("version endpoint returned status %d", resp.StatusCode))
	}

	var v VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, cerrors.Wrap(err, cerrors.PortNotBrowser, "decoding version response")
	}
	return &v, nil
}

// IsRealChromium reports whether the Browser field of /json/version contains
// one of the tokens Chrome/, Chromium/, HeadlessChrome/, Edg/ or Brave/
// (case-insensitive), and rejects anything else. Headless builds, which
// answer "HeadlessChrome/123.0.0.0", are accepted, not rejected; a service
// is told apart only by these tokens in its Browser field.
func IsRealChromium(v *VersionInfo) bool {
	if v == nil {
		return false
	}
	b := strings.ToLower(v.Browser)
	for _, token := range []string{"chrome/", "chromium/", "headlesschrome/", "edg/", "brave/"} {
		if strings.Contains(b, token) {
			return true
		}
	}
	return false
}

// ListTargets performs an HTTP GET against /json/list.
func ListTargets(ctx context.Context, host string, port int) ([]TargetInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, debuggingURL(host, port, "/json/list"), nil)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.InternalError, "building target list request")
	}
	resp, err := httpProbeClient.Do(req)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.TransportGone, "listing targets")
	}
	defer resp.Body.Close()

	var targets []TargetInfo
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, cerrors.Wrap(err, cerrors.TransportGone, "decoding target list")
	}
	return targets, nil
}

// NewTarget requests creation of a blank page via /json/new.
func NewTarget(ctx context.Context, host string, port int, url string) (*TargetInfo, error) {
	if url == "" {
		url = "about:blank"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, debuggingURL(host, port, "/json/new?"+url), nil)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.InternalError, "building new-target request")
	}
	resp, err := httpProbeClient.Do(req)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.TransportGone, "creating target")
	}
	defer resp.Body.Close()

	var t TargetInfo
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, cerrors.Wrap(err, cerrors.TransportGone, "decoding new-target response")
	}
	return &t, nil
}

// CloseTarget requests /json/close/<id>.
func CloseTarget(ctx context.Context, host string, port int, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, debuggingURL(host, port, "/json/close/"+id), nil)
	if err != nil {
		return cerrors.Wrap(err, cerrors.InternalError, "building close-target request")
	}
	resp, err := httpProbeClient.Do(req)
	if err != nil {
		return cerrors.Wrap(err, cerrors.TransportGone, "closing target")
	}
	defer resp.Body.Close()
	return nil
}

// ActivateTarget requests /json/activate/<id>.
func ActivateTarget(ctx context.Context, host string, port int, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, debuggingURL(host, port, "/json/activate/"+id), nil)
	if err != nil {
		return cerrors.Wrap(err, cerrors.InternalError, "building activate-target request")
	}
	resp, err := httpProbeClient.Do(req)
	if err != nil {
		return cerrors.Wrap(err, cerrors.TransportGone, "activating target")
	}
	defer resp.Body.Close()
	return nil
}
