package cdp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
)

func TestIsRealChromium(t *testing.T) {
	tests := []struct {
		name string
		v    *VersionInfo
		want bool
	}{
		{"nil version", nil, false},
		{"chrome", &VersionInfo{Browser: "Chrome/123.0.0.0"}, true},
		{"headless chrome", &VersionInfo{Browser: "HeadlessChrome/123.0.0.0"}, true},
		{"chromium", &VersionInfo{Browser: "Chromium/123.0.0.0"}, true},
		{"edge", &VersionInfo{Browser: "Edg/123.0.0.0"}, true},
		{"brave", &VersionInfo{Browser: "Brave/123.0.0.0"}, true},
		{"case insensitive", &VersionInfo{Browser: "CHROME/1.0"}, true},
		{"unrelated webview", &VersionInfo{Browser: "MyEmbeddedWebView/1.0"}, false},
		{"empty", &VersionInfo{Browser: ""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRealChromium(tt.v); got != tt.want {
				t.Errorf("IsRealChromium(%+v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func testServerPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing test server URL %q: %v", srv.URL, err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parsing test server port from %q: %v", srv.URL, err)
	}
	return port
}

func TestProbeVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(VersionInfo{Browser: "Chrome/120.0.0.0"})
	}))
	defer srv.Close()

	port := testServerPort(t, srv)
	v, err := ProbeVersion(context.Background(), "127.0.0.1", port)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsRealChromium(v) {
		t.Errorf("expected probed version to read as real Chromium, got %+v", v)
	}
}

func TestProbeVersionNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	port := testServerPort(t, srv)
	if _, err := ProbeVersion(context.Background(), "127.0.0.1", port); err == nil {
		t.Fatal("expected error for non-200 version endpoint")
	}
}
