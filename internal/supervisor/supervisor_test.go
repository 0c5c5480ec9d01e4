package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	cerrors "chromecontrol/internal/errors"
)

func fakeChromiumServer(t *testing.T, browser string) (host string, port int, close func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Browser string `json:"Browser"`
		}{Browser: browser})
	}))
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	p, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parsing test server port: %v", err)
	}
	return u.Hostname(), p, srv.Close
}

func TestEnsureBrowserAttachesToExistingChromium(t *testing.T) {
	host, port, close := fakeChromiumServer(t, "Chrome/120.0.0.0")
	defer close()

	inst, err := EnsureBrowser(context.Background(), Request{Host: host, Port: port})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Managed {
		t.Error("expected attaching to an externally managed browser to report Managed=false")
	}
	if inst.Port != port {
		t.Errorf("expected instance port %d, got %d", port, inst.Port)
	}
}

func TestEnsureBrowserRejectsPortThatAnswersButIsNotChromium(t *testing.T) {
	host, port, close := fakeChromiumServer(t, "MysteryBrowser/1.0")
	defer close()

	_, err := EnsureBrowser(context.Background(), Request{Host: host, Port: port})
	if err == nil {
		t.Fatal("expected an error when the port answers but isn't Chromium")
	}
	if !cerrors.IsType(err, cerrors.PortNotBrowser) {
		t.Errorf("expected PortNotBrowser, got %v", err)
	}
}

func TestInstanceAliveReflectsProbe(t *testing.T) {
	host, port, close := fakeChromiumServer(t, "Chrome/120.0.0.0")
	defer close()

	inst := &Instance{Port: port}
	_ = host // Alive probes localhost explicitly, matching the teacher's local-only liveness contract
	if !inst.Alive(context.Background()) {
		t.Error("expected Alive to report true for a reachable Chromium endpoint")
	}
}

func TestInstanceAliveFalseWhenUnreachable(t *testing.T) {
	inst := &Instance{Port: 1} // nothing listens on port 1
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if inst.Alive(ctx) {
		t.Error("expected Alive to report false when nothing answers on the port")
	}
}

func TestInstanceCloseToleratesNilCancels(t *testing.T) {
	(&Instance{}).Close() // must not panic
}

func TestInstanceBindContextSetsFields(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inst := &Instance{}
	inst.BindContext(ctx, cancel)
	if inst.BrowserCtx != ctx {
		t.Error("expected BindContext to set BrowserCtx")
	}
}

func TestInstanceWatchExitSkipsUnmanagedInstances(t *testing.T) {
	inst := &Instance{Managed: false}
	called := make(chan bool, 1)
	inst.WatchExit(context.Background(), func(stillAlive bool) { called <- stillAlive })

	select {
	case <-called:
		t.Fatal("expected WatchExit to be a no-op for an unmanaged instance")
	case <-time.After(100 * time.Millisecond):
	}
}
