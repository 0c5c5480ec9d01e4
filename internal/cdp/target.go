package cdp

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	cerrors "chromecontrol/internal/errors"
)

// TargetKind classifies a CDP target the way spec.md §3 enumerates them.
type TargetKind string

const (
	KindPage           TargetKind = "page"
	KindServiceWorker  TargetKind = "service_worker"
	KindBackgroundPage TargetKind = "background_page"
	KindBrowser        TargetKind = "browser"
	KindOther          TargetKind = "other"
)

func classify(cdpType string) TargetKind {
	switch cdpType {
	case "page":
		return KindPage
	case "service_worker":
		return KindServiceWorker
	case "background_page":
		return KindBackgroundPage
	case "browser":
		return KindBrowser
	default:
		return KindOther
	}
}

// Target is the Registry's record for one live CDP target (spec.md §3).
type Target struct {
	ID         target.ID
	Kind       TargetKind
	URL        string
	Title      string
	ParentPage target.ID // only meaningful for service/background workers
	Attached   bool
}

// Registry implements C2: a live id -> Target map kept current by
// subscribing to Target.targetCreated/Destroyed/InfoChanged on the root
// browser session, plus the notion of "most recently activated page" needed
// to resolve a caller's implicit "active tab" selector.
type Registry struct {
	mu          sync.RWMutex
	targets     map[target.ID]*Target
	pageOrder   []target.ID // enumeration order, oldest first
	lastActive  target.ID
}

// NewRegistry creates an empty registry and starts its background listener
// against the given root browser context. The context must already be a
// chromedp browser context (chromedp.NewContext output); the registry never
// creates its own.
func NewRegistry(ctx context.Context) *Registry {
	r := &Registry{targets: make(map[target.ID]*Target)}
	chromedp.ListenBrowser(ctx, r.handleEvent)
	return r
}

func (r *Registry) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		r.upsert(e.TargetInfo)
	case *target.EventTargetInfoChanged:
		r.upsert(e.TargetInfo)
	case *target.EventTargetDestroyed:
		r.remove(e.TargetID)
	case *target.EventTargetCrashed:
		r.remove(e.TargetID)
	}
}

func (r *Registry) upsert(info *target.Info) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[info.TargetID]
	if !ok {
		t = &Target{ID: info.TargetID}
		r.targets[info.TargetID] = t
		if classify(info.Type) == KindPage {
			r.pageOrder = append(r.pageOrder, info.TargetID)
		}
	}
	t.Kind = classify(info.Type)
	t.URL = info.URL
	t.Title = info.Title
	t.Attached = info.Attached
	if info.OpenerID != "" {
		t.ParentPage = info.OpenerID
	}
}

func (r *Registry) remove(id target.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targets, id)
	for i, pid := range r.pageOrder {
		if pid == id {
			r.pageOrder = append(r.pageOrder[:i], r.pageOrder[i+1:]...)
			break
		}
	}
	if r.lastActive == id {
		r.lastActive = ""
	}
}

// NoteActivated records that a page target was just brought to the
// foreground by a tool call, so a subsequent implicit "active tab" selector
// resolves to it.
func (r *Registry) NoteActivated(id target.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = id
}

// Get returns the current record for a target id, if it exists.
func (r *Registry) Get(id target.ID) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[id]
	if !ok {
		return Target{}, false
	}
	return *t, true
}

// Pages returns all known page targets in enumeration order.
func (r *Registry) Pages() []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Target, 0, len(r.pageOrder))
	for _, id := range r.pageOrder {
		if t, ok := r.targets[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// Resolve implements C2's selector contract: an explicit id must exist and
// be a page; an absent id resolves to the most recently activated page,
// falling back to the first page in enumeration order; zero pages is
// *no-page-available*.
func (r *Registry) Resolve(explicit target.ID) (Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if explicit != "" {
		t, ok := r.targets[explicit]
		if !ok || t.Kind != KindPage {
			return Target{}, cerrors.New(cerrors.NoPageAvailable, "no such page target: "+string(explicit))
		}
		return *t, nil
	}

	if r.lastActive != "" {
		if t, ok := r.targets[r.lastActive]; ok && t.Kind == KindPage {
			return *t, nil
		}
	}

	for _, id := range r.pageOrder {
		if t, ok := r.targets[id]; ok {
			return *t, nil
		}
	}

	return Target{}, cerrors.New(cerrors.NoPageAvailable, "browser has zero page targets")
}
