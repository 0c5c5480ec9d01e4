package cdp

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/target"
)

func TestManagerEphemeralReusesExistingSession(t *testing.T) {
	m := NewManager(context.Background())

	first := m.Ephemeral("t1")
	second := m.Ephemeral("t1")
	if first != second {
		t.Fatal("expected a second Ephemeral call for the same target to return the existing session")
	}
}

func TestManagerCloseEphemeralIsIdempotent(t *testing.T) {
	m := NewManager(context.Background())

	s := m.Ephemeral("t1")
	m.CloseEphemeral("t1")
	m.CloseEphemeral("t1") // must not panic

	if err := RequireSession(s); err == nil {
		t.Fatal("expected a closed ephemeral session to report transport-gone")
	}

	again := m.Ephemeral("t1")
	if again == s {
		t.Fatal("expected a fresh session after closing the previous one")
	}
}

func TestManagerAcquirePersistentOncePerTargetAndPurpose(t *testing.T) {
	m := NewManager(context.Background())

	s1, created1 := m.AcquirePersistent("t1", PurposeInterception)
	if !created1 {
		t.Fatal("expected first acquisition to report created=true")
	}

	s2, created2 := m.AcquirePersistent("t1", PurposeInterception)
	if created2 {
		t.Fatal("expected second acquisition for same (target, purpose) to report created=false")
	}
	if s1 != s2 {
		t.Fatal("expected the same session returned for repeated (target, purpose) acquisition")
	}

	s3, created3 := m.AcquirePersistent("t1", PurposeHAR)
	if !created3 {
		t.Fatal("expected a different purpose on the same target to create a new session")
	}
	if s3 == s1 {
		t.Fatal("expected distinct sessions for distinct purposes on the same target")
	}
}

func TestManagerClosePersistentIsIdempotent(t *testing.T) {
	m := NewManager(context.Background())

	s, _ := m.AcquirePersistent("t1", PurposeInterception)
	m.ClosePersistent("t1", PurposeInterception)
	m.ClosePersistent("t1", PurposeInterception) // must not panic

	if err := RequireSession(s); err == nil {
		t.Fatal("expected closed persistent session to report transport-gone")
	}

	_, created := m.AcquirePersistent("t1", PurposeInterception)
	if !created {
		t.Fatal("expected acquiring after close to create a fresh session")
	}
}

func TestManagerPersistentSessionsFor(t *testing.T) {
	m := NewManager(context.Background())

	m.AcquirePersistent("t1", PurposeInterception)
	m.AcquirePersistent("t1", PurposeHAR)
	m.AcquirePersistent("t2", PurposeInterception)

	sessions := m.PersistentSessionsFor("t1")
	if len(sessions) != 2 {
		t.Fatalf("expected 2 persistent sessions for t1, got %d", len(sessions))
	}
	for _, s := range sessions {
		if s.TargetID != "t1" {
			t.Errorf("expected session scoped to t1, got %s", s.TargetID)
		}
	}

	if got := m.PersistentSessionsFor("t2"); len(got) != 1 {
		t.Fatalf("expected 1 persistent session for t2, got %d", len(got))
	}
}

func TestManagerCloseAllClearsEverySession(t *testing.T) {
	m := NewManager(context.Background())

	eph := m.Ephemeral("t1")
	pers, _ := m.AcquirePersistent("t1", PurposeInterception)

	m.CloseAll()

	if err := RequireSession(eph); err == nil {
		t.Error("expected ephemeral session to be closed by CloseAll")
	}
	if err := RequireSession(pers); err == nil {
		t.Error("expected persistent session to be closed by CloseAll")
	}
	if got := m.PersistentSessionsFor("t1"); len(got) != 0 {
		t.Errorf("expected no persistent sessions after CloseAll, got %d", len(got))
	}
}

func TestRequireSessionNilSession(t *testing.T) {
	if err := RequireSession(nil); err == nil {
		t.Fatal("expected error for nil session")
	}
}

func TestRequireSessionLiveContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &Session{TargetID: target.ID("t1"), ctx: ctx}
	if err := RequireSession(s); err != nil {
		t.Fatalf("expected no error for a live context, got %v", err)
	}
}
