package supervisor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClearSingletonLocksRemovesRootAndProfileLocks(t *testing.T) {
	dir := t.TempDir()
	profileDir := filepath.Join(dir, "Profile 1")
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		t.Fatalf("setting up profile dir: %v", err)
	}

	for _, name := range singletonLockNames {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seeding root lock %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(profileDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seeding profile lock %s: %v", name, err)
		}
	}

	clearSingletonLocks(dir, "Profile 1")

	for _, name := range singletonLockNames {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("expected root lock %s to be removed, stat err=%v", name, err)
		}
		if _, err := os.Stat(filepath.Join(profileDir, name)); !os.IsNotExist(err) {
			t.Errorf("expected profile lock %s to be removed, stat err=%v", name, err)
		}
	}
}

func TestClearSingletonLocksToleratesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	clearSingletonLocks(dir, "") // nothing exists yet; must not panic or error visibly
}

func TestClearSingletonLocksWithoutProfileNameSkipsProfileDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "SingletonLock"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seeding lock: %v", err)
	}

	clearSingletonLocks(dir, "")

	if _, err := os.Stat(filepath.Join(dir, "SingletonLock")); !os.IsNotExist(err) {
		t.Errorf("expected root lock to be removed even without a profile name, stat err=%v", err)
	}
}
