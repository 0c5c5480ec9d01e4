package profile

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestIsValidProfileDetectsIndicatorFiles(t *testing.T) {
	dir := t.TempDir()
	if isValidProfile(dir) {
		t.Fatal("expected an empty directory to not look like a profile")
	}
	writeFile(t, filepath.Join(dir, "Preferences"), "{}")
	if !isValidProfile(dir) {
		t.Fatal("expected a directory with a Preferences file to look like a profile")
	}
}

func TestListProfilesFiltersNonProfileDirs(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "Default", "Preferences"), "{}")
	writeFile(t, filepath.Join(base, "Profile 1", "History"), "x")
	if err := os.MkdirAll(filepath.Join(base, "Crashpad"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	profiles, err := ListProfiles(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 valid profiles, got %d: %v", len(profiles), profiles)
	}
}

func TestMirrorCopiesTreeExcludingCacheDirs(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "shadow")

	writeFile(t, filepath.Join(src, "Preferences"), "{}")
	writeFile(t, filepath.Join(src, "Cache", "data_0"), "junk")
	writeFile(t, filepath.Join(src, "Extensions", "abc", "manifest.json"), "{}")

	b := NewBuilder(nil)
	if err := b.Mirror(src, dst, nil); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dst, "Preferences")); err != nil {
		t.Errorf("expected Preferences to be mirrored: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "Extensions", "abc", "manifest.json")); err != nil {
		t.Errorf("expected nested Extensions tree to be mirrored: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "Cache")); !os.IsNotExist(err) {
		t.Errorf("expected Cache to be excluded from the mirror, stat err=%v", err)
	}
}

func TestMirrorIsReRunnableAndDeletesRemovedSources(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "shadow")

	writeFile(t, filepath.Join(src, "Preferences"), "{}")
	writeFile(t, filepath.Join(src, "Bookmarks"), "{}")

	b := NewBuilder(nil)
	if err := b.Mirror(src, dst, nil); err != nil {
		t.Fatalf("first Mirror failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "Bookmarks")); err != nil {
		t.Fatalf("expected Bookmarks to be mirrored: %v", err)
	}

	if err := os.Remove(filepath.Join(src, "Bookmarks")); err != nil {
		t.Fatalf("removing source Bookmarks: %v", err)
	}

	if err := b.Mirror(src, dst, nil); err != nil {
		t.Fatalf("second Mirror failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "Bookmarks")); !os.IsNotExist(err) {
		t.Errorf("expected Bookmarks to be removed from the mirror after its source vanished, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "Preferences")); err != nil {
		t.Errorf("expected Preferences to remain mirrored: %v", err)
	}
}

func newSQLiteCookiesDB(t *testing.T, path string, hostKeys []string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening cookies db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE cookies (host_key TEXT, name TEXT, value TEXT)`); err != nil {
		t.Fatalf("creating cookies table: %v", err)
	}
	for _, hk := range hostKeys {
		if _, err := db.Exec(`INSERT INTO cookies (host_key, name, value) VALUES (?, 'session', 'x')`, hk); err != nil {
			t.Fatalf("inserting cookie row: %v", err)
		}
	}
}

func countCookieRows(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening filtered cookies db: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM cookies`).Scan(&n); err != nil {
		t.Fatalf("counting cookie rows: %v", err)
	}
	return n
}

func TestMirrorFiltersCookiesByDomain(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "shadow")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}

	newSQLiteCookiesDB(t, filepath.Join(src, "Cookies"), []string{
		".example.com", "accounts.example.com", ".tracker.invalid",
	})
	writeFile(t, filepath.Join(src, "Preferences"), "{}")

	b := NewBuilder(nil)
	if err := b.Mirror(src, dst, []string{"example.com"}); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	if got := countCookieRows(t, filepath.Join(dst, "Cookies")); got != 2 {
		t.Errorf("expected 2 cookie rows to survive domain filtering, got %d", got)
	}
}

func TestDefaultProfileDirReturnsNonEmptyPath(t *testing.T) {
	dir, err := DefaultProfileDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir == "" {
		t.Error("expected a non-empty default profile directory")
	}
}
