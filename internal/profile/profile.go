// Package profile implements the Shadow Profile Builder (C5): a writable,
// re-runnable mirror of the user's real Chrome profile directory that is
// safe to point a debugging-enabled Chromium at without ever touching (or
// forcing closed) the user's live browser.
//
// Grounded in the teacher's internal/chromeprofiles/profile.go, generalized
// per spec.md §4.5: the teacher copies a fixed "essentials" allow-list once
// per run; this builder instead mirrors the whole profile subtree minus an
// exclude list (caches, GPU/shader caches, safe-browsing data, service
// worker storage, video-decode stats, history hints), is idempotent, and
// deletes destination files whose source has disappeared.
package profile

import (
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "modernc.org/sqlite"

	cerrors "chromecontrol/internal/errors"
)

// excludeNames are cache-only directories/files Chromium regenerates on
// demand; mirroring them would be slow and is never required for remote
// debugging to work.
var excludeNames = map[string]bool{
	"Cache":                         true,
	"Code Cache":                    true,
	"GPUCache":                      true,
	"ShaderCache":                   true,
	"GrShaderCache":                 true,
	"DawnCache":                     true,
	"Safe Browsing":                 true,
	"Service Worker":                true,
	"VideoDecodeStats":              true,
	"BudgetDatabase":                true,
	"History Provider Cache":        true,
	"Top Sites":                     false, // small, keep; not a cache directory despite the name
	"heavy_ad_intervention_opt_out": true,
}

var singletonLockNames = []string{"SingletonLock", "SingletonCookie", "SingletonSocket"}

// Builder produces and re-runs shadow-profile mirrors.
type Builder struct {
	Verbose bool
	logf    func(format string, args ...interface{})
}

// NewBuilder creates a Builder; logf may be nil to discard log lines.
func NewBuilder(logf func(string, ...interface{})) *Builder {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Builder{logf: logf}
}

// DefaultProfileDir returns the platform-conventional Chrome user-data
// directory (spec.md §6 "Environment": the only path ever read from outside
// an explicit argument).
func DefaultProfileDir() (string, error) {
	var baseDir string
	switch runtime.GOOS {
	case "windows":
		baseDir = filepath.Join(os.Getenv("LOCALAPPDATA"), "Google", "Chrome", "User Data")
	case "darwin":
		baseDir = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Google", "Chrome")
	case "linux":
		baseDir = filepath.Join(os.Getenv("HOME"), ".config", "google-chrome")
	default:
		return "", cerrors.New(cerrors.ProfileNotFoundError, "unsupported operating system: "+runtime.GOOS)
	}
	return baseDir, nil
}

// ListProfiles enumerates subdirectories of baseDir that look like real
// Chrome profiles (ported from the teacher's ListProfiles).
func ListProfiles(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.ProfileNotFoundError, "reading profile directory")
	}
	var profiles []string
	for _, e := range entries {
		if e.IsDir() && isValidProfile(filepath.Join(baseDir, e.Name())) {
			profiles = append(profiles, e.Name())
		}
	}
	return profiles, nil
}

func isValidProfile(dir string) bool {
	for _, indicator := range []string{"Preferences", "History", "Cookies"} {
		if _, err := os.Stat(filepath.Join(dir, indicator)); err == nil {
			return true
		}
	}
	return false
}

// Mirror produces (or updates in place) a shadow copy of srcProfileDir
// (e.g. ".../User Data/Default") into dstDir. cookieDomains, if non-empty,
// restricts the copied Cookies database to matching host_keys. Mirror is
// safe to call repeatedly: it deletes destination entries whose source
// counterpart is gone, and it never aborts on a single locked/unreadable
// source file — it logs and continues, since the spec requires tolerating
// files locked by the user's still-running browser.
func (b *Builder) Mirror(srcProfileDir, dstDir string, cookieDomains []string) error {
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return cerrors.Wrap(err, cerrors.ProfileSetupError, "creating shadow profile directory")
	}

	if len(cookieDomains) > 0 {
		if err := b.copyCookiesFiltered(srcProfileDir, dstDir, cookieDomains); err != nil {
			b.logf("warning: filtered cookie copy failed, falling back to plain copy: %v", err)
			b.copyFileTolerant(filepath.Join(srcProfileDir, "Cookies"), filepath.Join(dstDir, "Cookies"))
		}
	} else {
		b.copyFileTolerant(filepath.Join(srcProfileDir, "Cookies"), filepath.Join(dstDir, "Cookies"))
	}

	if err := b.mirrorTree(srcProfileDir, dstDir, true); err != nil {
		return err
	}

	// Local State lives at the user-data-dir root (one level above the
	// named profile) and holds the encryption key needed to decrypt
	// cookies/passwords; it must be copied verbatim, never synthesized.
	userDataDir := filepath.Dir(srcProfileDir)
	dstUserDataDir := filepath.Dir(dstDir)
	b.copyFileTolerant(filepath.Join(userDataDir, "Local State"), filepath.Join(dstUserDataDir, "Local State"))

	b.clearSingletonLocks(userDataDir, filepath.Base(srcProfileDir))
	b.clearSingletonLocks(dstUserDataDir, filepath.Base(dstDir))

	return nil
}

func (b *Builder) clearSingletonLocks(userDataDir, profileName string) {
	dirs := []string{userDataDir, filepath.Join(userDataDir, profileName)}
	for _, dir := range dirs {
		for _, name := range singletonLockNames {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// mirrorTree walks src and reproduces it under dst, skipping excluded
// names, then removes anything under dst that no longer exists under src
// (the "re-runnable / tolerates deletions" half of the contract). skipCookies
// controls whether the Cookies file (handled separately, possibly filtered)
// is left alone.
func (b *Builder) mirrorTree(src, dst string, skipCookies bool) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return cerrors.Wrap(err, cerrors.ProfileCopyError, "reading source profile directory")
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := e.Name()
		present[name] = true
		if excludeNames[name] {
			continue
		}
		if skipCookies && name == "Cookies" {
			continue
		}
		srcPath := filepath.Join(src, name)
		dstPath := filepath.Join(dst, name)
		if e.IsDir() {
			if err := os.MkdirAll(dstPath, 0755); err != nil {
				b.logf("warning: mkdir %s: %v", dstPath, err)
				continue
			}
			if err := b.mirrorTree(srcPath, dstPath, false); err != nil {
				b.logf("warning: mirroring %s: %v", srcPath, err)
			}
		} else {
			b.copyFileTolerant(srcPath, dstPath)
		}
	}

	// Delete destination entries whose source has disappeared.
	dstEntries, err := os.ReadDir(dst)
	if err == nil {
		for _, e := range dstEntries {
			if present[e.Name()] || excludeNames[e.Name()] {
				continue
			}
			_ = os.RemoveAll(filepath.Join(dst, e.Name()))
		}
	}

	return nil
}

func (b *Builder) copyFileTolerant(src, dst string) {
	if err := copyFile(src, dst); err != nil {
		if !os.IsNotExist(err) {
			b.logf("warning: copying %s: %v (source may be locked by a running browser; skipped)", src, err)
		}
	}
}

func (b *Builder) copyCookiesFiltered(srcDir, dstDir string, domains []string) error {
	srcDB := filepath.Join(srcDir, "Cookies")
	dstDB := filepath.Join(dstDir, "Cookies")

	if _, err := os.Stat(srcDB); err != nil {
		return err
	}
	if err := copyFile(srcDB, dstDB); err != nil {
		return cerrors.Wrap(err, cerrors.ProfileCopyError, "staging cookies database for filtering")
	}

	dst, err := sql.Open("sqlite", dstDB)
	if err != nil {
		return cerrors.Wrap(err, cerrors.ProfileCopyError, "opening staged cookies database")
	}
	defer dst.Close()

	tx, err := dst.Begin()
	if err != nil {
		return cerrors.Wrap(err, cerrors.ProfileCopyError, "beginning cookie filter transaction")
	}
	defer tx.Rollback()

	var where strings.Builder
	where.WriteString("host_key NOT LIKE '%")
	where.WriteString(strings.Join(domains, "%' AND host_key NOT LIKE '%"))
	where.WriteString("%'")

	if _, err := tx.Exec("DELETE FROM cookies WHERE " + where.String()); err != nil {
		return cerrors.Wrap(err, cerrors.ProfileCopyError, "filtering cookies by domain")
	}
	if err := tx.Commit(); err != nil {
		return cerrors.Wrap(err, cerrors.ProfileCopyError, "committing cookie filter")
	}
	b.logf("filtered cookies to domains: %v", domains)
	return nil
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return err
	}

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode())
}
