package supervisor

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestIsExecutableRejectsMissingPath(t *testing.T) {
	if isExecutable(filepath.Join(t.TempDir(), "does-not-exist")) {
		t.Fatal("expected a missing path to report as not executable")
	}
}

func TestIsExecutableRejectsNonExecutableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit semantics differ on windows")
	}
	path := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if isExecutable(path) {
		t.Fatal("expected a 0644 file to report as not executable")
	}
}

func TestIsExecutableAcceptsExecutableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit semantics differ on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-chrome")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if !isExecutable(path) {
		t.Fatal("expected a 0755 file to report as executable")
	}
}

func TestExecVersionParsesTrailingToken(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shebang scripts aren't directly executable on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-chrome")
	script := "#!/bin/sh\necho 'Google Chrome 120.0.6099.109'\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	if got := execVersion(path); got != "120.0.6099.109" {
		t.Errorf("expected trailing version token, got %q", got)
	}
}

func TestExecVersionReturnsEmptyForBrokenExecutable(t *testing.T) {
	if execVersion(filepath.Join(t.TempDir(), "does-not-exist")) != "" {
		t.Fatal("expected empty version string when the binary can't be run")
	}
}
