package config

import (
	"os"
	"path/filepath"
	"testing"

	"chromecontrol/internal/supervisor"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv(EnvProfileDir, "/tmp/fake-profile-dir")
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9222 {
		t.Errorf("expected default port 9222, got %d", cfg.Port)
	}
	if cfg.Host != "localhost" {
		t.Errorf("expected default host localhost, got %s", cfg.Host)
	}
	if cfg.SecurityProfile != "balanced" {
		t.Errorf("expected default security profile balanced, got %s", cfg.SecurityProfile)
	}
}

func TestParseFlagsOverrideDefaults(t *testing.T) {
	t.Setenv(EnvProfileDir, "/tmp/fake-profile-dir")
	cfg, err := Parse([]string{"-port", "9333", "-headless", "-security", "strict"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9333 {
		t.Errorf("expected overridden port 9333, got %d", cfg.Port)
	}
	if !cfg.Headless {
		t.Error("expected headless to be true")
	}
	if cfg.SecurityProfile != "strict" {
		t.Errorf("expected security profile strict, got %s", cfg.SecurityProfile)
	}
}

func TestParseRejectsInvalidPort(t *testing.T) {
	t.Setenv(EnvProfileDir, "/tmp/fake-profile-dir")
	if _, err := Parse([]string{"-port", "99999"}); err == nil {
		t.Fatal("expected an error for an out-of-range port")
	}
}

func TestParseRejectsInvalidHost(t *testing.T) {
	t.Setenv(EnvProfileDir, "/tmp/fake-profile-dir")
	if _, err := Parse([]string{"-host", ""}); err == nil {
		t.Fatal("expected an error for an empty host")
	}
}

func TestParseEnvVarSuppliesProfileDirWhenFlagAbsent(t *testing.T) {
	t.Setenv(EnvProfileDir, "/tmp/some-profile-dir")
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ProfileDir != "/tmp/some-profile-dir" {
		t.Errorf("expected profile dir from env var, got %s", cfg.ProfileDir)
	}
}

func TestParseFlagProfileDirWinsOverEnv(t *testing.T) {
	t.Setenv(EnvProfileDir, "/tmp/env-profile-dir")
	cfg, err := Parse([]string{"-profile", "/tmp/flag-profile-dir"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ProfileDir != "/tmp/flag-profile-dir" {
		t.Errorf("expected explicit -profile flag to win over env var, got %s", cfg.ProfileDir)
	}
}

func TestParseYAMLOverlayAndFlagPrecedence(t *testing.T) {
	t.Setenv(EnvProfileDir, "/tmp/fake-profile-dir")
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	contents := "port: 9444\nhost: example.internal\nheadless: true\n"
	if err := os.WriteFile(yamlPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing yaml config: %v", err)
	}

	cfg, err := Parse([]string{"-config", yamlPath, "-port", "9555"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9555 {
		t.Errorf("expected explicit -port flag to win over YAML overlay, got %d", cfg.Port)
	}
	if cfg.Host != "example.internal" {
		t.Errorf("expected YAML-supplied host to apply when not overridden by a flag, got %s", cfg.Host)
	}
	if !cfg.Headless {
		t.Error("expected YAML-supplied headless:true to apply")
	}
}

func TestSecurityProfileResolution(t *testing.T) {
	cases := []struct {
		name string
		want supervisor.SecurityProfile
	}{
		{"strict", supervisor.SecurityStrict},
		{"permissive", supervisor.SecurityPermissive},
		{"balanced", supervisor.SecurityBalanced},
		{"typo-value", supervisor.SecurityBalanced},
	}
	for _, tc := range cases {
		cfg := &Config{SecurityProfile: tc.name}
		if got := cfg.securityProfile(); got != tc.want {
			t.Errorf("securityProfile(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSupervisorRequestBindsUserDataDir(t *testing.T) {
	cfg := &Config{Host: "localhost", Port: 9222, SecurityProfile: "strict", Headless: true}
	req := cfg.SupervisorRequest("/tmp/shadow")
	if req.UserDataDir != "/tmp/shadow" {
		t.Errorf("expected UserDataDir to be bound from the argument, got %s", req.UserDataDir)
	}
	if req.SecurityProfile != supervisor.SecurityStrict {
		t.Errorf("expected SecurityStrict, got %v", req.SecurityProfile)
	}
	if !req.Headless {
		t.Error("expected Headless to carry through")
	}
}
