// Package config resolves the control server's startup configuration:
// command-line flags (grounded in the teacher's main.go options struct and
// flag.* calls), an optional YAML overlay file (gopkg.in/yaml.v3, already
// part of the teacher's dependency set via its session-export tooling), and
// the single environment variable spec.md §6 reserves for platform-
// conventional profile-directory discovery.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"chromecontrol/internal/profile"
	"chromecontrol/internal/supervisor"
	"chromecontrol/internal/validation"
)

// EnvProfileDir is the one environment variable spec.md §6 allows the
// server to consult: an override for the platform-conventional Chrome
// profile directory profile.DefaultProfileDir() would otherwise compute.
const EnvProfileDir = "CHROMECONTROL_PROFILE_DIR"

// Config is the server's fully resolved startup configuration.
type Config struct {
	Port            int    `yaml:"port"`
	Host            string `yaml:"host"`
	ProfileDir      string `yaml:"profile_dir"`
	ShadowDir       string `yaml:"shadow_dir"`
	SecurityProfile string `yaml:"security_profile"`
	Headless        bool   `yaml:"headless"`
	AdvancedTools   bool   `yaml:"advanced_tools_enabled"`
	Verbose         bool   `yaml:"verbose"`
}

// Parse builds a Config from command-line arguments, an optional -config
// YAML file, and the environment, in that precedence order (flags win).
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("chromecontrol", flag.ContinueOnError)

	cfg := &Config{Port: 9222, Host: "localhost", SecurityProfile: "balanced"}

	var configFile string
	fs.StringVar(&configFile, "config", "", "optional YAML configuration file")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Chrome remote debugging port")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Chrome remote debugging host")
	fs.StringVar(&cfg.ProfileDir, "profile", "", "source Chrome profile directory (defaults to the platform profile dir)")
	fs.StringVar(&cfg.ShadowDir, "shadow-dir", "", "shadow profile working directory (defaults to a temp dir)")
	fs.StringVar(&cfg.SecurityProfile, "security", cfg.SecurityProfile, "launch security profile: strict, balanced, or permissive")
	fs.BoolVar(&cfg.Headless, "headless", false, "launch Chromium headless")
	fs.BoolVar(&cfg.AdvancedTools, "advanced-tools", false, "expose advanced tools from startup")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configFile != "" {
		if err := applyYAML(cfg, configFile); err != nil {
			return nil, err
		}
		// Re-parse flags so CLI args still win over the YAML overlay.
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}

	if cfg.ProfileDir == "" {
		if env := os.Getenv(EnvProfileDir); env != "" {
			cfg.ProfileDir = env
		} else {
			dir, err := profile.DefaultProfileDir()
			if err != nil {
				return nil, err
			}
			cfg.ProfileDir = dir
		}
	}

	if err := validation.ValidatePort(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid -port: %w", err)
	}
	if err := validation.ValidateHostname(cfg.Host); err != nil {
		return nil, fmt.Errorf("invalid -host: %w", err)
	}

	return cfg, nil
}

func applyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	return yaml.Unmarshal(data, cfg)
}

// securityProfile resolves the configured security profile name to the
// supervisor's typed constant, defaulting to balanced for an unrecognized
// value rather than failing startup over a typo.
func (c *Config) securityProfile() supervisor.SecurityProfile {
	switch c.SecurityProfile {
	case "strict":
		return supervisor.SecurityStrict
	case "permissive":
		return supervisor.SecurityPermissive
	default:
		return supervisor.SecurityBalanced
	}
}

// SupervisorRequest builds the launch request this config describes, bound
// to a specific user-data directory (the shadow profile builder fills this
// in at launch time, not at config-parse time).
func (c *Config) SupervisorRequest(userDataDir string) supervisor.Request {
	return supervisor.Request{
		Host:            c.Host,
		Port:            c.Port,
		UserDataDir:     userDataDir,
		SecurityProfile: c.securityProfile(),
		Headless:        c.Headless,
	}
}
