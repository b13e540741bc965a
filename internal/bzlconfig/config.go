// Package bzlconfig provides configuration loading for bzl tools.
//
// Configuration lives in a bzl.toml file, discovered by walking up the
// directory tree from the current directory. The walk stops at the
// Bazel workspace root when one is found. A config path can also be
// forced through the BZL_CONFIG environment variable.
package bzlconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/albertocavalcante/bzl/internal/bazel"
)

// ConfigTOML is the config filename looked up during discovery.
const ConfigTOML = "bzl.toml"

// EnvConfig is the environment variable for specifying a config file path.
const EnvConfig = "BZL_CONFIG"

// Config is the unified bzl configuration.
type Config struct {
	// Bazel is the bazel binary used for build/test/run actions.
	// Empty means "bazel" from PATH.
	Bazel string `toml:"bazel"`

	// Index contains workspace indexing configuration.
	Index IndexConfig `toml:"index"`
}

// IndexConfig contains workspace indexing configuration.
type IndexConfig struct {
	// Watch enables filesystem watching to keep the index current.
	Watch bool `toml:"watch"`

	// Exclude lists directory names skipped during BUILD file discovery,
	// in addition to the built-in dotdir and bazel-* exclusions.
	Exclude []string `toml:"exclude"`
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{Watch: true},
	}
}

// LoadConfig loads configuration from the given TOML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing TOML config %s: %w", path, err)
	}
	return cfg, nil
}

// DiscoverConfig searches for a bzl.toml starting at startDir.
//
// Resolution order:
//  1. BZL_CONFIG environment variable, when set
//  2. Walk up from startDir, stopping at the workspace root
//
// If no config is found, returns (DefaultConfig(), "", nil).
func DiscoverConfig(startDir string) (*Config, string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		cfg, err := LoadConfig(envPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", EnvConfig, err)
		}
		return cfg, envPath, nil
	}

	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
	}
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}

	dir := absDir
	for {
		path := filepath.Join(dir, ConfigTOML)
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadConfig(path)
			if err != nil {
				return nil, "", err
			}
			return cfg, path, nil
		}

		// The workspace root bounds the search.
		if bazel.IsWorkspaceDir(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return DefaultConfig(), "", nil
}
