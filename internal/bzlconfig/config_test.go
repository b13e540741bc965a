package bzlconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ConfigTOML)
	write(t, path, `
bazel = "bazelisk"

[index]
watch = false
exclude = ["third_party", "vendor"]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := &Config{
		Bazel: "bazelisk",
		Index: IndexConfig{Exclude: []string{"third_party", "vendor"}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigKeepsDefaultsForOmittedKeys(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ConfigTOML)
	write(t, path, `bazel = "bazelisk"`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Index.Watch {
		t.Error("Index.Watch default lost when section omitted")
	}
}

func TestLoadConfigBadTOML(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ConfigTOML)
	write(t, path, "bazel = [broken")

	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() on invalid TOML: want error")
	}
}

func TestDiscoverConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "WORKSPACE"), "")
	write(t, filepath.Join(root, ConfigTOML), `bazel = "from-root"`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := DiscoverConfig(nested)
	if err != nil {
		t.Fatalf("DiscoverConfig() error = %v", err)
	}
	if path != filepath.Join(root, ConfigTOML) {
		t.Errorf("config path = %q, want bzl.toml at workspace root", path)
	}
	if cfg.Bazel != "from-root" {
		t.Errorf("Bazel = %q, want %q", cfg.Bazel, "from-root")
	}
}

func TestDiscoverConfigStopsAtWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	// Config outside the workspace must not be picked up from inside it.
	write(t, filepath.Join(root, ConfigTOML), `bazel = "outside"`)
	ws := filepath.Join(root, "ws")
	write(t, filepath.Join(ws, "MODULE.bazel"), "")

	cfg, path, err := DiscoverConfig(ws)
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Errorf("config path = %q, want none", path)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverConfigEnvOverride(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "custom.toml")
	write(t, path, `bazel = "from-env"`)
	t.Setenv(EnvConfig, path)

	cfg, got, err := DiscoverConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Errorf("config path = %q, want %q", got, path)
	}
	if cfg.Bazel != "from-env" {
		t.Errorf("Bazel = %q, want %q", cfg.Bazel, "from-env")
	}
}
