package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !cfg.Enabled {
		t.Error("default Enabled = false, want true")
	}
	if !reflect.DeepEqual(cfg.ServeArgs, []string{DefaultServeArg}) {
		t.Errorf("default ServeArgs = %v", cfg.ServeArgs)
	}
	if cfg.DataDir == "" {
		t.Error("default DataDir is empty")
	}
	if cfg.BinaryPath != "" || cfg.SigningKey != "" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
enabled: false
binary_path: /opt/terraform-ls/terraform-ls
serve_args: ["serve", "-log-file", "/tmp/tfls.log"]
releases_url: https://mirror.example.com/terraform-ls/index.json
data_dir: /var/lib/lsmux
signing_key: /etc/lsmux/hashicorp.asc
auto_approve: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Enabled {
		t.Error("Enabled = true, want false")
	}
	if cfg.BinaryPath != "/opt/terraform-ls/terraform-ls" {
		t.Errorf("BinaryPath = %q", cfg.BinaryPath)
	}
	if !reflect.DeepEqual(cfg.ServeArgs, []string{"serve", "-log-file", "/tmp/tfls.log"}) {
		t.Errorf("ServeArgs = %v", cfg.ServeArgs)
	}
	if cfg.ReleasesURL != "https://mirror.example.com/terraform-ls/index.json" {
		t.Errorf("ReleasesURL = %q", cfg.ReleasesURL)
	}
	if cfg.DataDir != "/var/lib/lsmux" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.BinDir() != filepath.Join("/var/lib/lsmux", "bin") {
		t.Errorf("BinDir() = %q", cfg.BinDir())
	}
	if cfg.SigningKey != "/etc/lsmux/hashicorp.asc" {
		t.Errorf("SigningKey = %q", cfg.SigningKey)
	}
	if !cfg.AutoApprove {
		t.Error("AutoApprove = false, want true")
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "binary_path: /usr/local/bin/terraform-ls\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !cfg.Enabled {
		t.Error("Enabled defaulted to false")
	}
	if !reflect.DeepEqual(cfg.ServeArgs, []string{DefaultServeArg}) {
		t.Errorf("ServeArgs = %v, want default", cfg.ServeArgs)
	}
	if cfg.BinaryPath != "/usr/local/bin/terraform-ls" {
		t.Errorf("BinaryPath = %q", cfg.BinaryPath)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "serve_args: [unclosed\n")

	if _, err := Load(path); err == nil {
		t.Error("Load() succeeded on malformed YAML")
	}
}

func TestEqual(t *testing.T) {
	base := Config{
		Enabled:   true,
		ServeArgs: []string{"serve"},
		DataDir:   "/var/lib/lsmux",
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   bool
	}{
		{name: "identical", mutate: func(c *Config) {}, want: true},
		{name: "enabled_flipped", mutate: func(c *Config) { c.Enabled = false }},
		{name: "binary_path", mutate: func(c *Config) { c.BinaryPath = "/usr/bin/terraform-ls" }},
		{name: "serve_args", mutate: func(c *Config) { c.ServeArgs = []string{"serve", "-port", "1234"} }},
		{name: "releases_url", mutate: func(c *Config) { c.ReleasesURL = "https://mirror.example/index.json" }},
		{name: "data_dir", mutate: func(c *Config) { c.DataDir = "/tmp/lsmux" }},
		{name: "signing_key", mutate: func(c *Config) { c.SigningKey = "/etc/lsmux/key.asc" }},
		{name: "auto_approve", mutate: func(c *Config) { c.AutoApprove = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			other.ServeArgs = append([]string(nil), base.ServeArgs...)
			tt.mutate(&other)
			if got := base.Equal(other); got != tt.want {
				t.Errorf("Equal() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestLoadExplicitDisable(t *testing.T) {
	path := writeConfig(t, "enabled: false\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Enabled {
		t.Error("Enabled = true, want false")
	}
}
