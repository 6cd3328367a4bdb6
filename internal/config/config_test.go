package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dray-io/ybroute/internal/routing"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Metadata.OxiaEndpoint != "localhost:6648" {
		t.Errorf("expected default oxia endpoint localhost:6648, got %s", cfg.Metadata.OxiaEndpoint)
	}
	if cfg.Consistency() != routing.ConsistencyLocalOne {
		t.Errorf("expected default consistency LOCAL_ONE, got %s", cfg.Consistency())
	}
	if cfg.RefreshInterval() != 30*time.Second {
		t.Errorf("expected refresh interval 30s, got %s", cfg.RefreshInterval())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
clusterId: prod
routing:
  defaultConsistency: yb_consistent_prefix
  localDc: us-west-2
  usedHostsPerRemoteDc: 2
metadata:
  oxiaEndpoint: oxia:6648
  refreshIntervalMs: 5000
`)
	cfg, err := parse(data, noEnv)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.ClusterID != "prod" || cfg.Routing.LocalDC != "us-west-2" || cfg.Routing.UsedHostsPerRemoteDC != 2 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Consistency() != routing.ConsistencyYBConsistentPrefix {
		t.Errorf("consistency = %s", cfg.Consistency())
	}
	if cfg.Metadata.Namespace != "ybroute" {
		t.Errorf("unset field should keep its default, got namespace %q", cfg.Metadata.Namespace)
	}
	if cfg.RefreshInterval() != 5*time.Second {
		t.Errorf("refresh interval = %s", cfg.RefreshInterval())
	}
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := parse([]byte("clusterId: file\n"), envMap(map[string]string{
		"YBROUTE_CLUSTER_ID":               "env",
		"YBROUTE_LOCAL_DC":                 "dc9",
		"YBROUTE_USED_HOSTS_PER_REMOTE_DC": "3",
		"YBROUTE_SHUFFLE_SEED":             "42",
		"YBROUTE_LOG_LEVEL":                "debug",
	}))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.ClusterID != "env" || cfg.Routing.LocalDC != "dc9" || cfg.Routing.UsedHostsPerRemoteDC != 3 ||
		cfg.Routing.ShuffleSeed != 42 || cfg.Observability.LogLevel != "debug" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}

	_, err = parse(nil, envMap(map[string]string{"YBROUTE_REFRESH_INTERVAL_MS": "soon"}))
	if err == nil || !strings.Contains(err.Error(), "YBROUTE_REFRESH_INTERVAL_MS") {
		t.Errorf("bad integer: err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"consistency", func(c *Config) { c.Routing.DefaultConsistency = "most" }, "defaultConsistency"},
		{"refresh", func(c *Config) { c.Metadata.RefreshIntervalMs = 0 }, "refreshIntervalMs"},
		{"cluster", func(c *Config) { c.ClusterID = "" }, "clusterId"},
		{"remote hosts", func(c *Config) { c.Routing.UsedHostsPerRemoteDC = -1 }, "usedHostsPerRemoteDc"},
		{"log level", func(c *Config) { c.Observability.LogLevel = "loud" }, "logLevel"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tc.want)
			}
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := parse([]byte("routing:\n  localDatacenter: x\n"), noEnv); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ybroute.yaml")
	if err := os.WriteFile(path, []byte("clusterId: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(PathEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ClusterID != "from-file" {
		t.Errorf("ClusterID = %q", cfg.ClusterID)
	}

	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
