// Package config provides configuration loading and validation for ybroute.
// Supports YAML files with environment variable overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dray-io/ybroute/internal/logging"
	"github.com/dray-io/ybroute/internal/routing"
)

// PathEnv names the environment variable Load reads the config path from.
const PathEnv = "YBROUTE_CONFIG"

// Config holds all configuration for a ybroute client.
type Config struct {
	ClusterID     string              `yaml:"clusterId" env:"YBROUTE_CLUSTER_ID"`
	Routing       RoutingConfig       `yaml:"routing"`
	Metadata      MetadataConfig      `yaml:"metadata"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type RoutingConfig struct {
	// DefaultConsistency applies to statements without their own level.
	DefaultConsistency string `yaml:"defaultConsistency" env:"YBROUTE_DEFAULT_CONSISTENCY"`
	// LocalDC selects the fallback's local data center. Empty treats every
	// host as local.
	LocalDC              string `yaml:"localDc" env:"YBROUTE_LOCAL_DC"`
	UsedHostsPerRemoteDC int    `yaml:"usedHostsPerRemoteDc" env:"YBROUTE_USED_HOSTS_PER_REMOTE_DC"`
	// ShuffleSeed seeds the replica shuffle when non-zero.
	ShuffleSeed int64 `yaml:"shuffleSeed" env:"YBROUTE_SHUFFLE_SEED"`
}

type MetadataConfig struct {
	OxiaEndpoint      string `yaml:"oxiaEndpoint" env:"YBROUTE_OXIA_ENDPOINT"`
	Namespace         string `yaml:"namespace" env:"YBROUTE_OXIA_NAMESPACE"`
	RefreshIntervalMs int64  `yaml:"refreshIntervalMs" env:"YBROUTE_REFRESH_INTERVAL_MS"`
	RequestTimeoutMs  int64  `yaml:"requestTimeoutMs" env:"YBROUTE_REQUEST_TIMEOUT_MS"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"YBROUTE_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"YBROUTE_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"YBROUTE_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ClusterID: "default",
		Routing: RoutingConfig{
			DefaultConsistency: routing.DefaultConsistencyLevel.String(),
		},
		Metadata: MetadataConfig{
			OxiaEndpoint:      "localhost:6648",
			Namespace:         "ybroute",
			RefreshIntervalMs: 30000,
			RequestTimeoutMs:  5000,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load reads the file named by YBROUTE_CONFIG, or starts from Default when
// it is unset, then applies environment overrides.
func Load() (*Config, error) {
	if path := os.Getenv(PathEnv); path != "" {
		return LoadFromPath(path)
	}
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFromPath decodes the YAML file at path over Default, then applies
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := parse(data, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overwrites every field with an env tag whose variable is set.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	return applyEnv(reflect.ValueOf(c).Elem(), lookup)
}

func applyEnv(v reflect.Value, lookup func(string) (string, bool)) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct {
			if err := applyEnv(field, lookup); err != nil {
				return err
			}
			continue
		}
		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("config: %s: %w", name, err)
			}
			field.SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("config: %s: %w", name, err)
			}
			field.SetBool(b)
		default:
			return fmt.Errorf("config: %s: unsupported field kind %s", name, field.Kind())
		}
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.ClusterID == "" {
		errs = append(errs, errors.New("clusterId is required"))
	}
	if _, err := routing.ParseConsistency(c.Routing.DefaultConsistency); err != nil {
		errs = append(errs, fmt.Errorf("routing.defaultConsistency: %w", err))
	}
	if c.Routing.UsedHostsPerRemoteDC < 0 {
		errs = append(errs, errors.New("routing.usedHostsPerRemoteDc must not be negative"))
	}
	if c.Metadata.RefreshIntervalMs <= 0 {
		errs = append(errs, errors.New("metadata.refreshIntervalMs must be positive"))
	}
	if c.Metadata.RequestTimeoutMs < 0 {
		errs = append(errs, errors.New("metadata.requestTimeoutMs must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Observability.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("observability.logLevel: %w", err))
	}
	if _, err := logging.ParseFormat(c.Observability.LogFormat); err != nil {
		errs = append(errs, fmt.Errorf("observability.logFormat: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// Consistency returns the parsed default consistency level.
func (c *Config) Consistency() routing.Consistency {
	cl, err := routing.ParseConsistency(c.Routing.DefaultConsistency)
	if err != nil {
		return routing.DefaultConsistencyLevel
	}
	return cl
}

// RefreshInterval returns the split refresh interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Metadata.RefreshIntervalMs) * time.Millisecond
}

// RequestTimeout returns the metadata store request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Metadata.RequestTimeoutMs) * time.Millisecond
}
