// Package config loads blobkit's tunables from file, environment, and
// built-in defaults, the same way the rest of the stack configures itself:
// viper for layered sources, mapstructure decode hooks for human-readable
// durations and byte sizes, go-playground/validator for struct-tag checks.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oio-go/blobkit/internal/bytesize"
)

// Config is the root configuration for a blobkit client: logging,
// telemetry, metrics, and the tunables of every back-end and fan-out
// engine the process may construct.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (BLOBKIT_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`

	// Stripe configures the fixed-block striping upload (C8).
	Stripe StripeConfig `mapstructure:"stripe" yaml:"stripe"`

	// Kinetic configures the coroutine-style Kinetic drive client (C6).
	Kinetic KineticConfig `mapstructure:"kinetic" yaml:"kinetic"`

	// Fanout configures the listing/removal/replicated fan-out engines
	// (C9, C10).
	Fanout FanoutConfig `mapstructure:"fanout" yaml:"fanout"`

	// Erasure configures the (k, m) Reed-Solomon fan-out (C11).
	Erasure ErasureConfig `mapstructure:"erasure" yaml:"erasure"`

	// HTTP configures the rawx sync/reactive codec (C4, C7).
	HTTP HTTPConfig `mapstructure:"http" yaml:"http"`

	// S3 configures the S3-compatible back-end (C7 + §10.2).
	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StripeConfig configures fixed-block striping uploads.
type StripeConfig struct {
	// BlockSize is the fixed fragment size written to each drive in
	// round-robin order. Supports human-readable sizes: "1Mi", "512Ki".
	BlockSize bytesize.ByteSize `mapstructure:"block_size" validate:"required,gt=0" yaml:"block_size"`
}

// KineticConfig configures the Kinetic drive client.
type KineticConfig struct {
	// ConnectTimeout bounds the initial TCP dial to a drive.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"required,gt=0" yaml:"connect_timeout"`

	// RPCTimeout bounds a single exchange's round trip before it is
	// evicted from the pending table with a NetworkError.
	RPCTimeout time.Duration `mapstructure:"rpc_timeout" validate:"required,gt=0" yaml:"rpc_timeout"`

	// MaxFrameSize bounds both lengths declared in the 9-byte frame
	// header (message and value), rejecting oversize GETLOG/PUT payloads
	// before allocating.
	MaxFrameSize bytesize.ByteSize `mapstructure:"max_frame_size" validate:"required,gt=0" yaml:"max_frame_size"`

	// ClusterVersion is sent on every Command.header to detect a stale
	// client talking to a drive that has since rebalanced.
	ClusterVersion int64 `mapstructure:"cluster_version" yaml:"cluster_version"`
}

// FanoutConfig configures the listing/removal/replicated fan-out engines.
type FanoutConfig struct {
	// ListingParallelism bounds concurrent GETKEYRANGE calls issued
	// during a fan-out listing barrier.
	ListingParallelism int `mapstructure:"listing_parallelism" validate:"required,gt=0" yaml:"listing_parallelism"`

	// RemovalParallelism bounds concurrent DELETE calls in flight at
	// once during a fan-out removal, refilled as each completes.
	RemovalParallelism int `mapstructure:"removal_parallelism" validate:"required,gt=0" yaml:"removal_parallelism"`

	// ReplicationFactor is the default K for a replicated back-end
	// when the caller does not specify one explicitly.
	ReplicationFactor int `mapstructure:"replication_factor" validate:"required,gt=0" yaml:"replication_factor"`

	// ReplicationQuorum is the default M-of-K success threshold.
	ReplicationQuorum int `mapstructure:"replication_quorum" validate:"required,gt=0" yaml:"replication_quorum"`
}

// ErasureConfig configures the (k, m) Reed-Solomon fan-out.
type ErasureConfig struct {
	// DataShards is the default k (data fragments).
	DataShards int `mapstructure:"data_shards" validate:"required,gt=0" yaml:"data_shards"`

	// ParityShards is the default m (parity fragments).
	ParityShards int `mapstructure:"parity_shards" validate:"required,gt=0" yaml:"parity_shards"`
}

// HTTPConfig configures the rawx HTTP codec, both the synchronous and
// the reactive event-loop variants.
type HTTPConfig struct {
	// DialTimeout bounds the TCP connect to a rawx.
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"required,gt=0" yaml:"dial_timeout"`

	// RequestTimeout bounds a single sync Upload/Download/Removal
	// transaction against a rawx.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0" yaml:"request_timeout"`

	// EgressQueueSize bounds the reactive codec's outbound frame queue
	// before Write blocks the caller (back-pressure).
	EgressQueueSize int `mapstructure:"egress_queue_size" validate:"required,gt=0" yaml:"egress_queue_size"`

	// IngressQueueSize bounds the reactive codec's inbound frame queue
	// before the event loop stops reading from the socket.
	IngressQueueSize int `mapstructure:"ingress_queue_size" validate:"required,gt=0" yaml:"ingress_queue_size"`

	// MaxBodySize caps a single rawx response body, guarding against a
	// server sending an unbounded Content-Length.
	MaxBodySize bytesize.ByteSize `mapstructure:"max_body_size" validate:"required,gt=0" yaml:"max_body_size"`
}

// S3Config configures access to an S3-compatible object store.
type S3Config struct {
	// Endpoint overrides the default AWS endpoint, for S3-compatible
	// services (MinIO, Ceph RGW). Empty uses the region's AWS endpoint.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Region is the AWS region (or a placeholder region for endpoints
	// that don't use one).
	Region string `mapstructure:"region" validate:"required" yaml:"region"`

	// AccessKeyID and SecretAccessKey are static credentials. Empty
	// values fall back to the SDK's default credential chain.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`

	// ForcePathStyle is required by most non-AWS S3-compatible services.
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// Bucket is the default bucket for commands that don't specify one.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// PartSize is the default multipart upload part size. Supports
	// human-readable sizes: "8Mi".
	PartSize bytesize.ByteSize `mapstructure:"part_size" yaml:"part_size"`
}

// Load loads configuration from file, environment, and defaults.
//
// configPath may be empty, in which case the default location
// ($XDG_CONFIG_HOME/blobkit/config.yaml) is searched; if nothing is found
// there either, the built-in defaults are returned.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return &cfg, nil
}

// WatchConfig reloads configuration from configPath whenever the file
// changes on disk, invoking onChange with the newly loaded Config. Load
// or validation errors during a reload are logged to onErr rather than
// propagated, since a file mid-write can transiently fail to parse.
func WatchConfig(configPath string, onChange func(*Config), onErr func(error)) error {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := Load(configPath)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}

// MustLoad loads configuration, returning a descriptive error if configPath
// is explicit and does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config: file not found: %s", configPath)
		}
	}
	return Load(configPath)
}

// SaveConfig writes cfg as YAML to path, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BLOBKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "blobkit")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "blobkit")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
