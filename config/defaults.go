package config

import (
	"strings"
	"time"

	"github.com/oio-go/blobkit/internal/bytesize"
)

// ApplyDefaults fills zero-valued fields of cfg with built-in defaults.
// Explicit values from file or environment are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyStripeDefaults(&cfg.Stripe)
	applyKineticDefaults(&cfg.Kinetic)
	applyFanoutDefaults(&cfg.Fanout)
	applyErasureDefaults(&cfg.Erasure)
	applyHTTPDefaults(&cfg.HTTP)
	applyS3Defaults(&cfg.S3)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyStripeDefaults(cfg *StripeConfig) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = bytesize.ByteSize(512 * bytesize.KiB)
	}
}

func applyKineticDefaults(cfg *KineticConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.RPCTimeout == 0 {
		cfg.RPCTimeout = 30 * time.Second
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = bytesize.ByteSize(1 * bytesize.MiB)
	}
}

func applyFanoutDefaults(cfg *FanoutConfig) {
	if cfg.ListingParallelism == 0 {
		cfg.ListingParallelism = 8
	}
	if cfg.RemovalParallelism == 0 {
		cfg.RemovalParallelism = 8
	}
	if cfg.ReplicationFactor == 0 {
		cfg.ReplicationFactor = 3
	}
	if cfg.ReplicationQuorum == 0 {
		cfg.ReplicationQuorum = 2
	}
}

func applyErasureDefaults(cfg *ErasureConfig) {
	if cfg.DataShards == 0 {
		cfg.DataShards = 6
	}
	if cfg.ParityShards == 0 {
		cfg.ParityShards = 3
	}
}

func applyHTTPDefaults(cfg *HTTPConfig) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.EgressQueueSize == 0 {
		cfg.EgressQueueSize = 64
	}
	if cfg.IngressQueueSize == 0 {
		cfg.IngressQueueSize = 64
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = bytesize.ByteSize(64 * bytesize.MiB)
	}
}

func applyS3Defaults(cfg *S3Config) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PartSize == 0 {
		cfg.PartSize = bytesize.ByteSize(8 * bytesize.MiB)
	}
}

// GetDefaultConfig returns a Config with every field set to its built-in
// default.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
