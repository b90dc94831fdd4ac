package core

import (
	"fmt"
	"strings"
	"time"
)

type IngestConfig struct {
	MaxBodyBytes    int64         `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
	StripeTolerance time.Duration `koanf:"stripe_tolerance" mapstructure:"stripe_tolerance"`
}

type BreakerConfig struct {
	WindowSize           int     `koanf:"window_size" mapstructure:"window_size"`
	MinWindow            int     `koanf:"min_window" mapstructure:"min_window"`
	SuccessRateThreshold float64 `koanf:"success_rate_threshold" mapstructure:"success_rate_threshold"`
	OpenAfterFailures    int     `koanf:"open_after_failures" mapstructure:"open_after_failures"`
	ProbeSuccesses       int     `koanf:"probe_successes" mapstructure:"probe_successes"`
	HalfOpenCloseAfter   int     `koanf:"half_open_close_after" mapstructure:"half_open_close_after"`
	HalfOpenReopenAfter  int     `koanf:"half_open_reopen_after" mapstructure:"half_open_reopen_after"`
}

type TransportConfig struct {
	Timeout        time.Duration `koanf:"timeout" mapstructure:"timeout"`
	RetryTimeout   time.Duration `koanf:"retry_timeout" mapstructure:"retry_timeout"`
	MaxBodyCapture int64         `koanf:"max_body_capture" mapstructure:"max_body_capture"`
	UserAgent      string        `koanf:"user_agent" mapstructure:"user_agent"`
}

type WorkerConfig struct {
	HalfOpenThrottle    time.Duration `koanf:"half_open_throttle" mapstructure:"half_open_throttle"`
	RateLimitFallback   time.Duration `koanf:"rate_limit_fallback" mapstructure:"rate_limit_fallback"`
	ServiceUnavailDelay time.Duration `koanf:"service_unavailable_delay" mapstructure:"service_unavailable_delay"`
}

type ProberConfig struct {
	Interval time.Duration `koanf:"interval" mapstructure:"interval"`
	Timeout  time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type ReplayConfig struct {
	BatchSize        int           `koanf:"batch_size" mapstructure:"batch_size"`
	RateTiers        []int         `koanf:"rate_tiers" mapstructure:"rate_tiers"`
	TierAdvanceAfter int           `koanf:"tier_advance_after" mapstructure:"tier_advance_after"`
	SkipAfterAttempt int           `koanf:"skip_after_attempt" mapstructure:"skip_after_attempt"`
	MinSleep         time.Duration `koanf:"min_sleep" mapstructure:"min_sleep"`
}

type ReconcileConfig struct {
	Interval time.Duration `koanf:"interval" mapstructure:"interval"`
	Lookback time.Duration `koanf:"lookback" mapstructure:"lookback"`
	PageSize int           `koanf:"page_size" mapstructure:"page_size"`
}

type SweeperConfig struct {
	Interval  time.Duration `koanf:"interval" mapstructure:"interval"`
	OrphanAge time.Duration `koanf:"orphan_age" mapstructure:"orphan_age"`
	BatchSize int           `koanf:"batch_size" mapstructure:"batch_size"`
}

type SecurityConfig struct {
	// CredentialKey is the hex encoded 256-bit key used to seal provider
	// API credentials at rest.
	CredentialKey string `koanf:"credential_key" mapstructure:"credential_key"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Ingest      IngestConfig    `koanf:"ingest" mapstructure:"ingest"`
	Breaker     BreakerConfig   `koanf:"breaker" mapstructure:"breaker"`
	Transport   TransportConfig `koanf:"transport" mapstructure:"transport"`
	Worker      WorkerConfig    `koanf:"worker" mapstructure:"worker"`
	Prober      ProberConfig    `koanf:"prober" mapstructure:"prober"`
	Replay      ReplayConfig    `koanf:"replay" mapstructure:"replay"`
	Reconcile   ReconcileConfig `koanf:"reconcile" mapstructure:"reconcile"`
	Sweeper     SweeperConfig   `koanf:"sweeper" mapstructure:"sweeper"`
	Security    SecurityConfig  `koanf:"security" mapstructure:"security"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "hookwise",
		Ingest: IngestConfig{
			MaxBodyBytes:    1 << 20,
			StripeTolerance: 300 * time.Second,
		},
		Breaker: BreakerConfig{
			WindowSize:           20,
			MinWindow:            5,
			SuccessRateThreshold: 0.5,
			OpenAfterFailures:    5,
			ProbeSuccesses:       3,
			HalfOpenCloseAfter:   10,
			HalfOpenReopenAfter:  2,
		},
		Transport: TransportConfig{
			Timeout:        5 * time.Second,
			RetryTimeout:   10 * time.Second,
			MaxBodyCapture: 1024,
			UserAgent:      "HookWise/1.0",
		},
		Worker: WorkerConfig{
			HalfOpenThrottle:    time.Second,
			RateLimitFallback:   60 * time.Second,
			ServiceUnavailDelay: 30 * time.Second,
		},
		Prober: ProberConfig{
			Interval: 60 * time.Second,
			Timeout:  5 * time.Second,
		},
		Replay: ReplayConfig{
			BatchSize:        10,
			RateTiers:        []int{1, 2, 5, 10},
			TierAdvanceAfter: 5,
			SkipAfterAttempt: 3,
			MinSleep:         100 * time.Millisecond,
		},
		Reconcile: ReconcileConfig{
			Interval: 5 * time.Minute,
			Lookback: time.Hour,
			PageSize: 100,
		},
		Sweeper: SweeperConfig{
			Interval:  30 * time.Second,
			OrphanAge: 60 * time.Second,
			BatchSize: 100,
		},
		Security: SecurityConfig{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Breaker.WindowSize <= 0 {
		return fmt.Errorf("core: breaker.window_size must be positive")
	}
	if c.Breaker.SuccessRateThreshold <= 0 || c.Breaker.SuccessRateThreshold > 1 {
		return fmt.Errorf("core: breaker.success_rate_threshold must be in (0, 1]")
	}
	if c.Transport.Timeout <= 0 {
		return fmt.Errorf("core: transport.timeout must be positive")
	}
	if c.Replay.BatchSize <= 0 {
		return fmt.Errorf("core: replay.batch_size must be positive")
	}
	if len(c.Replay.RateTiers) == 0 {
		return fmt.Errorf("core: replay.rate_tiers must not be empty")
	}
	for _, tier := range c.Replay.RateTiers {
		if tier <= 0 {
			return fmt.Errorf("core: replay.rate_tiers entries must be positive")
		}
	}
	return nil
}
