package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mkarlsen/met-collection-proxy/pkg/client"
	"github.com/mkarlsen/met-collection-proxy/pkg/scheduler"
)

// Config is the full environment-driven configuration surface. Every
// tunable of the mediation core is a field here; nothing is hardcoded.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	UpstreamBaseURL string        `env:"UPSTREAM_BASE_URL" envDefault:"https://collectionapi.metmuseum.org"`
	UserAgent       string        `env:"USER_AGENT" envDefault:"met-collection-proxy/1.0"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`

	CacheTTL             time.Duration `env:"CACHE_TTL" envDefault:"3600s"`
	CacheJanitorInterval time.Duration `env:"CACHE_JANITOR_INTERVAL" envDefault:"5m"`

	SchedulerConcurrency int           `env:"SCHEDULER_CONCURRENCY" envDefault:"4"`
	SchedulerIntervalCap int           `env:"SCHEDULER_INTERVAL_CAP" envDefault:"40"`
	SchedulerInterval    time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1s"`
	SchedulerTimeout     time.Duration `env:"SCHEDULER_TIMEOUT" envDefault:"15s"`

	RetryMax403        int           `env:"RETRY_MAX_403" envDefault:"2"`
	RetryMaxNetwork    int           `env:"RETRY_MAX_NETWORK" envDefault:"1"`
	RetryBackoffBase   time.Duration `env:"RETRY_BACKOFF_BASE" envDefault:"2s"`
	RetryBackoffJitter time.Duration `env:"RETRY_BACKOFF_JITTER" envDefault:"1s"`
	RetryNetworkDelay  time.Duration `env:"RETRY_NETWORK_DELAY" envDefault:"500ms"`

	// Composite artist/department queries fan out to at most
	// FanoutMaxObjects object-detail fetches, FanoutLimit at a time.
	FanoutLimit      int `env:"FANOUT_LIMIT" envDefault:"8"`
	FanoutMaxObjects int `env:"FANOUT_MAX_OBJECTS" envDefault:"20"`
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.FetchTimeout >= cfg.SchedulerTimeout {
		return Config{}, fmt.Errorf("FETCH_TIMEOUT (%v) must be shorter than SCHEDULER_TIMEOUT (%v)",
			cfg.FetchTimeout, cfg.SchedulerTimeout)
	}
	if cfg.FanoutLimit < 1 || cfg.FanoutMaxObjects < 1 {
		return Config{}, fmt.Errorf("fanout limits must be >= 1")
	}
	return cfg, nil
}

// SchedulerConfig maps the flat config onto the dispatcher's.
func (c Config) SchedulerConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.Concurrency = c.SchedulerConcurrency
	cfg.IntervalCap = c.SchedulerIntervalCap
	cfg.Interval = c.SchedulerInterval
	cfg.Timeout = c.SchedulerTimeout
	return cfg
}

// ClientConfig maps the flat config onto the upstream client's.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:   c.UpstreamBaseURL,
		UserAgent: c.UserAgent,
		Timeout:   c.FetchTimeout,
	}
}

// RetryConfig maps the flat config onto the retry policy.
func (c Config) RetryConfig() client.RetryConfig {
	return client.RetryConfig{
		Max403:        c.RetryMax403,
		MaxNetwork:    c.RetryMaxNetwork,
		BackoffBase:   c.RetryBackoffBase,
		BackoffJitter: c.RetryBackoffJitter,
		NetworkDelay:  c.RetryNetworkDelay,
	}
}
