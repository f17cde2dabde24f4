package config

import (
	"fmt"
	"time"

	redisclient "github.com/vietddude/pollster/internal/infra/redis"
	"github.com/vietddude/pollster/internal/infra/storage/postgres"
	"github.com/vietddude/pollster/internal/retry"
)

// Duration is a time.Duration that unmarshals from "200ms" style YAML
// strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	LLM      LLMConfig          `yaml:"llm"`
	Scraper  ScraperConfig      `yaml:"scraper"`
	Polling  PollingConfig      `yaml:"polling"`
	Fetching FetchingConfig     `yaml:"fetching"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
	// RequestTimeout bounds one API request end to end. Retry loops are
	// unbounded by policy, so this is the only limit on a sustained outage.
	RequestTimeout Duration `yaml:"request_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// LLMConfig holds settings for the completion provider.
type LLMConfig struct {
	Provider   string      `yaml:"provider"` // anthropic, openai
	Model      string      `yaml:"model"`
	APIKey     string      `yaml:"api_key"`
	MaxTokens  int         `yaml:"max_tokens"`
	DailyQuota int         `yaml:"daily_quota"` // 0 = unlimited
	Retry      RetryConfig `yaml:"retry"`
}

// ScraperConfig holds settings for the product scraping API.
type ScraperConfig struct {
	BaseURL     string      `yaml:"base_url"`
	APIKey      string      `yaml:"api_key"`
	Marketplace string      `yaml:"marketplace"`
	DailyQuota  int         `yaml:"daily_quota"` // 0 = unlimited
	Retry       RetryConfig `yaml:"retry"`
}

// PollingConfig tunes poll simulation.
type PollingConfig struct {
	Respondents int `yaml:"respondents"` // simulated panel size
	Samples     int `yaml:"samples"`     // expected free-text responses
}

// FetchingConfig tunes bulk product fetching.
type FetchingConfig struct {
	ItemDelay    Duration `yaml:"item_delay"`
	ImageTimeout Duration `yaml:"image_timeout"`
	CacheTTL     Duration `yaml:"cache_ttl"`
	Retention    Duration `yaml:"retention"` // 0 keeps products forever
}

// Default retry policies per service class.
var (
	DefaultLLMRetry     = retry.GenerativePolicy
	DefaultScraperRetry = retry.ScrapePolicy
)

// RetryConfig holds per-service retry tuning.
type RetryConfig struct {
	InitialDelay   Duration `yaml:"initial_delay"`
	MaxDelay       Duration `yaml:"max_delay"`
	Multiplier     float64  `yaml:"multiplier"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
}

// Policy merges r over def, keeping def's value for unset fields.
func (r RetryConfig) Policy(def retry.Policy) retry.Policy {
	p := def
	if r.InitialDelay > 0 {
		p.InitialDelay = r.InitialDelay.Std()
	}
	if r.MaxDelay > 0 {
		p.MaxDelay = r.MaxDelay.Std()
	}
	if r.Multiplier > 1 {
		p.Multiplier = r.Multiplier
	}
	if r.AttemptTimeout > 0 {
		p.AttemptTimeout = r.AttemptTimeout.Std()
	}
	if p.InitialDelay > p.MaxDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}
