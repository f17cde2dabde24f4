package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields with sensible values. Credentials fall
// back to their environment variables when the file leaves them blank.
func (cfg *AppConfig) ApplyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = Duration(5 * time.Minute)
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.Model = "gpt-4o"
		default:
			cfg.LLM.Model = "claude-sonnet-4-20250514"
		}
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	if cfg.Scraper.BaseURL == "" {
		cfg.Scraper.BaseURL = "https://api.rainforestapi.com"
	}
	if cfg.Scraper.Marketplace == "" {
		cfg.Scraper.Marketplace = "amazon.com"
	}
	if cfg.Scraper.APIKey == "" {
		cfg.Scraper.APIKey = os.Getenv("SCRAPER_API_KEY")
	}

	if cfg.Polling.Respondents == 0 {
		cfg.Polling.Respondents = 100
	}
	if cfg.Polling.Samples == 0 {
		cfg.Polling.Samples = 5
	}

	if cfg.Fetching.ItemDelay == 0 {
		cfg.Fetching.ItemDelay = Duration(200 * time.Millisecond)
	}
	if cfg.Fetching.ImageTimeout == 0 {
		cfg.Fetching.ImageTimeout = Duration(30 * time.Second)
	}
	if cfg.Fetching.CacheTTL == 0 {
		cfg.Fetching.CacheTTL = Duration(time.Hour)
	}
}
