package model

import "time"

// Config is the complete intake configuration
type Config struct {
	Intake IntakeConfig `yaml:"intake" mapstructure:"intake"`
	Report ReportConfig `yaml:"report" mapstructure:"report"`
	Notify NotifyConfig `yaml:"notify" mapstructure:"notify"`
	LLM    LLMConfig    `yaml:"llm" mapstructure:"llm"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
}

// IntakeConfig controls the interview itself
type IntakeConfig struct {
	PresetsFile string `yaml:"presets_file" mapstructure:"presets_file"` // Extra preset fixtures (YAML)
}

// ReportConfig controls report generation
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
	Format    string `yaml:"format" mapstructure:"format"` // html, markdown, json
}

// NotifyConfig controls report notification
type NotifyConfig struct {
	Mode          string        `yaml:"mode" mapstructure:"mode"` // smtp, log
	SMTPHost      string        `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort      int           `yaml:"smtp_port" mapstructure:"smtp_port"`
	Sender        string        `yaml:"sender" mapstructure:"sender"`
	Password      string        `yaml:"password,omitempty" mapstructure:"password"`
	Recipient     string        `yaml:"recipient" mapstructure:"recipient"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int           `yaml:"burst" mapstructure:"burst"`
	DomainRates   []DomainRate  `yaml:"domain_rates,omitempty" mapstructure:"domain_rates"` // Per recipient domain overrides
}

// DomainRate overrides the send rate for one recipient domain. A list keeps
// dotted domain names out of config key paths.
type DomainRate struct {
	Domain        string  `yaml:"domain" mapstructure:"domain"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"` // <= 0 means unlimited
	Burst         int     `yaml:"burst,omitempty" mapstructure:"burst"`
}

// LLMConfig controls the optional natural-language driver
type LLMConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model         string `yaml:"model" mapstructure:"model"`
	APIKey        string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL       string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout       int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxIterations int    `yaml:"max_iterations" mapstructure:"max_iterations"`
	Proxy         string `yaml:"proxy,omitempty" mapstructure:"proxy"` // HTTP(S) proxy for provider calls; env when empty
}

// ServerConfig controls the HTTP tool API
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	SessionTTL      time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// BatchConfig controls batch assessment
type BatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Report: ReportConfig{
			OutputDir: "results",
			Format:    "html",
		},
		Notify: NotifyConfig{
			Mode:          "smtp",
			SMTPHost:      "smtp.gmail.com",
			SMTPPort:      465,
			Timeout:       30 * time.Second,
			RatePerSecond: 1,
			Burst:         5,
		},
		LLM: LLMConfig{
			Provider:      "", // Disabled by default
			Timeout:       30,
			MaxTokens:     1000,
			MaxIterations: 20,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			SessionTTL:      30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}

// Redacted returns a copy with credentials masked, for display
func (c Config) Redacted() Config {
	if c.Notify.Password != "" {
		c.Notify.Password = "********"
	}
	if c.LLM.APIKey != "" {
		c.LLM.APIKey = "********"
	}
	return c
}
