package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/intake/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage intake configuration",
	Long: `Manage intake configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (INTAKE_*, e.g. INTAKE_NOTIFY_RECIPIENT)
3. Config file (~/.intake/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration from all sources (defaults, config file, env vars, flags). Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out, "  Current Configuration")
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out)
		fmt.Fprintln(out, string(yamlData))
		fmt.Fprintln(out, "Configuration hierarchy (highest to lowest priority):")
		fmt.Fprintln(out, "  1. CLI flags")
		fmt.Fprintln(out, "  2. Environment variables (INTAKE_*, SMTP_EMAIL, SMTP_PASSWORD, EMAIL_TO, OPENAI_API_KEY, ANTHROPIC_API_KEY)")
		fmt.Fprintln(out, "  3. Config file (~/.intake/config.yaml)")
		fmt.Fprintln(out, "  4. Defaults")
		fmt.Fprintln(out)

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.intake/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configPath, err := writeDefaultConfig(home + "/.intake")
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  intake config show\n")
		fmt.Fprintf(out, "\nTo customize, edit the file with your preferred editor:\n")
		fmt.Fprintf(out, "  $EDITOR %s\n\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// setDefaults registers every config key with its default and the env
// names it can be read from
func setDefaults(v *viper.Viper) {
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := model.DefaultConfig()
	v.SetDefault("intake.presets_file", d.Intake.PresetsFile)
	v.SetDefault("report.output_dir", d.Report.OutputDir)
	v.SetDefault("report.format", d.Report.Format)
	v.SetDefault("notify.mode", d.Notify.Mode)
	v.SetDefault("notify.smtp_host", d.Notify.SMTPHost)
	v.SetDefault("notify.smtp_port", d.Notify.SMTPPort)
	v.SetDefault("notify.sender", d.Notify.Sender)
	v.SetDefault("notify.password", d.Notify.Password)
	v.SetDefault("notify.recipient", d.Notify.Recipient)
	v.SetDefault("notify.timeout", d.Notify.Timeout)
	v.SetDefault("notify.rate_per_second", d.Notify.RatePerSecond)
	v.SetDefault("notify.burst", d.Notify.Burst)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.max_iterations", d.LLM.MaxIterations)
	v.SetDefault("llm.proxy", d.LLM.Proxy)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL)
	v.SetDefault("server.cleanup_interval", d.Server.CleanupInterval)
	v.SetDefault("batch.workers", d.Batch.Workers)

	// Names used by earlier deployments
	_ = v.BindEnv("notify.sender", "INTAKE_NOTIFY_SENDER", "SMTP_EMAIL")
	_ = v.BindEnv("notify.password", "INTAKE_NOTIFY_PASSWORD", "SMTP_PASSWORD", "APP_PASSWORD")
	_ = v.BindEnv("notify.recipient", "INTAKE_NOTIFY_RECIPIENT", "EMAIL_TO")
}

// loadConfig decodes the effective configuration
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyProviderEnv(cfg, os.Getenv)
	return cfg, nil
}

// applyProviderEnv fills LLM credentials from the providers' own env names
func applyProviderEnv(cfg *model.Config, getenv func(string) string) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = getenv("OLLAMA_BASE_URL")
		}
	}
}

// writeDefaultConfig writes a commented default config.yaml into dir
func writeDefaultConfig(dir string) (path string, err error) {
	path = dir + "/config.yaml"

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file already exists: %s\nUse 'intake config show' to view it, or delete it first to recreate", path)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("error marshaling config: %w", err)
	}

	var b strings.Builder
	b.WriteString("# intake configuration file\n")
	b.WriteString("#\n")
	b.WriteString("# Configuration hierarchy (highest to lowest priority):\n")
	b.WriteString("#   1. CLI flags\n")
	b.WriteString("#   2. Environment variables (INTAKE_*)\n")
	b.WriteString("#   3. This config file\n")
	b.WriteString("#   4. Built-in defaults\n\n")
	b.Write(yamlData)
	b.WriteString("\n# Credentials (recommended to use environment variables instead):\n")
	b.WriteString("#   export SMTP_EMAIL=intake@example.org\n")
	b.WriteString("#   export SMTP_PASSWORD=...\n")
	b.WriteString("#   export EMAIL_TO=staff@example.org\n")
	b.WriteString("#   export OPENAI_API_KEY=sk-...\n")
	b.WriteString("#   export ANTHROPIC_API_KEY=sk-ant-...\n")
	b.WriteString("#   export OLLAMA_BASE_URL=http://localhost:11434\n")

	// Config holds credentials
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return "", fmt.Errorf("error writing config: %w", err)
	}
	return path, nil
}
