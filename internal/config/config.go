// Package config loads llm-git settings from a config file and
// LLM_GIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every tunable the CLI and collaborators read.
type Config struct {
	APIBaseURL string `mapstructure:"api_base_url"`
	APIKey     string `mapstructure:"api_key"`

	AnalysisModel string  `mapstructure:"analysis_model"`
	SummaryModel  string  `mapstructure:"summary_model"`
	Temperature   float32 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`

	MaxDiffLength int `mapstructure:"max_diff_length"`

	ExcludedFiles         []string `mapstructure:"excluded_files"`
	LowPriorityExtensions []string `mapstructure:"low_priority_extensions"`

	ComposeMaxRounds  int `mapstructure:"compose_max_rounds"`
	ComposeMaxCommits int `mapstructure:"compose_max_commits"`

	SummarySoftLimit int `mapstructure:"summary_soft_limit"`
	SummaryHardLimit int `mapstructure:"summary_hard_limit"`

	GPGSign bool `mapstructure:"gpg_sign"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "https://api.openai.com/v1")
	v.SetDefault("analysis_model", "gpt-4o")
	v.SetDefault("summary_model", "gpt-4o-mini")
	v.SetDefault("temperature", 0.3)
	v.SetDefault("max_tokens", 8000)
	v.SetDefault("max_diff_length", 60000)
	v.SetDefault("excluded_files", []string{
		"Cargo.lock", "package-lock.json", "pnpm-lock.yaml", "yarn.lock", "go.sum",
	})
	v.SetDefault("low_priority_extensions", []string{".md", ".txt", ".toml", ".yaml", ".yml", ".json"})
	v.SetDefault("compose_max_rounds", 3)
	v.SetDefault("compose_max_commits", 3)
	v.SetDefault("summary_soft_limit", 72)
	v.SetDefault("summary_hard_limit", 100)
	v.SetDefault("gpg_sign", false)
}

// Load reads the config file (explicit path, or the default location under
// the user config dir) merged with LLM_GIT_* environment variables. A
// missing file is fine; defaults cover everything.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LLM_GIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "llm-git"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return &cfg, nil
}
