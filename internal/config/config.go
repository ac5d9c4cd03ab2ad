// Package config loads the runtime configuration surface spec.md §6
// describes: LLM provider/model/API key bindings, hosted-repo access, the
// database connection, API host/port, rate limit, timeouts, and log
// level. Adapted from the teacher's internal/config/config.go, which
// layers koanf providers (defaults, TOML file, LIVEREVIEW_-prefixed env)
// over a single struct; generalized here from the teacher's
// provider+AI-map shape to the pipeline's typed fields.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AgentBinding configures one LLM Gateway agent→model binding.
type AgentBinding struct {
	Provider string `koanf:"provider"`
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
}

// Config is the full runtime configuration surface.
type Config struct {
	General struct {
		LogLevel string `koanf:"log_level"`
	} `koanf:"general"`

	GitLab struct {
		URL   string `koanf:"url"`
		Token string `koanf:"token"`
	} `koanf:"gitlab"`

	// Agents maps agent_id (logic/readability/performance/security, plus
	// any custom agent) to its model binding. "default" MUST be present;
	// unknown agent IDs fall back to it (spec.md §4.A).
	Agents map[string]AgentBinding `koanf:"agents"`

	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`

	API struct {
		Host            string `koanf:"host"`
		Port            int    `koanf:"port"`
		RateLimitPerMin int    `koanf:"rate_limit_per_minute"`
	} `koanf:"api"`

	Review struct {
		SeverityThreshold string        `koanf:"severity_threshold"`
		AnalyzerTimeout   time.Duration `koanf:"analyzer_timeout"`
		ReviewTimeout     time.Duration `koanf:"review_timeout"`
		MaxFilesPerReview int           `koanf:"max_files_per_review"`
		MaxDiffLines      int           `koanf:"max_diff_lines"`
	} `koanf:"review"`
}

// Load builds a Config from defaults, an optional TOML file, and
// LIVEREVIEW_-prefixed environment variables, in that precedence order.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"general.log_level":            "info",
		"api.host":                     "0.0.0.0",
		"api.port":                     8080,
		"api.rate_limit_per_minute":    10,
		"review.severity_threshold":    "medium",
		"review.analyzer_timeout":      "300s",
		"review.review_timeout":        "600s",
		"review.max_files_per_review":  50,
		"review.max_diff_lines":        10000,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading config defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", configPath, err)
		}
	} else {
		for _, path := range []string{"./livereview-cr.toml", "$HOME/.livereview-cr.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// LIVEREVIEW_DATABASE_URL -> database.url,
	// LIVEREVIEW_API_RATE_LIMIT_PER_MINUTE -> api.rate_limit_per_minute,
	// LIVEREVIEW_AGENTS_DEFAULT_API_KEY -> agents.default.api_key.
	if err := k.Load(env.Provider("LIVEREVIEW_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "LIVEREVIEW_"))
		if strings.HasPrefix(key, "agents_") {
			return "agents." + strings.Replace(strings.TrimPrefix(key, "agents_"), "_", ".", 1)
		}
		return strings.Replace(key, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// InitConfig writes a sample TOML configuration file to configPath,
// refusing to overwrite an existing one.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sample := `# livereview-cr configuration

[general]
log_level = "info"

[gitlab]
url = "https://gitlab.example.com"
token = "your-gitlab-token"

[agents.default]
provider = "openai"
api_key = "your-api-key"
model = "gpt-4o-mini"

[database]
url = "postgres://localhost:5432/livereview_cr"

[api]
host = "0.0.0.0"
port = 8080
rate_limit_per_minute = 10

[review]
severity_threshold = "medium"
analyzer_timeout = "300s"
review_timeout = "600s"
max_files_per_review = 50
max_diff_lines = 10000
`
	return os.WriteFile(configPath, []byte(sample), 0o644)
}

// Validate checks the invariants the pipeline requires before startup: a
// "default" agent binding must exist, GitLab token must accompany a GitLab
// url, and a database URL must be configured.
func Validate(cfg *Config) error {
	if _, ok := cfg.Agents["default"]; !ok {
		return fmt.Errorf("agents.default binding is required")
	}
	if cfg.GitLab.URL != "" && cfg.GitLab.Token == "" {
		return fmt.Errorf("gitlab.token is required when gitlab.url is set")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	return nil
}
