package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/seanblong/testgen/internal/ai"
	"github.com/seanblong/testgen/internal/github"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Specification is the process configuration. Tagged env names are also
// accepted with the TESTGEN_ prefix.
type Specification struct {
	Provider          string            `yaml:"provider" envconfig:"AI_PROVIDER"`
	MockMode          bool              `yaml:"mockMode" envconfig:"AI_MOCK_MODE"`
	OpenRouterAPIKey  string            `yaml:"openrouterApiKey" envconfig:"OPENROUTER_API_KEY"`
	OpenRouterModel   string            `yaml:"openrouterModel" envconfig:"OPENROUTER_DEFAULT_MODEL"`
	OpenRouterBaseURL string            `yaml:"openrouterBaseURL" envconfig:"OPENROUTER_API_BASE_URL"`
	OpenRouterReferer string            `yaml:"openrouterReferer" envconfig:"OPENROUTER_REFERER"`
	OpenRouterTitle   string            `yaml:"openrouterTitle" envconfig:"OPENROUTER_TITLE"`
	GeminiAPIKey      string            `yaml:"geminiApiKey" envconfig:"GEMINI_API_KEY"`
	GeminiModel       string            `yaml:"geminiModel" envconfig:"GEMINI_MODEL"`
	GeminiBaseURL     string            `yaml:"geminiBaseURL" envconfig:"GEMINI_API_BASE_URL"`
	RequestTimeout    time.Duration     `yaml:"requestTimeout" split_words:"true"`
	SkipTLSVerify     bool              `yaml:"skipTLSVerify" envconfig:"SKIP_TLS_VERIFY"`
	GithubToken       string            `yaml:"githubToken" envconfig:"GITHUB_TOKEN"`
	GithubAPIURL      string            `yaml:"githubApiURL" envconfig:"GITHUB_API_BASE_URL"`
	Database          string            `yaml:"database" envconfig:"DB_URL"`
	Debug             bool              `yaml:"debug" envconfig:"DEBUG"`
	LogLevel          string            `yaml:"logLevel" split_words:"true"`
	Port              int               `yaml:"port" split_words:"true"`
	Auth              AuthSpecification `yaml:"auth"`

	flags *pflag.FlagSet `ignored:"true"`
}

type AuthSpecification struct {
	Enabled   bool          `yaml:"enabled"`
	JwtSecret string        `yaml:"jwtSecret" split_words:"true"`
	TokenTTL  time.Duration `yaml:"tokenTTL" split_words:"true"`
}

const envPrefix = "TESTGEN"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < .env/env < flags.
// configPath may be ""; if so we auto-discover. args excludes the program name.
func Load(configPath string, fs *pflag.FlagSet, args []string) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg, args)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/testgen.yaml",
				"config/config.yaml",
				"./testgen.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// .env never overrides variables already set in the environment
	if err := loadDotEnv(); err != nil {
		return Specification{}, err
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(args); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if err := cfg.normalize(); err != nil {
		return Specification{}, err
	}
	return cfg, nil
}

// normalize applies derived values and validates the result. Missing
// provider credentials are left to ai.NewClient.
func (s *Specification) normalize() error {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	switch ai.Provider(s.Provider) {
	case ai.ProviderOpenRouter, ai.ProviderGemini, ai.ProviderStub:
	default:
		return fmt.Errorf("unsupported provider %q (want openrouter, gemini or stub)", s.Provider)
	}

	if strings.TrimSpace(s.LogLevel) == "" {
		s.LogLevel = "info"
	}
	if s.Debug {
		s.LogLevel = "debug"
	}
	if s.Auth.Enabled && strings.TrimSpace(s.Auth.JwtSecret) == "" {
		return errors.New("TESTGEN_AUTH_JWT_SECRET is required when auth is enabled")
	}
	return nil
}

// EffectiveProvider is the provider the AI client will be built for.
func (s Specification) EffectiveProvider() ai.Provider {
	if s.MockMode {
		return ai.ProviderStub
	}
	return ai.Provider(s.Provider)
}

// ClientConfig returns the AI client configuration for the selected provider.
func (s Specification) ClientConfig() *ai.ClientConfig {
	cc := &ai.ClientConfig{
		Provider:      s.EffectiveProvider(),
		Timeout:       s.RequestTimeout,
		SkipTLSVerify: s.SkipTLSVerify,
	}
	switch cc.Provider {
	case ai.ProviderOpenRouter:
		cc.APIKey = s.OpenRouterAPIKey
		cc.Model = s.OpenRouterModel
		cc.BaseURL = s.OpenRouterBaseURL
		cc.Referer = s.OpenRouterReferer
		cc.Title = s.OpenRouterTitle
	case ai.ProviderGemini:
		cc.APIKey = s.GeminiAPIKey
		cc.Model = s.GeminiModel
		cc.BaseURL = s.GeminiBaseURL
	}
	return cc
}

// GithubConfig returns the GitHub client configuration.
func (s Specification) GithubConfig() github.Config {
	return github.Config{
		Token:   s.GithubToken,
		BaseURL: s.GithubAPIURL,
		Timeout: s.RequestTimeout,
	}
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func loadDotEnv() error {
	path := os.Getenv(envPrefix + "_ENV_FILE")
	if path == "" {
		path = ".env"
		if !fileExists(path) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification, args []string) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range args {
		if a == "--config" {
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "AI provider (openrouter|gemini|stub)")
	fs.Bool("mock-mode", c.MockMode, "Answer with canned responses instead of calling a provider")
	fs.String("openrouter-api-key", c.OpenRouterAPIKey, "OpenRouter API key")
	fs.String("openrouter-model", c.OpenRouterModel, "OpenRouter default model")
	fs.String("openrouter-base-url", c.OpenRouterBaseURL, "OpenRouter API base URL")
	fs.String("gemini-api-key", c.GeminiAPIKey, "Gemini API key")
	fs.String("gemini-model", c.GeminiModel, "Gemini default model")
	fs.String("gemini-base-url", c.GeminiBaseURL, "Gemini API base URL")
	fs.Duration("request-timeout", c.RequestTimeout, "Timeout for outbound API calls")
	fs.Bool("skip-tls-verify", c.SkipTLSVerify, "Skip TLS verification for provider calls")

	fs.String("github-token", c.GithubToken, "GitHub API token")
	fs.String("github-api-url", c.GithubAPIURL, "GitHub API base URL")

	fs.String("db-url", c.Database, "Database URL (DSN) for generation history")

	fs.Bool("debug", c.Debug, "Enable debug logging")
	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	fs.Bool("auth-enabled", c.Auth.Enabled, "Require bearer tokens on API routes")
	fs.String("auth-jwt-secret", c.Auth.JwtSecret, "JWT secret for signing tokens")
	fs.Duration("auth-token-ttl", c.Auth.TokenTTL, "Lifetime of issued tokens")

	// Used later for usage/help
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}
	setDur := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			v, _ := fs.GetDuration(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setBool("mock-mode", &c.MockMode)
	setStr("openrouter-api-key", &c.OpenRouterAPIKey)
	setStr("openrouter-model", &c.OpenRouterModel)
	setStr("openrouter-base-url", &c.OpenRouterBaseURL)
	setStr("gemini-api-key", &c.GeminiAPIKey)
	setStr("gemini-model", &c.GeminiModel)
	setStr("gemini-base-url", &c.GeminiBaseURL)
	setDur("request-timeout", &c.RequestTimeout)
	setBool("skip-tls-verify", &c.SkipTLSVerify)

	setStr("github-token", &c.GithubToken)
	setStr("github-api-url", &c.GithubAPIURL)

	setStr("db-url", &c.Database)

	setBool("debug", &c.Debug)
	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)

	setBool("auth-enabled", &c.Auth.Enabled)
	setStr("auth-jwt-secret", &c.Auth.JwtSecret)
	setDur("auth-token-ttl", &c.Auth.TokenTTL)
}

func setDefaults(c *Specification) {
	c.Provider = string(ai.ProviderOpenRouter)
	c.OpenRouterModel = ai.DefaultOpenRouterModel
	c.OpenRouterBaseURL = ai.DefaultOpenRouterBaseURL
	c.OpenRouterReferer = ai.DefaultReferer
	c.OpenRouterTitle = ai.DefaultTitle
	c.GeminiModel = ai.DefaultGeminiModel
	c.GeminiBaseURL = ai.DefaultGeminiBaseURL
	c.RequestTimeout = ai.DefaultTimeout
	c.GithubAPIURL = github.DefaultBaseURL
	c.LogLevel = "info"
	c.Port = 8000
	c.Auth.Enabled = false
	c.Auth.TokenTTL = 24 * time.Hour
}
