package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all planforge configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Workflow loop limits
	Limits LimitsConfig `yaml:"limits"`

	// Interactive shell session settings
	Session SessionConfig `yaml:"session"`

	// Knowledge corpus settings
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the LLM client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, anthropic, zai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// LimitsConfig bounds the orchestration loops.
type LimitsConfig struct {
	// MaxClarifyRounds bounds the requirement clarification loop.
	MaxClarifyRounds int `yaml:"max_clarify_rounds"`

	// MaxStageAttempts bounds retries per plan stage.
	MaxStageAttempts int `yaml:"max_stage_attempts"`

	// MaxToolTurns bounds tool-call turns within a single agent run.
	MaxToolTurns int `yaml:"max_tool_turns"`
}

// SessionConfig configures interactive shell sessions.
type SessionConfig struct {
	// SandboxRoot constrains session working directories.
	// Empty means the current working directory.
	SandboxRoot string `yaml:"sandbox_root"`

	// ReadTimeout is the default wait for session output.
	ReadTimeout string `yaml:"read_timeout"`

	// StartGrace is how long to wait for initial output after spawn.
	StartGrace string `yaml:"start_grace"`

	// MaxOutputBytes caps a single read from a session.
	MaxOutputBytes int `yaml:"max_output_bytes"`
}

// KnowledgeConfig configures the corpus store and embeddings.
type KnowledgeConfig struct {
	DatabasePath string `yaml:"database_path"`
	DocsPath     string `yaml:"docs_path"`

	// Watch re-ingests documents on filesystem changes.
	Watch bool `yaml:"watch"`

	Embedding EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // gemini or empty (keyword-only recall)
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no logging (production)
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false (production mode).
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "planforge",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},

		Limits: LimitsConfig{
			MaxClarifyRounds: 3,
			MaxStageAttempts: 3,
			MaxToolTurns:     8,
		},

		Session: SessionConfig{
			SandboxRoot:    "",
			ReadTimeout:    "500ms",
			StartGrace:     "300ms",
			MaxOutputBytes: 8192,
		},

		Knowledge: KnowledgeConfig{
			DatabasePath: "data/planforge.db",
			DocsPath:     "docs",
			Watch:        false,
			Embedding: EmbeddingConfig{
				Provider: "",
				Model:    "gemini-embedding-001",
			},
		},

		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// LLM API key from environment (check in priority order)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("ZAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "zai"
	}
	if key := os.Getenv("PLANFORGE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("PLANFORGE_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("PLANFORGE_MODEL"); model != "" {
		c.LLM.Model = model
	}

	// Embedding key falls back to Gemini's conventional variable
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Knowledge.Embedding.APIKey = key
		if c.Knowledge.Embedding.Provider == "" {
			c.Knowledge.Embedding.Provider = "gemini"
		}
	}

	// Database path from environment
	if path := os.Getenv("PLANFORGE_DB"); path != "" {
		c.Knowledge.DatabasePath = path
	}

	// Sandbox root from environment
	if root := os.Getenv("PLANFORGE_SANDBOX"); root != "" {
		c.Session.SandboxRoot = root
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetReadTimeout returns the session read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.ReadTimeout)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// GetStartGrace returns the session start grace window as a duration.
func (c *Config) GetStartGrace() time.Duration {
	d, err := time.ParseDuration(c.Session.StartGrace)
	if err != nil {
		return 300 * time.Millisecond
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"openai", "anthropic", "zai"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY, ANTHROPIC_API_KEY, ZAI_API_KEY, or PLANFORGE_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.Limits.MaxClarifyRounds < 1 {
		return fmt.Errorf("max_clarify_rounds must be >= 1")
	}
	if c.Limits.MaxStageAttempts < 1 {
		return fmt.Errorf("max_stage_attempts must be >= 1")
	}

	return nil
}
