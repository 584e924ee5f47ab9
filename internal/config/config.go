// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"autoswarm/internal/llm"
	"autoswarm/internal/telemetry"
	"autoswarm/internal/tools"
)

// ErrConfigNotFound is returned by Load when the file does not exist
var ErrConfigNotFound = errors.New("configuration file not found")

// DefaultPath is the config file location relative to the working directory
var DefaultPath = filepath.Join(".autoswarm", "config.yaml")

// Environment variables that override the file
const (
	EnvAPIKey = "OPENROUTER_API_KEY"
	EnvModel  = "AUTOSWARM_MODEL"
)

// Collaborator backends
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpencode   = "opencode"
)

// Config represents the complete autoswarm configuration
type Config struct {
	Project    ProjectConfig    `yaml:"project"`
	Model      ModelConfig      `yaml:"model"`
	LLM        LLMConfig        `yaml:"llm"`
	Engine     EngineConfig     `yaml:"engine"`
	MCPServers MCPServersConfig `yaml:"mcpServers"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ProjectConfig holds project-level configuration
type ProjectConfig struct {
	Name             string `yaml:"name"`
	WorkingDirectory string `yaml:"working_directory"`
}

// ModelConfig specifies model preferences
type ModelConfig struct {
	Default string `yaml:"default"`

	// Designer overrides Default for design and refine calls
	Designer string `yaml:"designer"`
}

// LLMConfig configures the collaborator client
type LLMConfig struct {
	Provider       string  `yaml:"provider"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	OpencodeURL    string  `yaml:"opencode_url"`
	Referer        string  `yaml:"referer"`
	Title          string  `yaml:"title"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// EngineConfig controls execution
type EngineConfig struct {
	StrictBatching bool `yaml:"strict_batching"`

	// Stream defaults to true when unset
	Stream *bool `yaml:"stream"`
}

// MCPServersConfig configures MCP server connections keyed by server id
type MCPServersConfig map[string]MCPServerConfig

// MCPServerConfig represents a single remote MCP server
type MCPServerConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Description string `yaml:"description"`
	Enabled     bool   `yaml:"enabled"`
}

// TelemetryConfig controls tracing and metrics
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"service_name"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
	MetricsAddr  string  `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration at path, or at DefaultPath under the
// working directory when path is empty, then applies defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if path == "" {
		path = filepath.Join(cwd, DefaultPath)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Project.WorkingDirectory == "" {
		cfg.Project.WorkingDirectory = cwd
	}
	cfg.applyDefaults()
	cfg.ApplyEnv(os.Getenv)

	return &cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default plus
// environment overrides when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, ErrConfigNotFound) {
		cfg = Default()
		if cwd, err := os.Getwd(); err == nil {
			cfg.Project.WorkingDirectory = cwd
		}
		cfg.ApplyEnv(os.Getenv)
		return cfg, nil
	}
	return cfg, err
}

// ApplyEnv overrides credentials and model from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIKey); v != "" {
		c.LLM.APIKey = v
	}
	if v := getenv(EnvModel); v != "" {
		c.Model.Default = v
	}
}

func (c *Config) applyDefaults() {
	if c.Model.Default == "" {
		c.Model.Default = llm.DefaultModel
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenRouter
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = llm.DefaultBaseURL
	}
	if c.LLM.OpencodeURL == "" {
		c.LLM.OpencodeURL = "http://localhost:4096"
	}
	if c.LLM.Title == "" {
		c.LLM.Title = "autoswarm"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = llm.DefaultTemperature
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = llm.DefaultMaxTokens
	}
	if c.Engine.Stream == nil {
		stream := true
		c.Engine.Stream = &stream
	}

	tel := telemetry.DefaultConfig()
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = tel.CollectorURL
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = tel.ServiceName
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = tel.Environment
	}
	if c.Telemetry.SamplingRate == 0 {
		c.Telemetry.SamplingRate = tel.SamplingRate
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenRouter:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("api key is required: set llm.api_key or %s", EnvAPIKey)
		}
	case ProviderOpencode:
		if c.LLM.OpencodeURL == "" {
			return fmt.Errorf("opencode url is required")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	if c.Model.Default == "" {
		return fmt.Errorf("default model is required")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", c.LLM.Temperature)
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("sampling rate must be within [0, 1], got %v", c.Telemetry.SamplingRate)
	}

	for id, srv := range c.MCPServers {
		if srv.Enabled && srv.URL == "" {
			return fmt.Errorf("mcp server %s is enabled but has no url", id)
		}
	}
	return nil
}

// DesignerModel is the model used for design and refine calls.
func (c *Config) DesignerModel() string {
	if c.Model.Designer != "" {
		return c.Model.Designer
	}
	return c.Model.Default
}

// StreamEnabled reports whether node calls stream.
func (c *Config) StreamEnabled() bool {
	return c.Engine.Stream == nil || *c.Engine.Stream
}

// Timeout is the per-request collaborator timeout; zero means none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// EnabledServers returns the enabled MCP servers sorted by id.
func (c *Config) EnabledServers() []tools.ServerConfig {
	ids := make([]string, 0, len(c.MCPServers))
	for id, srv := range c.MCPServers {
		if srv.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]tools.ServerConfig, 0, len(ids))
	for _, id := range ids {
		srv := c.MCPServers[id]
		out = append(out, tools.ServerConfig{ID: id, Name: srv.Description, URL: srv.URL, Token: srv.Token})
	}
	return out
}

// TracingConfig converts the telemetry section for telemetry.NewTracerProvider.
func (c *Config) TracingConfig(version string) *telemetry.Config {
	return &telemetry.Config{
		ServiceName:    c.Telemetry.ServiceName,
		ServiceVersion: version,
		CollectorURL:   c.Telemetry.Endpoint,
		Environment:    c.Telemetry.Environment,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}
