package configuration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kevensen/gollama-clippy/internal/llm"
	"github.com/kevensen/gollama-clippy/internal/logging"
	"github.com/kevensen/gollama-clippy/internal/mode"
)

// Environment variables that override the settings file
const (
	EnvProvider = "CLIPPY_PROVIDER"
	EnvModel    = "CLIPPY_MODEL"
)

// Config represents the application configuration
type Config struct {
	Provider            string          `json:"provider"` // openai, ollama or anthropic
	ChatModel           string          `json:"chatModel"`
	OpenAIURL           string          `json:"openAIURL"`
	OllamaURL           string          `json:"ollamaURL"`
	AnthropicURL        string          `json:"anthropicURL"`
	Temperature         float64         `json:"temperature"`
	MaxRetries          int             `json:"maxRetries"`          // Credential retries after the first attempt
	ScanIntervalSeconds int             `json:"scanIntervalSeconds"` // Watcher polling period
	APIKeyEnv           string          `json:"apiKeyEnv"`           // Environment variable consulted for the API key
	WorkspaceIncludes   []string        `json:"workspaceIncludes"`
	WorkspaceExcludes   []string        `json:"workspaceExcludes"`
	AssignmentPath      string          `json:"assignmentPath"`   // Explicit assignment file; detected in the workspace when empty
	DetectAssignment    bool            `json:"detectAssignment"` // Look for ASSIGNMENT.md in the workspace
	RAGEnabled          bool            `json:"ragEnabled"`
	EmbeddingModel      string          `json:"embeddingModel"`
	ChromaDBURL         string          `json:"chromaDBURL"`
	ChromaDBDistance    float64         `json:"chromaDBDistance"`
	MaxDocuments        int             `json:"maxDocuments"`
	SelectedCollections map[string]bool `json:"selectedCollections"`
	DefaultMode         string          `json:"defaultMode"`
	LogLevel            string          `json:"logLevel"`          // Log level: debug, info, warn, error
	EnableFileLogging   bool            `json:"enableFileLogging"` // Whether to log to file
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider:            llm.ProviderOpenAI,
		ChatModel:           llm.DefaultModel(llm.ProviderOpenAI),
		OpenAIURL:           "https://api.openai.com/v1/",
		OllamaURL:           "http://localhost:11434",
		AnthropicURL:        "https://api.anthropic.com/",
		Temperature:         0.7,
		MaxRetries:          2,
		ScanIntervalSeconds: 30,
		APIKeyEnv:           "OPENAI_API_KEY",
		WorkspaceIncludes:   []string{},
		WorkspaceExcludes:   []string{},
		DetectAssignment:    true,
		RAGEnabled:          false,
		EmbeddingModel:      "embeddinggemma:latest",
		ChromaDBURL:         "http://localhost:8000",
		ChromaDBDistance:    1.0, // Cosine distance range is 0-2
		MaxDocuments:        5,
		SelectedCollections: make(map[string]bool),
		DefaultMode:         mode.Tutor.String(),
		LogLevel:            "info",
		EnableFileLogging:   true,
	}
}

// dir returns the appropriate config directory based on OS
func dir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir = os.Getenv("APPDATA")
			if configDir == "" {
				return "", fmt.Errorf("LOCALAPPDATA or APPDATA environment variable not set")
			}
		}
	default: // Linux, macOS, and other Unix-like systems
		configDir = os.Getenv("XDG_DATA_HOME")
		if configDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get user home directory: %w", err)
			}
			configDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	return filepath.Join(configDir, logging.AppName, "settings"), nil
}

// Path returns the full path to the configuration file
func Path() (string, error) {
	configDir, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "settings.json"), nil
}

// Load reads the configuration from the settings file.
// If the file doesn't exist, it creates it with default configuration.
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFrom(configPath)
}

// LoadFrom reads the configuration from configPath, creating it with defaults when missing
func LoadFrom(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if saveErr := config.SaveTo(configPath); saveErr != nil {
			// The defaults are still usable when the directory is read-only
			return config, fmt.Errorf("failed to save default configuration: %w", saveErr)
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Fields absent from the file keep their defaults, so explicit zeros survive.
	// The model and key variable depend on the provider and are filled in afterwards.
	config := DefaultConfig()
	config.ChatModel = ""
	config.APIKeyEnv = ""
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaultsIfMissing(config)
	return config, nil
}

// applyDefaultsIfMissing fills fields left empty in older settings files
func applyDefaultsIfMissing(c *Config) {
	defaultConfig := DefaultConfig()

	if c.Provider == "" {
		c.Provider = defaultConfig.Provider
	}
	if c.ChatModel == "" {
		c.ChatModel = llm.DefaultModel(c.Provider)
	}
	if c.OpenAIURL == "" {
		c.OpenAIURL = defaultConfig.OpenAIURL
	}
	if c.OllamaURL == "" {
		c.OllamaURL = defaultConfig.OllamaURL
	}
	if c.AnthropicURL == "" {
		c.AnthropicURL = defaultConfig.AnthropicURL
	}
	if c.ScanIntervalSeconds <= 0 {
		c.ScanIntervalSeconds = defaultConfig.ScanIntervalSeconds
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultAPIKeyEnv(c.Provider)
	}
	if c.SelectedCollections == nil {
		c.SelectedCollections = make(map[string]bool)
	}
	if c.DefaultMode == "" {
		c.DefaultMode = defaultConfig.DefaultMode
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultConfig.LogLevel
	}
}

func defaultAPIKeyEnv(provider string) string {
	switch provider {
	case llm.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case llm.ProviderOllama:
		return "OLLAMA_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// SetProvider switches provider, resetting the model and key variable to that
// provider's defaults. Setting the current provider is a no-op.
func (c *Config) SetProvider(provider string) {
	if provider == "" || provider == c.Provider {
		return
	}
	c.Provider = provider
	c.ChatModel = llm.DefaultModel(provider)
	c.APIKeyEnv = defaultAPIKeyEnv(provider)
}

// ApplyEnv overrides the provider and model from the environment
func (c *Config) ApplyEnv() {
	c.SetProvider(os.Getenv(EnvProvider))
	if m := os.Getenv(EnvModel); m != "" {
		c.ChatModel = m
	}
}

// Save writes the configuration to the settings file
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return c.SaveTo(configPath)
}

// SaveTo writes the configuration to configPath
func (c *Config) SaveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Provider {
	case llm.ProviderOpenAI, llm.ProviderOllama, llm.ProviderAnthropic:
	default:
		return fmt.Errorf("provider must be one of openai, ollama or anthropic, got %q", c.Provider)
	}
	if c.ChatModel == "" {
		return fmt.Errorf("chatModel cannot be empty")
	}
	if c.BaseURL() == "" {
		return fmt.Errorf("base URL for provider %s cannot be empty", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries cannot be negative")
	}
	if c.ScanIntervalSeconds <= 0 {
		return fmt.Errorf("scanIntervalSeconds must be greater than 0")
	}
	if _, err := mode.Parse(c.DefaultMode); err != nil {
		return fmt.Errorf("defaultMode: %w", err)
	}
	// RAG embeds through Ollama and stores in ChromaDB
	if c.RAGEnabled {
		if c.EmbeddingModel == "" {
			return fmt.Errorf("embeddingModel cannot be empty when RAG is enabled")
		}
		if c.ChromaDBURL == "" {
			return fmt.Errorf("chromaDBURL cannot be empty when RAG is enabled")
		}
		if c.OllamaURL == "" {
			return fmt.Errorf("ollamaURL cannot be empty when RAG is enabled")
		}
		if c.MaxDocuments <= 0 {
			return fmt.Errorf("maxDocuments must be greater than 0 when RAG is enabled")
		}
	}
	if c.ChromaDBDistance < 0 || c.ChromaDBDistance > 2 {
		return fmt.Errorf("chromaDBDistance must be between 0 and 2 (cosine similarity range)")
	}
	return nil
}

// BaseURL returns the endpoint of the configured provider
func (c *Config) BaseURL() string {
	switch c.Provider {
	case llm.ProviderOllama:
		return c.OllamaURL
	case llm.ProviderAnthropic:
		return c.AnthropicURL
	default:
		return c.OpenAIURL
	}
}

// LLM returns the completion client configuration
func (c *Config) LLM() llm.Config {
	return llm.Config{
		Provider: c.Provider,
		Model:    c.ChatModel,
		BaseURL:  c.BaseURL(),
	}
}

// ScanInterval returns the watcher polling period
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

// Mode returns the configured starting mode, Tutor when unset or invalid
func (c *Config) Mode() mode.Mode {
	m, err := mode.Parse(c.DefaultMode)
	if err != nil {
		return mode.Tutor
	}
	return m
}

// GetLogLevel returns the log level for use with the logging package
func (c *Config) GetLogLevel() logging.LogLevel {
	return logging.ParseLevel(c.LogLevel)
}
