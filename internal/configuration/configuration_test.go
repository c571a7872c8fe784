package configuration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kevensen/gollama-clippy/internal/llm"
	"github.com/kevensen/gollama-clippy/internal/logging"
	"github.com/kevensen/gollama-clippy/internal/mode"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name: "valid ollama config with RAG",
			modify: func(c *Config) {
				c.Provider = llm.ProviderOllama
				c.RAGEnabled = true
			},
		},
		{
			name:        "unknown provider",
			modify:      func(c *Config) { c.Provider = "bard" },
			expectError: true,
			errorMsg:    "provider must be one of",
		},
		{
			name:        "empty chat model",
			modify:      func(c *Config) { c.ChatModel = "" },
			expectError: true,
			errorMsg:    "chatModel cannot be empty",
		},
		{
			name:        "empty base URL for provider",
			modify:      func(c *Config) { c.Provider = llm.ProviderAnthropic; c.AnthropicURL = "" },
			expectError: true,
			errorMsg:    "base URL for provider anthropic cannot be empty",
		},
		{
			name:        "temperature too high",
			modify:      func(c *Config) { c.Temperature = 2.5 },
			expectError: true,
			errorMsg:    "temperature must be between 0 and 2",
		},
		{
			name:        "negative retries",
			modify:      func(c *Config) { c.MaxRetries = -1 },
			expectError: true,
			errorMsg:    "maxRetries cannot be negative",
		},
		{
			name:        "zero scan interval",
			modify:      func(c *Config) { c.ScanIntervalSeconds = 0 },
			expectError: true,
			errorMsg:    "scanIntervalSeconds must be greater than 0",
		},
		{
			name:        "unknown default mode",
			modify:      func(c *Config) { c.DefaultMode = "pirate" },
			expectError: true,
			errorMsg:    "defaultMode",
		},
		{
			name:        "RAG without embedding model",
			modify:      func(c *Config) { c.RAGEnabled = true; c.EmbeddingModel = "" },
			expectError: true,
			errorMsg:    "embeddingModel cannot be empty when RAG is enabled",
		},
		{
			name:        "RAG without documents",
			modify:      func(c *Config) { c.RAGEnabled = true; c.MaxDocuments = 0 },
			expectError: true,
			errorMsg:    "maxDocuments must be greater than 0 when RAG is enabled",
		},
		{
			name:   "RAG disabled tolerates empty ChromaDB URL",
			modify: func(c *Config) { c.ChromaDBURL = ""; c.MaxDocuments = 0 },
		},
		{
			name:        "ChromaDB distance too high",
			modify:      func(c *Config) { c.ChromaDBDistance = 2.5 },
			expectError: true,
			errorMsg:    "chromaDBDistance must be between 0 and 2 (cosine similarity range)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error containing %q", tt.errorMsg)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}

	tests := []struct {
		name     string
		actual   any
		expected any
	}{
		{"Provider", config.Provider, "openai"},
		{"ChatModel", config.ChatModel, "gpt-4"},
		{"Temperature", config.Temperature, 0.7},
		{"MaxRetries", config.MaxRetries, 2},
		{"DetectAssignment", config.DetectAssignment, true},
		{"ScanIntervalSeconds", config.ScanIntervalSeconds, 30},
		{"APIKeyEnv", config.APIKeyEnv, "OPENAI_API_KEY"},
		{"RAGEnabled", config.RAGEnabled, false},
		{"DefaultMode", config.DefaultMode, "tutor"},
		{"MaxDocuments", config.MaxDocuments, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("Expected %s to be %v, got %v", tt.name, tt.expected, tt.actual)
			}
		})
	}

	if config.SelectedCollections == nil {
		t.Error("SelectedCollections should be initialized")
	}
}

func TestLoadFrom_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings", "settings.json")

	config, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if config.Provider != llm.ProviderOpenAI {
		t.Errorf("Provider = %q", config.Provider)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected default settings file to be written: %v", err)
	}
}

func TestLoadFrom_AppliesMissingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"provider":"anthropic","logLevel":"debug"}`), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if config.ChatModel != llm.DefaultModel(llm.ProviderAnthropic) {
		t.Errorf("ChatModel = %q", config.ChatModel)
	}
	if config.APIKeyEnv != "ANTHROPIC_API_KEY" {
		t.Errorf("APIKeyEnv = %q", config.APIKeyEnv)
	}
	if config.Temperature != 0.7 || config.ScanIntervalSeconds != 30 {
		t.Errorf("Temperature = %v, ScanIntervalSeconds = %d", config.Temperature, config.ScanIntervalSeconds)
	}
	if config.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", config.MaxRetries)
	}
	if !config.EnableFileLogging {
		t.Error("file logging should default on when absent")
	}
	if config.SelectedCollections == nil {
		t.Error("SelectedCollections should be initialized")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("loaded config should be valid: %v", err)
	}
}

func TestLoadFrom_Fields(t *testing.T) {
	tests := []struct {
		name            string
		json            string
		wantMaxRetries  int
		wantTemperature float64
		wantFileLogging bool
	}{
		{
			name:            "absent fields take defaults",
			json:            `{"provider":"openai","chatModel":"gpt-4"}`,
			wantMaxRetries:  2,
			wantTemperature: 0.7,
			wantFileLogging: true,
		},
		{
			name:            "explicit zeros are kept",
			json:            `{"provider":"openai","temperature":0,"maxRetries":0,"enableFileLogging":false}`,
			wantMaxRetries:  0,
			wantTemperature: 0,
			wantFileLogging: false,
		},
		{
			name:            "explicit values",
			json:            `{"temperature":1.2,"maxRetries":5}`,
			wantMaxRetries:  5,
			wantTemperature: 1.2,
			wantFileLogging: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			if err := os.WriteFile(path, []byte(tt.json), 0644); err != nil {
				t.Fatal(err)
			}

			config, err := LoadFrom(path)
			if err != nil {
				t.Fatalf("LoadFrom: %v", err)
			}
			if config.MaxRetries != tt.wantMaxRetries {
				t.Errorf("MaxRetries = %d, want %d", config.MaxRetries, tt.wantMaxRetries)
			}
			if config.Temperature != tt.wantTemperature {
				t.Errorf("Temperature = %v, want %v", config.Temperature, tt.wantTemperature)
			}
			if config.EnableFileLogging != tt.wantFileLogging {
				t.Errorf("EnableFileLogging = %v, want %v", config.EnableFileLogging, tt.wantFileLogging)
			}
			if err := config.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestLoadFrom_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	config := DefaultConfig()
	config.Provider = llm.ProviderOllama
	config.ChatModel = "qwen2.5-coder:7b"
	config.WorkspaceExcludes = []string{"**/testdata"}
	if err := config.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.ChatModel != "qwen2.5-coder:7b" || loaded.Provider != llm.ProviderOllama {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.WorkspaceExcludes) != 1 || loaded.WorkspaceExcludes[0] != "**/testdata" {
		t.Errorf("WorkspaceExcludes = %v", loaded.WorkspaceExcludes)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Run("provider switch resets model and key variable", func(t *testing.T) {
		t.Setenv(EnvProvider, llm.ProviderAnthropic)
		t.Setenv(EnvModel, "")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Provider != llm.ProviderAnthropic {
			t.Errorf("Provider = %q", config.Provider)
		}
		if config.ChatModel != llm.DefaultModel(llm.ProviderAnthropic) {
			t.Errorf("ChatModel = %q", config.ChatModel)
		}
		if config.APIKeyEnv != "ANTHROPIC_API_KEY" {
			t.Errorf("APIKeyEnv = %q", config.APIKeyEnv)
		}
	})

	t.Run("model override", func(t *testing.T) {
		t.Setenv(EnvProvider, "")
		t.Setenv(EnvModel, "gpt-4o")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Provider != llm.ProviderOpenAI || config.ChatModel != "gpt-4o" {
			t.Errorf("Provider = %q, ChatModel = %q", config.Provider, config.ChatModel)
		}
	})
}

func TestConfig_Accessors(t *testing.T) {
	config := DefaultConfig()
	config.Provider = llm.ProviderOllama
	config.ScanIntervalSeconds = 5
	config.DefaultMode = "debug"
	config.LogLevel = "warn"

	if got := config.LLM(); got.BaseURL != config.OllamaURL || got.Model != config.ChatModel || got.Provider != llm.ProviderOllama {
		t.Errorf("LLM() = %+v", got)
	}
	if config.ScanInterval() != 5*time.Second {
		t.Errorf("ScanInterval() = %v", config.ScanInterval())
	}
	if config.Mode() != mode.Debugger {
		t.Errorf("Mode() = %s", config.Mode())
	}
	if config.GetLogLevel() != logging.LevelWarn {
		t.Errorf("GetLogLevel() = %v", config.GetLogLevel())
	}

	config.DefaultMode = "nonsense"
	if config.Mode() != mode.Tutor {
		t.Errorf("invalid mode should fall back to tutor, got %s", config.Mode())
	}
}

func TestConfig_SetProvider(t *testing.T) {
	config := DefaultConfig()
	config.ChatModel = "gpt-4o"

	config.SetProvider(llm.ProviderOpenAI)
	if config.ChatModel != "gpt-4o" {
		t.Error("setting the current provider should keep the model")
	}

	config.SetProvider(llm.ProviderOllama)
	if config.ChatModel != llm.DefaultModel(llm.ProviderOllama) || config.APIKeyEnv != "OLLAMA_API_KEY" {
		t.Errorf("ChatModel = %q, APIKeyEnv = %q", config.ChatModel, config.APIKeyEnv)
	}
}
