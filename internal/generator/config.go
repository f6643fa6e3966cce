// Package generator turns an assembled prompt into an answer using one of
// several chat-model backends. The backend is selected at runtime from
// configuration; every backend is driven through a compiled eino chain so
// globally registered callbacks (tracing) observe each call.
package generator

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Backend enumerates the supported chat-model providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini through the AI Studio API.
	BackendGemini Backend = "gemini"
)

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	APIKey string
	Model  string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// SharedTuning holds generation parameters common to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per answer.
	MaxTokens int
	// Temperature controls randomness (0.0-1.0).
	Temperature float32
	// MaxContextTokens is the prompt size above which a warning is logged.
	MaxContextTokens int
}

// Config selects a backend and carries the settings for every backend.
// Only the block matching Backend is consulted.
type Config struct {
	Backend     Backend
	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ark         ProviderArk
	Gemini      ProviderGemini
	Tuning      SharedTuning
}

// Validate reports the first missing setting for the selected backend,
// naming the environment variable that supplies it.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Host == "" {
			return errors.New("generator: OLLAMA_HOST is required for ollama backend")
		}
		if c.Ollama.Model == "" {
			return errors.New("generator: OLLAMA_MODEL is required for ollama backend")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("generator: OPENAI_API_KEY is required for openai backend")
		}
		if c.OpenAI.Model == "" {
			return errors.New("generator: OPENAI_MODEL is required for openai backend")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return errors.New("generator: AZURE_OPENAI_API_KEY is required for azure backend")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return errors.New("generator: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return errors.New("generator: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return errors.New("generator: ARK_API_KEY is required for ark backend")
		}
		if c.Ark.Model == "" {
			return errors.New("generator: ARK_MODEL is required for ark backend")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return errors.New("generator: GOOGLE_API_KEY is required for gemini backend")
		}
		if c.Gemini.Model == "" {
			return errors.New("generator: GEMINI_MODEL is required for gemini backend")
		}
	default:
		return fmt.Errorf("generator: unknown backend %q (valid: ollama, openai, azure, ark, gemini)", c.Backend)
	}
	return nil
}

// ConfigFromEnv reads a Config from environment variables.
//
//	MODEL_PROVIDER = ollama | openai | azure | ark | gemini (default: ollama)
//
//	Ollama: OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	OpenAI: OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o)
//	Azure:  AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	        AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Ark:    ARK_API_KEY, ARK_MODEL, ARK_BASE_URL
//	Gemini: GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-2.5-flash)
//
//	Shared: MODEL_MAX_TOKENS (default: 1024), MODEL_TEMPERATURE (default: 0.2),
//	        MODEL_MAX_CONTEXT_TOKENS (default: 6000)
func ConfigFromEnv() *Config {
	return &Config{
		Backend: Backend(strings.ToLower(getEnvOrDefault("MODEL_PROVIDER", string(BackendOllama)))),
		Ollama: ProviderOllama{
			Host:  getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			Model: getEnvOrDefault("OLLAMA_MODEL", "llama3"),
		},
		OpenAI: ProviderOpenAI{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Ark: ProviderArk{
			APIKey:  os.Getenv("ARK_API_KEY"),
			Model:   os.Getenv("ARK_MODEL"),
			BaseURL: os.Getenv("ARK_BASE_URL"),
		},
		Gemini: ProviderGemini{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Tuning: SharedTuning{
			MaxTokens:        getEnvInt("MODEL_MAX_TOKENS", 1024),
			Temperature:      getEnvFloat32("MODEL_TEMPERATURE", 0.2),
			MaxContextTokens: getEnvInt("MODEL_MAX_CONTEXT_TOKENS", 6000),
		},
	}
}

// ModelName returns the model identifier of the selected backend.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendArk:
		return c.Ark.Model
	case BackendGemini:
		return c.Gemini.Model
	default:
		return ""
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
