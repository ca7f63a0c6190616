// Package config holds the environment-sourced settings for the honeypot
// gateway. Everything can be set via environment variables; defaults are
// chosen so a local instance starts with nothing but a provider key.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds global settings for the honeypot gateway.
type Config struct {
	// === Transport ===
	APIKey string // X-API-Key expected on /honeypot (required in production)
	Port   string // HTTP listen port

	// === Callback ===
	CallbackURL     string // Endpoint receiving final session reports
	CallbackTimeout time.Duration

	// === Session store ===
	SessionTTL time.Duration // Idle-session eviction window (default: 1 hour)
	RedisURL   string        // When set, sessions persist in Redis

	// === Reply producer ===
	LLMProvider    string // huggingface, openrouter, groq, ollama
	LLMAPIKey      string
	LLMModel       string
	LLMBaseURL     string // Custom base URL for self-hosted providers
	LLMTimeout     time.Duration
	LLMTemperature float64
	LLMTopP        float64
	LLMMaxTokens   int

	// === Optional detection layers ===
	EnableSemantics bool   // Embedding-similarity layer (requires Ollama)
	EmbedModel      string // Ollama embedding model name
	OllamaURL       string // Ollama API base for embeddings

	// === Persona overrides ===
	PersonaFile string // Optional YAML overriding persona profiles
}

// NewDefaultConfig creates a Config from the environment with sensible
// defaults.
func NewDefaultConfig() *Config {
	return &Config{
		APIKey: GetEnv("LURE_API_KEY", ""),
		Port:   GetEnv("LURE_PORT", "8000"),

		CallbackURL:     GetEnv("LURE_CALLBACK_URL", "https://guvi-hackathon.co/api/callback"),
		CallbackTimeout: time.Duration(GetEnvInt("LURE_CALLBACK_TIMEOUT_MS", 10000)) * time.Millisecond,

		SessionTTL: time.Duration(GetEnvInt("LURE_SESSION_TTL_SECONDS", 3600)) * time.Second,
		RedisURL:   GetEnv("LURE_REDIS_URL", ""),

		LLMProvider:    detectLLMProvider(),
		LLMAPIKey:      GetEnv("LURE_LLM_API_KEY", GetEnv("HUGGINGFACE_API_KEY", os.Getenv("GROQ_API_KEY"))),
		LLMModel:       GetEnv("LURE_LLM_MODEL", ""),
		LLMBaseURL:     GetEnv("LURE_LLM_BASE_URL", ""),
		LLMTimeout:     time.Duration(GetEnvInt("LURE_LLM_TIMEOUT_MS", 8000)) * time.Millisecond,
		LLMTemperature: GetEnvFloat("LURE_LLM_TEMPERATURE", 0.8),
		LLMTopP:        GetEnvFloat("LURE_LLM_TOP_P", 0.9),
		LLMMaxTokens:   GetEnvInt("LURE_LLM_MAX_TOKENS", 120),

		EnableSemantics: GetEnvBool("LURE_ENABLE_SEMANTICS", false),
		EmbedModel:      GetEnv("LURE_EMBED_MODEL", "nomic-embed-text"),
		OllamaURL:       GetEnv("LURE_OLLAMA_URL", ""),

		PersonaFile: GetEnv("LURE_PERSONA_FILE", ""),
	}
}

func detectLLMProvider() string {
	if p := os.Getenv("LURE_LLM_PROVIDER"); p != "" {
		return p
	}
	// Auto-detect based on available keys
	if os.Getenv("HUGGINGFACE_API_KEY") != "" {
		return "huggingface"
	}
	if os.Getenv("GROQ_API_KEY") != "" {
		return "groq"
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" {
		return "openrouter"
	}
	// Default to Ollama (local) if no cloud keys found
	return "ollama"
}

// RequiredSecret defines a required environment variable for startup
// validation.
type RequiredSecret struct {
	Name        string // Environment variable name
	Description string // Human-readable description
	Production  bool   // Required in production only (false = required always)
}

// CriticalSecrets returns the secrets required for the gateway to operate.
func CriticalSecrets() []RequiredSecret {
	return []RequiredSecret{
		{Name: "LURE_API_KEY", Description: "API key authenticating /honeypot callers", Production: true},
		{Name: "LURE_CALLBACK_URL", Description: "Endpoint receiving final session reports", Production: true},
	}
}

// Validate checks that all required configuration is present. In production
// mode missing critical secrets are an error; in development they log
// warnings so local testing stays frictionless.
func (c *Config) Validate() error {
	env := strings.ToLower(os.Getenv("LURE_ENV"))
	isProduction := env == "production" || env == "prod"

	var missing []string
	for _, secret := range CriticalSecrets() {
		if os.Getenv(secret.Name) != "" {
			continue
		}
		if secret.Production && !isProduction {
			log.Printf("[STARTUP] Warning: %s not set (%s) - all requests will be accepted",
				secret.Name, secret.Description)
			continue
		}
		missing = append(missing, secret.Name+" ("+secret.Description+")")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required secrets: %s", strings.Join(missing, ", "))
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %v", c.SessionTTL)
	}
	return nil
}

// MustValidate calls Validate and fatally exits if validation fails.
// Call this at startup before starting the server.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: Configuration validation failed: %v", err)
	}
	log.Println("[STARTUP] Configuration validated successfully")
}

// Helper functions for environment variable parsing.
// Exported for use by other packages.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
