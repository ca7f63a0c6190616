package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/decoynet/lure/pkg/httputil"
)

// Provider defines the backend LLM service type.
type Provider string

const (
	ProviderHuggingFace Provider = "huggingface" // HF inference router (default)
	ProviderOpenRouter  Provider = "openrouter"
	ProviderGroq        Provider = "groq"
	ProviderOllama      Provider = "ollama" // Local, no API key
)

// Sampling defaults tuned for in-character roleplay rather than
// deterministic classification.
const (
	DefaultTemperature = 0.8
	DefaultTopP        = 0.9
	DefaultMaxTokens   = 120
	DefaultTimeout     = 8 * time.Second
)

// LLMConfig holds the configuration for the completion client.
type LLMConfig struct {
	Provider    Provider
	APIKey      string // Optional for Ollama
	Model       string
	BaseURL     string // Optional override
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
	MaxInFlight int // Concurrent upstream calls; 0 means 16
}

// LLMClient calls an external text-generation provider. It implements
// Completer; every failure mode (timeout, non-200, malformed body) surfaces
// as an error for the caller's fallback path.
type LLMClient struct {
	client      *http.Client
	provider    Provider
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	sem         *httputil.Semaphore
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Hugging Face inference payloads use a different shape than the
// OpenAI-style chat endpoints.
type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	MaxNewTokens   int     `json:"max_new_tokens"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfResponse struct {
	GeneratedText string `json:"generated_text"`
}

// NewLLMClient creates a completion client for the configured provider.
func NewLLMClient(cfg LLMConfig) *LLMClient {
	if cfg.Model == "" {
		if cfg.Provider == ProviderOllama {
			cfg.Model = "qwen2.5:7b"
		} else {
			cfg.Model = "meta-llama/Llama-3.2-3B-Instruct"
		}
	}

	var baseURL string
	switch cfg.Provider {
	case ProviderOllama:
		baseURL = "http://localhost:11434/v1"
	case ProviderGroq:
		baseURL = "https://api.groq.com/openai/v1"
	case ProviderOpenRouter:
		baseURL = "https://openrouter.ai/api/v1"
	case ProviderHuggingFace:
		fallthrough
	default:
		baseURL = "https://router.huggingface.co/models/" + cfg.Model
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.TopP == 0 {
		cfg.TopP = DefaultTopP
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxInFlight == 0 {
		cfg.MaxInFlight = 16
	}

	return &LLMClient{
		client:      httputil.NewClient(cfg.Timeout),
		provider:    cfg.Provider,
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
		sem:         httputil.NewSemaphore(cfg.MaxInFlight),
	}
}

// Stats reports the in-flight bound's current state for health reporting.
func (c *LLMClient) Stats() httputil.SemaphoreStats {
	return c.sem.Stats()
}

// Complete implements Completer.
func (c *LLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.provider != ProviderOllama && c.apiKey == "" {
		return "", fmt.Errorf("API key not configured for provider %s", c.provider)
	}

	// Bound concurrent upstream calls so a burst of sessions cannot pile
	// goroutines onto a slow provider.
	if err := c.sem.Acquire(ctx); err != nil {
		return "", err
	}
	defer c.sem.Release()

	if c.provider == ProviderHuggingFace {
		return c.completeHF(ctx, prompt)
	}
	return c.completeChat(ctx, prompt)
}

func (c *LLMClient) completeChat(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	body, err := c.post(ctx, endpoint, reqBody)
	if err != nil {
		return "", err
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal error: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (c *LLMClient) completeHF(ctx context.Context, prompt string) (string, error) {
	reqBody := hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			Temperature:    c.temperature,
			TopP:           c.topP,
			MaxNewTokens:   c.maxTokens,
			ReturnFullText: false,
		},
	}

	body, err := c.post(ctx, c.baseURL, reqBody)
	if err != nil {
		return "", err
	}

	// HF usually returns a list of generations; a bare object shows up on
	// some model backends.
	var list []hfResponse
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0].GeneratedText), nil
	}
	var single hfResponse
	if err := json.Unmarshal(body, &single); err == nil && single.GeneratedText != "" {
		return strings.TrimSpace(single.GeneratedText), nil
	}
	return "", fmt.Errorf("unexpected response format: %s", truncate(string(body), 200))
}

func (c *LLMClient) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httputil.DrainAndClose(resp.Body)

	body, err := httputil.ReadResponseBody(resp.Body, 2*1024*1024)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider error %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Completer = (*LLMClient)(nil)
