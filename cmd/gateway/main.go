package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"

	"github.com/decoynet/lure/pkg/agent"
	"github.com/decoynet/lure/pkg/callback"
	"github.com/decoynet/lure/pkg/config"
	"github.com/decoynet/lure/pkg/detect"
	"github.com/decoynet/lure/pkg/engine"
	"github.com/decoynet/lure/pkg/persona"
	"github.com/decoynet/lure/pkg/session"
)

const Version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch cmd := os.Args[1]; cmd {
	case "serve":
		port := ""
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		runHTTPServer(port)
	case "classify":
		if len(os.Args) < 3 {
			fmt.Println("Usage: lure classify <text>")
			os.Exit(1)
		}
		runCLIClassify(strings.Join(os.Args[2:], " "))
	case "version":
		fmt.Printf("Lure v%s\n", Version)
		fmt.Println("Conversational Scam Honeypot Gateway")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Lure v%s - Conversational Scam Honeypot Gateway\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  lure serve [port]      Start HTTP server (default: 8000)")
	fmt.Println("  lure classify <text>   Classify text for scam intent")
	fmt.Println("  lure version           Show version")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  LURE_API_KEY            API key required on /honeypot")
	fmt.Println("  LURE_CALLBACK_URL       Endpoint receiving final session reports")
	fmt.Println("  LURE_REDIS_URL          Redis URL for session persistence (optional)")
	fmt.Println("  LURE_LLM_PROVIDER       Provider: huggingface, openrouter, groq, ollama")
	fmt.Println("  LURE_LLM_API_KEY        API key for the reply provider")
	fmt.Println("  LURE_SESSION_TTL_SECONDS  Idle session eviction window (default: 3600)")
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

func runHTTPServer(port string) {
	cfg := config.NewDefaultConfig()
	cfg.MustValidate()
	if port == "" {
		port = cfg.Port
	}

	if cfg.PersonaFile != "" {
		if err := persona.LoadOverrides(cfg.PersonaFile); err != nil {
			log.Fatalf("[STARTUP] FATAL: persona overrides: %v", err)
		}
		log.Printf("✓ Persona overrides loaded from %s", cfg.PersonaFile)
	}

	store := newStore(cfg)
	defer store.Close()

	classifier := newClassifier(cfg)

	llm := agent.NewLLMClient(agent.LLMConfig{
		Provider:    agent.Provider(cfg.LLMProvider),
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		BaseURL:     cfg.LLMBaseURL,
		Temperature: cfg.LLMTemperature,
		TopP:        cfg.LLMTopP,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
	})
	producer := agent.NewConversationAgent(llm)
	log.Printf("✓ Reply producer enabled (provider: %s)", cfg.LLMProvider)

	dispatcher := callback.NewDispatcher(cfg.CallbackURL, cfg.CallbackTimeout)
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 5*time.Second)
	if err := dispatcher.Probe(probeCtx); err != nil {
		log.Printf("○ Callback endpoint not reachable at startup (deliveries will retry): %v", err)
	} else {
		log.Printf("✓ Callback endpoint reachable: %s", cfg.CallbackURL)
	}
	cancelProbe()

	eng := engine.New(store, classifier, producer, dispatcher)

	app := fiber.New(fiber.Config{
		AppName: "Lure Honeypot Gateway",
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"version":   Version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"producer":  llm.Stats(),
		})
	})

	app.Post("/honeypot", func(c fiber.Ctx) error {
		if cfg.APIKey != "" && c.Get("X-API-Key") != cfg.APIKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}

		var req engine.Request
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		resp, err := eng.HandleMessage(c.Context(), req)
		if err != nil {
			if errors.Is(err, engine.ErrInvalidRequest) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			// Internal detail stays out of the response.
			log.Printf("[ERROR] honeypot request failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}
		return c.JSON(resp)
	})

	log.Printf("Lure honeypot gateway starting on :%s", port)
	log.Printf("Endpoints:")
	log.Printf("  GET  /health    - Health check")
	log.Printf("  POST /honeypot  - Honeypot message exchange")

	if err := app.Listen(":" + port); err != nil {
		log.Fatal(err)
	}
}

// newStore picks Redis-backed persistence when configured, in-memory
// otherwise. The engine works identically against either.
func newStore(cfg *config.Config) session.Store {
	if cfg.RedisURL == "" {
		log.Printf("○ Redis persistence disabled (in-memory sessions, TTL %s)", cfg.SessionTTL)
		return session.NewMemoryStore(session.WithTTL(cfg.SessionTTL))
	}

	store, err := session.NewRedisStore(cfg.RedisURL, session.WithRedisTTL(cfg.SessionTTL))
	if err != nil {
		log.Fatalf("[STARTUP] FATAL: redis store: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Fatalf("[STARTUP] FATAL: redis unreachable: %v", err)
	}
	log.Printf("✓ Redis persistence enabled (TTL %s)", cfg.SessionTTL)
	return store
}

// newClassifier wires the optional semantic layer when enabled; the regex
// registry is always available.
func newClassifier(cfg *config.Config) *detect.Classifier {
	if !cfg.EnableSemantics {
		log.Println("○ Semantic detection disabled")
		return detect.NewClassifier()
	}

	matcher, err := detect.NewSemanticMatcher(cfg.EmbedModel, cfg.OllamaURL)
	if err != nil {
		log.Printf("○ Semantic detection disabled (init failed: %v)", err)
		return detect.NewClassifier()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := matcher.LoadSeeds(ctx); err != nil {
		log.Printf("○ Semantic detection disabled (seed load failed: %v)", err)
		return detect.NewClassifier()
	}
	log.Println("✓ Semantic detection enabled (chromem-go + Ollama embeddings)")
	return detect.NewClassifier(detect.WithSemanticMatcher(matcher))
}

// ============================================================================
// CLI Mode
// ============================================================================

func runCLIClassify(text string) {
	classifier := detect.NewClassifier()
	det := classifier.Classify(context.Background(), text)

	msg, err := session.NewMessage(string(session.SenderScammer), text, time.Now().UnixMilli())
	if err != nil {
		log.Fatal(err)
	}
	intel := detect.Extract([]session.Message{msg})

	out, _ := json.MarshalIndent(struct {
		Detection    detect.Detection     `json:"detection"`
		Intelligence session.Intelligence `json:"intelligence"`
	}{det, intel}, "", "  ")
	fmt.Println(string(out))
}
