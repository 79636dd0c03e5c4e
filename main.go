package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/emori-agent/server/internal/agent/graph"
	"github.com/emori-agent/server/internal/agent/model"
	"github.com/emori-agent/server/internal/agent/repo"
	"github.com/emori-agent/server/internal/agent/search"
	"github.com/emori-agent/server/internal/core"
	logx "github.com/emori-agent/server/pkg/logger"
	pkgredis "github.com/emori-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the agent example,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis         pkgredis.Config
	ContextSearch search.Config `envconfig:"CONTEXT_SEARCH"`
	RiskSearch    search.Config `envconfig:"RISK_SEARCH"`

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Structured   model.StructuredModelConfig
	Response     model.ResponseModelConfig
	Retrieval    model.RetrievalConfig
	Evaluator    model.EvaluatorConfig
	Conversation model.ConversationConfig

	ScoringProfile string `envconfig:"SCORING_PROFILE" default:"conservative"`
	Environment    string `envconfig:"APP_ENV" default:"development"`
}

func main() {
	fmt.Println("Testing Emori support workflow...")
	ctx := context.Background()
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	fmt.Println("Connected to Redis successfully")

	// ====================================================
	// Build workflow config entirely from env
	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}

	cfg := graph.Config{
		APIKey:          envCfg.APIKey,
		BaseURL:         envCfg.BaseURL,
		StructuredModel: envCfg.Structured,
		ResponseModel:   envCfg.Response,
		Retrieval:       envCfg.Retrieval,
		Evaluator:       envCfg.Evaluator,
		Conversation:    envCfg.Conversation,
		ScoringProfile:  envCfg.ScoringProfile,
		UserStore:       repo.NewRedisUserStore(rdb, ttl),
		ContextSearcher: search.NewHTTPSearcher(envCfg.ContextSearch),
		RiskSearcher:    search.NewHTTPSearcher(envCfg.RiskSearch),
	}

	runner, err := graph.BuildEngine(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build workflow engine: %v", err)
	}

	testQueries := []struct {
		description string
		query       string
	}{
		{
			description: "Initial supportive check-in",
			query:       "I've been feeling really overwhelmed at work lately and can't seem to relax",
		},
		{
			description: "Follow-up with sleep concerns",
			query:       "I'm also barely sleeping, my mind races every night. What can I do?",
		},
		{
			description: "Asking for coping strategies",
			query:       "Thanks. Are there any breathing exercises that actually help with anxiety?",
		},
	}

	userID := "test-user-123451"

	for i, test := range testQueries {
		fmt.Printf("\nTest %d: %s\n", i+1, test.description)
		fmt.Printf("Query: \"%s\"\n", test.query)
		fmt.Println("Processing...")

		result, err := runner.Invoke(ctx, graph.QueryInput{
			UserID: userID,
			Query:  test.query,
		})
		if err != nil {
			log.Fatalf("Failed to invoke workflow for test %d: %v", i+1, err)
		}

		fmt.Printf("Response %d: %s\n", i+1, result.Answer)
		if result.WarningText != "" {
			fmt.Printf("Warning: %s\n", result.WarningText)
		}
		fmt.Printf("Aggregate risk: %.2f/100\n", result.AggregateRisk)
		fmt.Println("─────────────────────────────────────────────")

		// add slight delay between tests for readability
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println("All workflow tests completed successfully!")
}
