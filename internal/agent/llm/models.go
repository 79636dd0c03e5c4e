package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/emori-agent/server/internal/agent/model"
	logx "github.com/emori-agent/server/pkg/logger"
)

// Client is the inference surface the workflow steps depend on. Structured
// targets the schema-constrained model, Respond the answer model.
type Client interface {
	Structured(ctx context.Context, prompt string) (string, error)
	Respond(ctx context.Context, prompt string) (string, error)
}

// Config holds everything needed to build both chat models.
type Config struct {
	APIKey     string
	BaseURL    string
	Structured model.StructuredModelConfig
	Response   model.ResponseModelConfig
}

// Models holds the two Gemini chat models: a cheap low-temperature one for
// structured calls and a warmer one for answer generation.
type Models struct {
	structured          *gemini.ChatModel
	response            *gemini.ChatModel
	structuredModelName string
	responseModelName   string
}

// NewModels creates both chat models on a shared Gemini client.
func NewModels(ctx context.Context, config Config) (*Models, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	structured, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Structured.Model,
		Temperature: &config.Structured.Temperature,
		MaxTokens:   &config.Structured.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating structured model")
		return nil, fmt.Errorf("error creating structured model: %w", err)
	}

	response, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Response.Model,
		Temperature: &config.Response.Temperature,
		MaxTokens:   &config.Response.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &Models{
		structured:          structured,
		response:            response,
		structuredModelName: config.Structured.Model,
		responseModelName:   config.Response.Model,
	}, nil
}

// Structured runs a single-turn completion against the structured model.
func (m *Models) Structured(ctx context.Context, prompt string) (string, error) {
	return m.generate(ctx, m.structured, m.structuredModelName, prompt)
}

// Respond runs a single-turn completion against the response model.
func (m *Models) Respond(ctx context.Context, prompt string) (string, error) {
	return m.generate(ctx, m.response, m.responseModelName, prompt)
}

func (m *Models) generate(ctx context.Context, cm *gemini.ChatModel, modelName, prompt string) (string, error) {
	out, err := cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", modelName, err)
	}
	if out == nil {
		return "", fmt.Errorf("generate with %s: empty response", modelName)
	}
	logUsageCost(modelName, out)
	return out.Content, nil
}
