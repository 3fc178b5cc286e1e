package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "llama-3.1-8b-instant"

// OpenAIAdapter implements ports.CompletionService against any
// OpenAI-compatible chat completions endpoint (OpenAI, Groq, vLLM).
type OpenAIAdapter struct {
	client      openai.Client
	model       string
	temperature float64
	logger      *zap.Logger
}

// NewOpenAIAdapter creates a chat completion adapter. An empty baseURL uses
// the OpenAI default. Retries are disabled; the caller owns the deadline.
func NewOpenAIAdapter(baseURL, apiKey, model string, temperature float64, logger *zap.Logger) *OpenAIAdapter {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// Complete sends prompt as a single user message.
func (a *OpenAIAdapter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(a.model),
		Temperature: openai.Float(a.temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			a.logger.Warn("chat completion rejected", zap.Int("status", apiErr.StatusCode), zap.String("model", a.model))
		}
		return "", fmt.Errorf("calling chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completions returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
