package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"datalens/internal/model"
)

// OpenAIOptions configure the OpenAI-compatible strategy.
type OpenAIOptions struct {
	// Endpoint is the base URL of the chat-completion service. Empty
	// means api.openai.com; any compatible server works (DeepSeek,
	// local gateways). A trailing slash is tolerated.
	Endpoint string
	APIKey   string
	Model    string
	// Timeout bounds one completion call. Zero means 30s.
	Timeout time.Duration
}

// OpenAIStrategy asks an OpenAI-compatible chat model to produce a
// recommendation.
type OpenAIStrategy struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

// NewOpenAIStrategy builds the strategy. It does not validate the
// endpoint or key; a misconfigured strategy fails per call and the
// engine falls through.
func NewOpenAIStrategy(opts OpenAIOptions, logger *zap.Logger) *OpenAIStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.Endpoint != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.Endpoint, "/")
	}
	return &OpenAIStrategy{
		client:  openai.NewClientWithConfig(cfg),
		model:   opts.Model,
		timeout: opts.Timeout,
		log:     logger.Named("openai"),
	}
}

// Name implements Strategy.
func (s *OpenAIStrategy) Name() string { return "openai" }

// Recommend implements Strategy.
func (s *OpenAIStrategy) Recommend(ctx context.Context, in Input) (model.Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := buildPrompt(in)
	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		return model.Recommendation{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Recommendation{}, fmt.Errorf("chat completion: reply has no choices")
	}

	s.log.Debug("completion received",
		zap.String("model", s.model),
		zap.Duration("elapsed", time.Since(start)))
	return parseReply(resp.Choices[0].Message.Content)
}
