package recommend

import (
	"context"
	"fmt"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"datalens/internal/model"
)

// AnthropicOptions configure the Anthropic strategy.
type AnthropicOptions struct {
	APIKey string
	Model  string
	// Timeout bounds one messages call. Zero means 30s.
	Timeout time.Duration
}

// AnthropicStrategy asks an Anthropic model to produce a
// recommendation.
type AnthropicStrategy struct {
	client  *anthropic.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

// NewAnthropicStrategy builds the strategy. Key validity is not checked
// here; a bad key fails per call and the engine falls through.
func NewAnthropicStrategy(opts AnthropicOptions, logger *zap.Logger) *AnthropicStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &AnthropicStrategy{
		client:  anthropic.NewClient(opts.APIKey),
		model:   opts.Model,
		timeout: opts.Timeout,
		log:     logger.Named("anthropic"),
	}
}

// Name implements Strategy.
func (s *AnthropicStrategy) Name() string { return "anthropic" }

// Recommend implements Strategy.
func (s *AnthropicStrategy) Recommend(ctx context.Context, in Input) (model.Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := buildPrompt(in)
	start := time.Now()
	resp, err := s.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(s.model),
		MaxTokens: replyMaxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return model.Recommendation{}, fmt.Errorf("create messages: %w", err)
	}

	reply := ""
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			reply = *block.Text
			break
		}
	}
	if reply == "" {
		return model.Recommendation{}, fmt.Errorf("create messages: reply has no text block")
	}

	s.log.Debug("reply received",
		zap.String("model", s.model),
		zap.Duration("elapsed", time.Since(start)))
	return parseReply(reply)
}
