package openai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/papershelf/internal/domain"
	"github.com/kailas-cloud/papershelf/internal/metrics"
)

// Completer generates text over the /chat/completions endpoint.
type Completer struct {
	client  *openai.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCompleter creates a chat completion backend. When requestsPerSecond is
// positive, calls wait on a token bucket before hitting the API.
func NewCompleter(cfg *Config, requestsPerSecond float64) *Completer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Completer{client: newClient(cfg), logger: logger}
	if requestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return c
}

// Complete sends prompt as a single user message and returns the trimmed answer.
// An empty answer is an error.
func (c *Completer) Complete(
	ctx context.Context, prompt, model string, temperature float32, maxTokens int,
) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: wait for rate limiter: %w", domain.ErrGenerationFailed, err)
		}
	}

	// go-openai drops a zero temperature (omitempty), which makes the server
	// fall back to its own default.
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(model, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(model, "api_error").Inc()
		c.logger.Warn("Chat completion failed",
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", parseAPIError("chat completion", err, domain.ErrGenerationFailed)
	}

	var answer string
	if len(resp.Choices) > 0 {
		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if answer == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(model, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(model, "empty_response").Inc()
		return "", fmt.Errorf("%w: empty completion from model %s", domain.ErrGenerationFailed, model)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(model, "completion").Add(float64(resp.Usage.CompletionTokens))

	c.logger.Debug("Chat completion done",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return answer, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
