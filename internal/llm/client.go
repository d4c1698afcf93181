// Package llm wraps the Gemini completion and embedding APIs behind their
// OpenAI-compatible surface. One client instance carries the process-wide
// model identity: every embedding produced here has the same model and
// dimensionality as the ones the vector collection was built with.
package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/metrics"
	"github.com/campusbrain/backend/pkg/apperr"
	"github.com/campusbrain/backend/pkg/circuitbreaker"
	"github.com/campusbrain/backend/pkg/config"
	"github.com/campusbrain/backend/pkg/retry"
)

const embedBatchSize = 100

type Client struct {
	api            *openai.Client
	model          string
	embeddingModel string
	embeddingDim   int
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	logger         *zap.Logger
}

func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger,
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger,
	}

	logger.Info("LLM client initialized",
		zap.String("model", cfg.Model),
		zap.String("embedding_model", cfg.EmbeddingModel),
		zap.Int("embedding_dim", cfg.EmbeddingDim),
	)

	return &Client{
		api:            openai.NewClientWithConfig(apiCfg),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		embeddingDim:   cfg.EmbeddingDim,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		cb:             cb,
		retryConfig:    retryConfig,
		logger:         logger,
	}
}

// Dimension returns the embedding dimensionality this client is configured
// for. The vector collection must have been created with the same value.
func (c *Client) Dimension() int {
	return c.embeddingDim
}

// Complete runs one single-shot completion. No streaming, no tools, no
// conversation memory.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if userPrompt == "" {
		return "", apperr.InvalidInput("llm complete: empty prompt")
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.api.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model: c.model,
					Messages: []openai.ChatCompletionMessage{
						{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
						{Role: openai.ChatMessageRoleUser, Content: userPrompt},
					},
					Temperature: c.temperature,
					MaxTokens:   c.maxTokens,
				},
			)
			if err != nil {
				return classify("llm complete", err)
			}
			if len(resp.Choices) == 0 {
				return apperr.Unavailable("llm complete", errors.New("no choices in response"))
			}

			c.logger.Debug("Completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)
			metrics.LLMTokens.WithLabelValues("prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokens.WithLabelValues("completion").Add(float64(resp.Usage.CompletionTokens))

			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	return content, nil
}

// Embed converts one text into a fixed-dimension vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, apperr.InvalidInput("embed: empty text")
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in request-sized batches, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, apperr.InvalidInput("embed: empty text in batch")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	embeddings := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.api.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.embeddingModel),
					},
				)
				if err != nil {
					return classify("embed", err)
				}
				if len(resp.Data) != len(batch) {
					return apperr.Unavailable("embed", errors.New("embedding count mismatch"))
				}

				for _, data := range resp.Data {
					if len(data.Embedding) != c.embeddingDim {
						// The provider served a vector from a different model
						// revision. Indexing it would poison the collection.
						return apperr.DimensionMismatch(c.embeddingDim, len(data.Embedding))
					}
					vector := make([]float32, len(data.Embedding))
					copy(vector, data.Embedding)
					embeddings = append(embeddings, vector)
				}
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}

	c.logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

// classify maps transport errors onto the shared taxonomy so callers can
// distinguish throttling from outage without inspecting provider types.
func classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return apperr.Throttled(op, err)
		}
		if apiErr.HTTPStatusCode >= 500 {
			return apperr.Unavailable(op, err)
		}
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return apperr.Throttled(op, err)
		}
		return apperr.Unavailable(op, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return apperr.Unavailable(op, err)
}
