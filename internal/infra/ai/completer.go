// Package ai wraps the OpenAI chat API behind port.TextCompleter.
// Used only by the template advisor; the billing pipeline itself never
// calls out to a model.
package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
)

var tracer = otel.Tracer("ai")

// Completer implements port.TextCompleter over OpenAI chat completions.
type Completer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewCompleter creates a completer. model defaults to gpt-4o-mini when
// empty.
func NewCompleter(apiKey, model string, logger *zap.Logger) *Completer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Completer{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// Complete sends one user prompt and returns the model's reply text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "AI.Complete")
	defer span.End()

	resp, err := c.client.CreateChatCompletion(ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		c.logger.Error("openai: completion failed", zap.Error(err))
		return "", &domain.ErrExternalService{Service: "openai", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &domain.ErrExternalService{Service: "openai", Err: fmt.Errorf("empty completion response")}
	}

	return resp.Choices[0].Message.Content, nil
}
