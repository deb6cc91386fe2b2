package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kirillkom/policy-qa/internal/infrastructure/resilience"
)

const defaultMaxTokens = 1024

// Generator implements the text generation port on the Messages API.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int
	executor  *resilience.Executor
}

func NewGenerator(apiKey, model string, maxTokens int, executor *resilience.Executor, opts ...option.RequestOption) *Generator {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	// Retries belong to the executor, not the SDK.
	requestOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &Generator{
		client:    anthropic.NewClient(requestOpts...),
		model:     model,
		maxTokens: maxTokens,
		executor:  executor,
	}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	call := func(callCtx context.Context) error {
		text, err := g.generate(callCtx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	}

	var err error
	if g.executor == nil {
		err = call(ctx)
	} else {
		err = g.executor.Execute(ctx, "anthropic.generate", call, classifyError)
	}
	if err != nil {
		return "", resilience.WrapTemporary("anthropic generate", err, classifyError)
	}
	return out, nil
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   int64(g.maxTokens),
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages request: %w", err)
	}

	// No text blocks yields "", which the validator reports as malformed output.
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

func classifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= 500:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{}
		}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
