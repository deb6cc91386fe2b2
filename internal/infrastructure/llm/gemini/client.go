package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kirillkom/policy-qa/internal/infrastructure/resilience"
)

// Client serves both embeddings and generation through the Gemini API.
type Client struct {
	client     *genai.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

func New(ctx context.Context, apiKey, baseURL, genModel, embedModel string, executor *resilience.Executor) (*Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(baseURL) != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		client:     client,
		genModel:   genModel,
		embedModel: embedModel,
		executor:   executor,
	}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := c.execute(ctx, "gemini.generate", func(callCtx context.Context) error {
		resp, err := c.client.Models.GenerateContent(callCtx, c.genModel, genai.Text(prompt), &genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0),
		})
		if err != nil {
			return fmt.Errorf("gemini generate: %w", err)
		}
		out = strings.TrimSpace(resp.Text())
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	var vectors [][]float32
	err := c.execute(ctx, "gemini.embed", func(callCtx context.Context) error {
		result, err := c.client.Models.EmbedContent(callCtx, c.embedModel, contents, nil)
		if err != nil {
			return fmt.Errorf("gemini embed: %w", err)
		}
		vectors = make([][]float32, 0, len(result.Embeddings))
		for _, embedding := range result.Embeddings {
			vectors = append(vectors, embedding.Values)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor == nil {
		err = fn(ctx)
	} else {
		err = c.executor.Execute(ctx, operation, fn, classifyError)
	}
	return resilience.WrapTemporary(operation, err, classifyError)
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
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}
