// Package openai adapts the OpenAI API to the pipeline's embedding and
// generation ports for deployments without a local model server.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/infrastructure/resilience"
)

type Client struct {
	api        *openai.Client
	genModel   string
	embedModel string
	exec       *resilience.Executor
}

func New(apiKey, baseURL, genModel, embedModel string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		genModel:   genModel,
		embedModel: embedModel,
		exec:       resilience.NewExecutor(resilience.DefaultConfig(), classifyError),
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openai.EmbeddingResponse
	err := e.client.exec.Do(ctx, "embed", func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.client.embedModel),
			Input: texts,
		})
		return callErr
	})
	if err != nil {
		return nil, wrapUnavailable("embed texts", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed texts: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, domain.WrapError(domain.ErrProviderUnavailable, "embed query",
			fmt.Errorf("model %s returned an empty vector", e.client.embedModel))
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	var resp openai.ChatCompletionResponse
	err := g.client.exec.Do(ctx, "generate", func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    g.client.genModel,
			Messages: messages,
		})
		return callErr
	})
	if err != nil {
		return "", wrapUnavailable("generate text", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrProviderUnavailable, "generate text",
			fmt.Errorf("model %s returned no choices", g.client.genModel))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyError(err error) resilience.Verdict {
	if err == nil {
		return resilience.Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Verdict{Retryable: false, CountsAsTrip: false}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500:
			return resilience.Verdict{Retryable: true, CountsAsTrip: true}
		default:
			return resilience.Verdict{Retryable: false, CountsAsTrip: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Verdict{Retryable: true, CountsAsTrip: true}
	}

	return resilience.Verdict{Retryable: false, CountsAsTrip: true}
}

func wrapUnavailable(operation string, err error) error {
	if err == nil {
		return nil
	}
	if resilience.IsCircuitOpen(err) || classifyError(err).Retryable {
		return domain.WrapError(domain.ErrProviderUnavailable, operation, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrProviderUnavailable, operation, err)
	}
	return err
}
