// Package completion provides chat completion via langchaingo, used by the
// RAG generation step.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyCompletion indicates the model returned no choices.
	ErrEmptyCompletion = errors.New("model returned empty completion")
)

// Client produces a completion from a system instruction and a user prompt.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config holds configuration for the completion service.
type Config struct {
	// BaseURL is the base URL for the chat completions API. Empty means
	// the OpenAI default endpoint.
	BaseURL string

	// Model is the chat model, e.g. gpt-4o-mini.
	Model string

	// APIKey authenticates against the provider.
	APIKey string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service produces completions through langchaingo.
type Service struct {
	llm    *openai.LLM
	config Config
}

// NewService creates a completion service from config.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token; local servers ignore it.
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &Service{
		llm:    llm,
		config: config,
	}, nil
}

// Complete sends one system + user message pair and returns the first
// choice's text.
func (s *Service) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := s.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}

// Ensure Service implements Client.
var _ Client = (*Service)(nil)
