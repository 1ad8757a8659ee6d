// Package assistant answers natural-language questions about the store by
// forwarding a text summary of the catalog and sales to a language model.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
)

var (
	// ErrNotConfigured is returned when no model API key is available.
	ErrNotConfigured = errors.New("assistant: API key is missing; set ASSISTANT_API_KEY to enable the assistant")
	// ErrEmptyQuery is returned for blank questions.
	ErrEmptyQuery = errors.New("assistant: query is empty")
	// ErrEmptyAnswer is returned when the model produced no text.
	ErrEmptyAnswer = errors.New("assistant: model returned no answer")
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Service builds prompts and calls the Generator. It never mutates the data
// it is given.
type Service struct {
	gen    Generator
	logger *slog.Logger
}

// NewService builds a Service. A nil gen makes every question fail with
// ErrNotConfigured.
func NewService(gen Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gen: gen, logger: logger}
}

// Ask answers query against the given snapshot.
func (s *Service) Ask(ctx context.Context, query string, products []catalog.Product, sales []ledger.Sale) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	if s.gen == nil {
		return "", ErrNotConfigured
	}
	answer, err := s.gen.Generate(ctx, SystemInstruction, BuildPrompt(query, products, sales))
	if err != nil {
		s.logger.Warn("assistant generate", slog.Any("error", err))
		return "", fmt.Errorf("assistant: generate: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator builds a generator for model using apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: new client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
