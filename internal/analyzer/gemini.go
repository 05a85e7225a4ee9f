// Package analyzer produces natural-language summaries of file contents
// through the Gemini API.
package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Summarizer turns a prompt into summary text. Handlers depend on this so
// tests can count calls and cache behavior stays observable.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

const modelName = "gemini-1.5-flash"

// Gemini is the production Summarizer.
type Gemini struct {
	client *genai.Client
}

// NewGemini builds a Gemini client with the given API key.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("analyzer: GOOGLE_API_KEY not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Summarize(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(1000)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("analyzer: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("analyzer: no summary generated")
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	if out == "" {
		return "", errors.New("analyzer: no summary generated")
	}
	return out, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
