// Package llm wraps the language model behind report narrative generation.
package llm

import (
	"context"
	"os"
)

// Provider is the interface narrative model providers implement.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// FromEnv returns the configured provider, nil when no API key is present.
// Narrative generation is optional; a nil provider disables it and the
// report falls back to its template text.
func FromEnv(model string) Provider {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return nil
	}
	return &GeminiProvider{Model: model}
}
