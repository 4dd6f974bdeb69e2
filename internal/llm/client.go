// Package llm holds the Gemini client configured for the service. Scoring
// never calls it; it is exposed for readiness reporting.
package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/dvloznov/auditor-agent/internal/config"
)

// ErrNotConfigured is returned by Ready when no API key was supplied.
var ErrNotConfigured = errors.New("llm: no API key configured")

// Status describes the configured model for health reporting.
type Status struct {
	Configured bool   `json:"configured"`
	Model      string `json:"model"`
	Ready      *bool  `json:"ready,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Prober reports LLM availability.
type Prober interface {
	Status(ctx context.Context, probe bool) Status
}

// GeminiClient wraps a genai client bound to one model.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient builds a client from cfg. An empty API key yields an
// unconfigured client rather than an error.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	c := &GeminiClient{model: cfg.Model}
	if cfg.APIKey == "" {
		return c, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.client = client
	return c, nil
}

// Model is the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Configured reports whether an API key was supplied.
func (c *GeminiClient) Configured() bool { return c.client != nil }

// Ready looks the model up to confirm the key and model name are usable.
func (c *GeminiClient) Ready(ctx context.Context) error {
	if c.client == nil {
		return ErrNotConfigured
	}
	if _, err := c.client.Models.Get(ctx, c.model, nil); err != nil {
		return fmt.Errorf("llm: get model %s: %w", c.model, err)
	}
	return nil
}

// Status reports configuration, and readiness when probe is set.
func (c *GeminiClient) Status(ctx context.Context, probe bool) Status {
	s := Status{Configured: c.Configured(), Model: c.model}
	if !probe || !s.Configured {
		return s
	}

	ready := true
	if err := c.Ready(ctx); err != nil {
		ready = false
		s.Error = err.Error()
	}
	s.Ready = &ready
	return s
}
