// Package llm is a small client for generative-text models.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/livsafe/livsafe-api/pkg/circuitbreaker"
)

// FallbackText is returned when the model produced no candidate.
const FallbackText = "I apologize, but I encountered an issue generating a response. Please try again."

var ErrNotConfigured = errors.New("generative model is not configured")

// Completer turns a prompt into model text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        uint64
	RequestsPerSecond float64
}

// DefaultBaseURL is the public Gemini endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// DefaultGeneration mirrors the settings the chat assistant was tuned with.
var DefaultGeneration = GenerationConfig{
	Temperature:     0.7,
	TopK:            40,
	TopP:            0.95,
	MaxOutputTokens: 1024,
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Gemini calls the generateContent endpoint.
type Gemini struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewGemini(cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Gemini{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:    "gemini",
			Timeout: time.Minute,
		}),
	}, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		var text string
		op := func() error {
			t, err := g.generate(ctx, prompt)
			if err != nil {
				return err
			}
			text = t
			return nil
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), g.cfg.MaxRetries), ctx)
		if err := backoff.Retry(op, policy); err != nil {
			return nil, err
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (g *Gemini) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.cfg.BaseURL, url.PathEscape(g.cfg.Model), url.QueryEscape(g.cfg.APIKey))
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: DefaultGeneration,
	})
	if err != nil {
		return "", backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("gemini returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to decode gemini response: %w", err))
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 || out.Candidates[0].Content.Parts[0].Text == "" {
		return FallbackText, nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
