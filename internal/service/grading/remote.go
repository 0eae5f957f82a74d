package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/pkg/circuitbreaker"
)

var ErrInvalidAssessment = errors.New("grading service returned an invalid assessment")

type RemoteConfig struct {
	Endpoint   string
	Timeout    time.Duration
	MaxRetries uint64
}

// RemoteGrader posts the image to an external model service.
type RemoteGrader struct {
	cfg     RemoteConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewRemote(cfg RemoteConfig) *RemoteGrader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RemoteGrader{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{Name: "grading"}),
	}
}

func (g *RemoteGrader) Name() string { return "remote" }

type remoteResponse struct {
	Grade      string  `json:"grade"`
	Confidence float64 `json:"confidence"`
}

func (g *RemoteGrader) Grade(ctx context.Context, img Image) (Assessment, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		var out Assessment
		op := func() error {
			a, err := g.call(ctx, img)
			if err != nil {
				return err
			}
			out = a
			return nil
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), g.cfg.MaxRetries), ctx)
		if err := backoff.Retry(op, policy); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return Assessment{}, err
	}
	return result.(Assessment), nil
}

func (g *RemoteGrader) call(ctx context.Context, img Image) (Assessment, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", img.Name)
	if err != nil {
		return Assessment{}, backoff.Permanent(err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return Assessment{}, backoff.Permanent(err)
	}
	if err := writer.Close(); err != nil {
		return Assessment{}, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, body)
	if err != nil {
		return Assessment{}, backoff.Permanent(fmt.Errorf("failed to build grading request: %w", err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return Assessment{}, fmt.Errorf("grading request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("grading service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return Assessment{}, err
		}
		return Assessment{}, backoff.Permanent(err)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Assessment{}, backoff.Permanent(fmt.Errorf("failed to decode grading response: %w", err))
	}
	a := Assessment{Grade: model.Grade(out.Grade), Confidence: out.Confidence}
	if !a.Grade.Valid() || a.Confidence < 0 || a.Confidence > 100 {
		return Assessment{}, backoff.Permanent(ErrInvalidAssessment)
	}
	return a, nil
}
