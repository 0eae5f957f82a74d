package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCompleteSendsPromptAndSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))

		var req generateRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)
		assert.Equal(t, DefaultGeneration, req.GenerationConfig)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"F2 means moderate fibrosis."}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(Config{APIKey: "k", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	text, err := g.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "F2 means moderate fibrosis.", text)
}

func TestCompleteFallsBackWithoutCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := g.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, FallbackText, text)
}

func TestCompleteRetriesServerErrorsOnly(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g, err := NewGemini(Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 3})
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), "hi")
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
