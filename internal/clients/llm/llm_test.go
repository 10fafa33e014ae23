package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

func TestOpenAI_GenerateAnalysis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "analyze AAPL", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"model":"gpt-test-0613","choices":[{"message":{"role":"assistant","content":"Risk is moderate."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(srv.URL, "sk-test", "gpt-test", zerolog.Nop())
	a, err := o.GenerateAnalysis(context.Background(), "analyze AAPL")
	require.NoError(t, err)
	assert.Equal(t, "openai", a.Provider)
	assert.Equal(t, "gpt-test-0613", a.Model)
	assert.Equal(t, "Risk is moderate.", a.Content)
}

func TestOpenAI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, func(t *testing.T, err error) {
			assert.True(t, domain.IsRateLimited(err))
		}},
		{"unauthorized", http.StatusUnauthorized, `{}`, func(t *testing.T, err error) {
			assert.True(t, domain.IsPermanent(err))
		}},
		{"empty choices", http.StatusOK, `{"choices":[]}`, func(t *testing.T, err error) {
			assert.True(t, domain.IsTransient(err))
		}},
		{"bad json", http.StatusOK, `{not json`, func(t *testing.T, err error) {
			assert.True(t, domain.IsTransient(err))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAI(srv.URL, "sk-test", "", zerolog.Nop()).GenerateAnalysis(context.Background(), "p")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGemini_GenerateAnalysis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "analyze SAP.DE", req.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Part one. "},{"text":"Part two."}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "g-key", "gemini-test", zerolog.Nop())
	a, err := g.GenerateAnalysis(context.Background(), "analyze SAP.DE")
	require.NoError(t, err)
	assert.Equal(t, "gemini", a.Provider)
	assert.Equal(t, "gemini-test", a.Model)
	assert.Equal(t, "Part one. Part two.", a.Content)
}

func TestGemini_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	_, err := NewGemini(srv.URL, "g-key", "", zerolog.Nop()).GenerateAnalysis(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))
}

func TestMissingKeys(t *testing.T) {
	_, err := NewOpenAI("", "", "", zerolog.Nop()).GenerateAnalysis(context.Background(), "p")
	assert.ErrorIs(t, err, domain.ErrRestricted)

	_, err = NewGemini("", "", "", zerolog.Nop()).GenerateAnalysis(context.Background(), "p")
	assert.ErrorIs(t, err, domain.ErrRestricted)
}
