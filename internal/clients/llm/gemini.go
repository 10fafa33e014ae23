package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-1.5-flash"
)

// Gemini calls the generateContent endpoint
type Gemini struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger
}

func NewGemini(baseURL, apiKey, model string, log zerolog.Logger) *Gemini {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.With().Str("provider", "gemini").Logger(),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) GenerateAnalysis(ctx context.Context, prompt string) (*domain.Analysis, error) {
	const op = "gemini generate content"
	if g.apiKey == "" {
		return nil, domain.NewPermanentError(op, fmt.Errorf("api key not configured: %w", domain.ErrRestricted))
	}

	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	headers := map[string]string{"x-goog-api-key": g.apiKey}

	var resp geminiResponse
	if err := postJSON(ctx, g.httpClient, g.log, op, endpoint, headers, req, &resp); err != nil {
		return nil, err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, domain.NewPermanentError(op, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return nil, domain.NewTransientError(op, errors.New("no candidates returned"))
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewTransientError(op, errors.New("empty candidate"))
	}

	return &domain.Analysis{
		CreatedAt: g.now(),
		Provider:  g.Name(),
		Model:     g.model,
		Content:   text,
	}, nil
}
