package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAI calls the chat completions endpoint
type OpenAI struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger
}

func NewOpenAI(baseURL, apiKey, model string, log zerolog.Logger) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.With().Str("provider", "openai").Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAI) Name() string { return "openai" }

// GenerateAnalysis sends prompt as a single user message
func (o *OpenAI) GenerateAnalysis(ctx context.Context, prompt string) (*domain.Analysis, error) {
	const op = "openai chat completion"
	if o.apiKey == "" {
		return nil, domain.NewPermanentError(op, fmt.Errorf("api key not configured: %w", domain.ErrRestricted))
	}

	req := chatRequest{
		Model:    o.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}

	var resp chatResponse
	if err := postJSON(ctx, o.httpClient, o.log, op, o.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, domain.NewTransientError(op, errors.New("empty completion"))
	}

	model := resp.Model
	if model == "" {
		model = o.model
	}
	return &domain.Analysis{
		CreatedAt: o.now(),
		Provider:  o.Name(),
		Model:     model,
		Content:   resp.Choices[0].Message.Content,
	}, nil
}
