// Package llm implements domain.AnalysisProvider over the OpenAI and Gemini HTTP APIs.
// Only the request/response envelope is mapped; prompt content is owned by callers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/gateway"
)

// Generation can take a while; the reaper covers anything longer
const defaultTimeout = 120 * time.Second

// postJSON sends body to url and decodes a 2xx response into out
func postJSON(ctx context.Context, httpClient *http.Client, log zerolog.Logger, op, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.NewPermanentError(op, fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.NewPermanentError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return gateway.ClassifyTransport(ctx, op, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Analysis request")

	if err := gateway.CheckResponse(op, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewTransientError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
