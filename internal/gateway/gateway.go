// Package gateway holds the external data gateway contract shared by provider clients:
// HTTP outcome classification and the analysis provider fallback chain.
//
// A gateway call has three outcomes. Success returns data and a nil error.
// RateLimited returns an error matching domain.ErrRateLimited. Failure returns any
// other error, classified as transient or permanent.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// maxErrorBody caps how much of an error response is kept in messages
const maxErrorBody = 512

// CheckResponse converts a non-2xx response into a classified error. It does not close the body.
func CheckResponse(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(body))
	return ClassifyStatus(op, resp.StatusCode, detail)
}

// ClassifyStatus maps an HTTP status code to the error taxonomy
func ClassifyStatus(op string, status int, detail string) error {
	msg := fmt.Sprintf("status %d", status)
	if detail != "" {
		msg += ": " + detail
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %s: %w", op, msg, domain.ErrRateLimited)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewPermanentError(op, fmt.Errorf("%s: %w", msg, domain.ErrRestricted))
	case status == http.StatusNotFound:
		return domain.NewPermanentError(op, fmt.Errorf("%s: %w", msg, domain.ErrNotFound))
	case status == http.StatusRequestTimeout || status >= 500:
		return domain.NewTransientError(op, errors.New(msg))
	default:
		return domain.NewPermanentError(op, errors.New(msg))
	}
}

// ClassifyTransport wraps an error from http.Client.Do. Caller cancellation is
// passed through unchanged; everything else is transient.
func ClassifyTransport(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewTransientError(op, err)
}
