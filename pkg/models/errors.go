// Package models adapts the two language-model backends — Anthropic Claude
// and Thesys C1 — behind the agent.ChatModel interface. All backend-specific
// request and response shapes stay inside this package.
package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// errNoChoices signals an upstream response with no completion choice, which
// the protocol does not allow.
var errNoChoices = errors.New("response contained no choices")

// BackendError wraps a model-backend failure. Transient faults (network
// errors, rate limits, upstream 5xx) may be retried and map to 503 at the
// endpoint; the rest (malformed responses, client errors) map to 502.
type BackendError struct {
	Transient bool
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("model backend: %v", e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// classifyError converts an SDK error into a BackendError.
func classifyError(err error) *BackendError {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return &BackendError{Transient: transientStatus(anthropicErr.StatusCode), Err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &BackendError{Transient: transientStatus(apiErr.HTTPStatusCode), Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &BackendError{Transient: transientStatus(reqErr.HTTPStatusCode), Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &BackendError{Transient: false, Err: err}
	}
	// Anything else is assumed to be a transport fault.
	return &BackendError{Transient: true, Err: err}
}

func transientStatus(status int) bool {
	return status == 408 || status == 429 || status >= 500
}

const (
	retryAttempts = 3
	retryBaseWait = 500 * time.Millisecond
)

// withRetry runs fn with bounded retry of transient backend faults. The last
// error is returned as a BackendError.
func withRetry(ctx context.Context, fn func() error) error {
	var last *BackendError
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			wait := retryBaseWait << (attempt - 1)
			select {
			case <-ctx.Done():
				return &BackendError{Transient: false, Err: ctx.Err()}
			case <-time.After(wait):
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		last = classifyError(err)
		if !last.Transient {
			return last
		}
	}
	return last
}
