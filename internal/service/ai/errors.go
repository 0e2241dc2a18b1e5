package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
)

// classify maps vendor failures onto the application error taxonomy.
// Context cancellation passes through untouched so callers can distinguish
// user-initiated aborts from remote failures.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		return &apperr.ExchangeError{Op: op, Category: "transport", Err: err}
	}

	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return &apperr.AuthenticationError{Reason: apiErr.Message, Err: err}
	case strings.Contains(msg, "api key"):
		// The API rejects bad keys with 400 INVALID_ARGUMENT.
		return &apperr.AuthenticationError{Reason: apiErr.Message, Err: err}
	case apiErr.Code == http.StatusNotFound && strings.Contains(msg, "model"):
		return &apperr.ConfigurationError{Field: "model", Reason: apiErr.Message}
	default:
		category := apiErr.Status
		if category == "" {
			category = http.StatusText(apiErr.Code)
		}
		return &apperr.ExchangeError{Op: op, Category: category, Err: err}
	}
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}

	return genai.APIError{}, false
}
