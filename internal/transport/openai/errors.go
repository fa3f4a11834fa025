package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// parseAPIError extracts a human-readable error from the API response and
// wraps it with the given sentinel. Transport errors stay in the chain so
// callers can still match context.DeadlineExceeded.
func parseAPIError(kind string, err error, sentinel error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%w: %s API error %d: %s",
			sentinel, kind, reqErr.HTTPStatusCode, detail)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s API error %d: %s",
			sentinel, kind, apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("%w: %s request failed: %w", sentinel, kind, err)
}

// extractDetail extracts the "detail" field from a JSON error body
// (FastAPI-style servers such as text-embeddings-inference use it).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
