package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// api is the shared authenticated JSON transport used by every client.
type api struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAPI(baseURL, apiKey string, timeout time.Duration) api {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return api{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// do performs one authenticated request and decodes the JSON response.
// On non-2xx it returns the status code plus a best-effort message pulled
// from the body; the caller wraps both into the appropriate typed error.
func (a api) do(ctx context.Context, method, endpoint string, body interface{}) (map[string]interface{}, int, error) {
	url := a.baseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("%s", extractErrorDetail(resp))
	}

	// Empty successful responses happen; return an empty payload.
	if resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 {
		return map[string]interface{}{}, resp.StatusCode, nil
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse JSON response from %s: %w", url, err)
	}
	return payload, resp.StatusCode, nil
}

// extractErrorDetail pulls a human-readable message out of an error response,
// preferring the JSON detail/message/error fields, falling back to the first
// part of a plain-text body.
func extractErrorDetail(resp *http.Response) string {
	fallback := fmt.Sprintf("HTTP error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(raw) == 0 {
		return fallback
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var parsed map[string]interface{}
		if err := json.Unmarshal(raw, &parsed); err == nil {
			for _, key := range []string{"detail", "message", "error"} {
				if s, ok := parsed[key].(string); ok && s != "" {
					return s
				}
			}
		}
		return fallback
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return fallback
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// jobIDFromPayload digs the job id out of a successful create response.
// Providers are inconsistent about where it lives.
func jobIDFromPayload(payload map[string]interface{}) string {
	for _, key := range []string{"task_id", "id"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	if data, ok := payload["data"].(map[string]interface{}); ok {
		for _, key := range []string{"task_id", "id"} {
			if s, ok := data[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// submit wraps do with the submission error contract shared by all clients.
func (a api) submit(ctx context.Context, kind Kind, endpoint string, body interface{}) (string, error) {
	payload, status, err := a.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		if status != 0 {
			return "", &SubmissionError{StatusCode: status, Message: err.Error()}
		}
		return "", &SubmissionError{Message: err.Error()}
	}

	jobID := jobIDFromPayload(payload)
	if jobID == "" {
		log.Printf("[%s] create response missing job id: %v", kind, payload)
		return "", &SubmissionError{StatusCode: status, Message: "create response did not include a valid job id"}
	}
	return jobID, nil
}

// fetchStatus wraps do with the status error contract shared by all clients.
func (a api) fetchStatus(ctx context.Context, endpoint string) (map[string]interface{}, error) {
	payload, status, err := a.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		if status != 0 {
			return nil, &StatusFetchError{StatusCode: status, Message: err.Error()}
		}
		return nil, &TransportError{Op: "status fetch", Err: err}
	}
	return payload, nil
}
