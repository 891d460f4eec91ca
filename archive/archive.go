// Package archive is the client for the durable-storage service that fetches
// a generated asset from its temporary provider URL and keeps a permanent
// copy. Archiving is best-effort: the orchestrator logs failures and moves on.
package archive

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

	"mediagen/config"
	"mediagen/task"

	"github.com/google/uuid"
)

// HTTPSink posts finalized results to the archive service.
type HTTPSink struct {
	endpoint     string
	maxAssetSize int64
	http         *http.Client
}

func NewHTTPSink(cfg *config.Config) *HTTPSink {
	return &HTTPSink{
		endpoint:     strings.TrimSuffix(cfg.ArchiveURL, "/"),
		maxAssetSize: cfg.MaxAssetSize,
		http:         &http.Client{Timeout: 2 * time.Minute},
	}
}

type saveResponse struct {
	URL    string `json:"url"`
	FileID string `json:"fileId"`
}

// Save archives one result and returns its durable URL. Oversized assets are
// skipped up front so the archive service never streams them.
func (s *HTTPSink) Save(ctx context.Context, req task.SaveRequest) (string, error) {
	if req.SourceURL == "" {
		return "", fmt.Errorf("source URL is required")
	}

	if err := s.checkAssetSize(ctx, req.SourceURL); err != nil {
		return "", err
	}

	record := struct {
		task.SaveRequest
		RecordID string `json:"recordId"`
	}{SaveRequest: req, RecordID: uuid.NewString()}

	encoded, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode archive record: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("archive request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("archive service returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed saveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse archive response: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("archive response missing durable URL")
	}
	return parsed.URL, nil
}

// checkAssetSize probes the asset with a HEAD request. Providers that omit
// Content-Length get the benefit of the doubt.
func (s *HTTPSink) checkAssetSize(ctx context.Context, sourceURL string) error {
	if s.maxAssetSize <= 0 {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, sourceURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		log.Printf("Warning: could not probe asset size for %s: %v", sourceURL, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.ContentLength > s.maxAssetSize {
		return fmt.Errorf("asset size %d exceeds limit of %d bytes", resp.ContentLength, s.maxAssetSize)
	}
	return nil
}

// NopSink is used when no archive service is configured.
type NopSink struct{}

func (NopSink) Save(ctx context.Context, req task.SaveRequest) (string, error) {
	log.Printf("Archive disabled, dropping record for task %s (%s)", req.CorrelationID, req.SourceURL)
	return "", nil
}
