package provider

import (
	"context"
	"net/url"
	"time"

	"mediagen/config"
)

const defaultSonicVersion = "sonic-v3-5"

// musicBody builds the flat create payload the music API expects. Custom mode
// maps style to tags and lyrics to prompt; description mode uses
// gpt_description_prompt.
func musicBody(model string, req Request) map[string]interface{} {
	taskType := "generate_music"
	if req.CustomMode {
		taskType = "generate_music_custom"
	}

	body := map[string]interface{}{
		"model":             model,
		"custom_mode":       req.CustomMode,
		"make_instrumental": req.Instrumental,
		"task_type":         taskType,
	}
	if req.ModelVersion != "" {
		body["mv"] = req.ModelVersion
	}

	if req.CustomMode {
		body["title"] = req.Title
		body["tags"] = req.Style
		body["prompt"] = req.Lyrics
	} else {
		body["gpt_description_prompt"] = req.Description
	}
	body["negative_tags"] = req.NegativeTags

	return body
}

// SonicClient talks to the sonic model family.
type SonicClient struct {
	api api
}

func NewSonicClient(cfg config.ProviderConfig, timeout time.Duration) *SonicClient {
	return &SonicClient{api: newAPI(cfg.BaseURL, cfg.APIKey, timeout)}
}

func (c *SonicClient) Kind() Kind { return KindSonic }

func (c *SonicClient) Submit(ctx context.Context, req Request) (string, error) {
	body := musicBody("sonic", req)
	if _, ok := body["mv"]; !ok {
		body["mv"] = defaultSonicVersion
	}
	return c.api.submit(ctx, KindSonic, "/api/v1/sonic/create", body)
}

func (c *SonicClient) FetchStatus(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return c.api.fetchStatus(ctx, "/api/v1/sonic/task/"+url.PathEscape(jobID))
}

// StudioClient talks to the studio model family. Its status endpoint takes
// the job id as a query parameter rather than a path segment.
type StudioClient struct {
	api api
}

func NewStudioClient(cfg config.ProviderConfig, timeout time.Duration) *StudioClient {
	return &StudioClient{api: newAPI(cfg.BaseURL, cfg.APIKey, timeout)}
}

func (c *StudioClient) Kind() Kind { return KindStudio }

func (c *StudioClient) Submit(ctx context.Context, req Request) (string, error) {
	return c.api.submit(ctx, KindStudio, "/api/v1/studio/create", musicBody("studio", req))
}

func (c *StudioClient) FetchStatus(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return c.api.fetchStatus(ctx, "/get-studio-music?task_id="+url.QueryEscape(jobID))
}
