package provider

import (
	"context"
	"net/url"
	"time"

	"mediagen/config"
)

// visualBody builds the generations-style create payload shared by the image
// and video providers.
func visualBody(req Request) map[string]interface{} {
	body := map[string]interface{}{
		"prompt":          req.Description,
		"response_format": "url",
	}
	if req.ModelVersion != "" {
		body["model"] = req.ModelVersion
	}
	if req.NegativeTags != "" {
		body["negative_prompt"] = req.NegativeTags
	}
	return body
}

// ImageClient talks to the image generation provider.
type ImageClient struct {
	api api
}

func NewImageClient(cfg config.ProviderConfig, timeout time.Duration) *ImageClient {
	return &ImageClient{api: newAPI(cfg.BaseURL, cfg.APIKey, timeout)}
}

func (c *ImageClient) Kind() Kind { return KindImage }

func (c *ImageClient) Submit(ctx context.Context, req Request) (string, error) {
	return c.api.submit(ctx, KindImage, "/v1/generations", visualBody(req))
}

func (c *ImageClient) FetchStatus(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return c.api.fetchStatus(ctx, "/v1/generations/"+url.PathEscape(jobID))
}

// VideoClient talks to the video generation provider.
type VideoClient struct {
	api api
}

func NewVideoClient(cfg config.ProviderConfig, timeout time.Duration) *VideoClient {
	return &VideoClient{api: newAPI(cfg.BaseURL, cfg.APIKey, timeout)}
}

func (c *VideoClient) Kind() Kind { return KindVideo }

func (c *VideoClient) Submit(ctx context.Context, req Request) (string, error) {
	return c.api.submit(ctx, KindVideo, "/v1/generations", visualBody(req))
}

func (c *VideoClient) FetchStatus(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return c.api.fetchStatus(ctx, "/v1/generations/"+url.PathEscape(jobID))
}
