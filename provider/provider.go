// Package provider wraps the third-party generation APIs. Each provider kind
// gets its own Client implementation; the orchestrator selects one through a
// Registry lookup so adding a provider never touches existing code paths.
package provider

import (
	"context"

	"mediagen/config"
)

type Kind string

const (
	KindSonic  Kind = "sonic"
	KindStudio Kind = "studio"
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
)

// Request is the immutable parameter snapshot captured when the user starts a
// generation. The music providers distinguish a structured custom mode from a
// free-text description mode; image and video use Description as the prompt.
type Request struct {
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Title        string `json:"title,omitempty"`
	Style        string `json:"style,omitempty"`
	Lyrics       string `json:"lyrics,omitempty"`
	Description  string `json:"description,omitempty"`
	NegativeTags string `json:"negativeTags,omitempty"`
	ModelVersion string `json:"modelVersion,omitempty"`
}

// Client is one provider's job API.
//
// Submit returns the provider-assigned job id; it fails with *SubmissionError
// on any non-2xx response or when a 2xx response lacks a job id. FetchStatus
// returns the raw status payload for classification; it fails with
// *TransportError on network failure and *StatusFetchError on non-2xx.
// FetchStatus must be safe to repeat: it never alters provider-side state.
type Client interface {
	Kind() Kind
	Submit(ctx context.Context, req Request) (string, error)
	FetchStatus(ctx context.Context, jobID string) (map[string]interface{}, error)
}

// Registry is a lookup table of clients keyed by provider kind.
type Registry struct {
	clients map[Kind]Client
}

func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[Kind]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Kind()] = c
	}
	return r
}

func (r *Registry) Lookup(kind Kind) (Client, bool) {
	c, ok := r.clients[kind]
	return c, ok
}

func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.clients))
	for k := range r.clients {
		kinds = append(kinds, k)
	}
	return kinds
}

// NewRegistryFromConfig builds a registry holding every provider that has a
// base URL configured.
func NewRegistryFromConfig(cfg *config.Config) *Registry {
	var clients []Client
	if cfg.Sonic.BaseURL != "" {
		clients = append(clients, NewSonicClient(cfg.Sonic, cfg.RequestTimeout))
	}
	if cfg.Studio.BaseURL != "" {
		clients = append(clients, NewStudioClient(cfg.Studio, cfg.RequestTimeout))
	}
	if cfg.Image.BaseURL != "" {
		clients = append(clients, NewImageClient(cfg.Image, cfg.RequestTimeout))
	}
	if cfg.Video.BaseURL != "" {
		clients = append(clients, NewVideoClient(cfg.Video, cfg.RequestTimeout))
	}
	return NewRegistry(clients...)
}
