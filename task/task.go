package task

import (
	"context"
	"time"

	"mediagen/provider"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// ErrorKind distinguishes the terminal non-success causes so the UI can tell
// a fixable input problem from a provider outage or a timeout.
type ErrorKind string

const (
	ErrorValidation ErrorKind = "validation"
	ErrorProvider   ErrorKind = "provider"
	ErrorNetwork    ErrorKind = "network"
	ErrorTimeout    ErrorKind = "timeout"
)

// Result is one generated artifact, normalized across providers.
type Result struct {
	SourceID string   `json:"sourceId"`
	AssetURL string   `json:"assetUrl"`
	Title    string   `json:"title,omitempty"`
	Duration float64  `json:"durationSeconds,omitempty"`
	CoverURL string   `json:"coverUrl,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Task is one user-initiated generation request. ExternalJobID is set at most
// once, right after a successful submission. Status only moves forward along
// pending -> processing -> success|error.
type Task struct {
	ID            string           `json:"id"`
	ExternalJobID string           `json:"externalJobId,omitempty"`
	Provider      provider.Kind    `json:"provider"`
	Params        provider.Request `json:"params"`
	Status        Status           `json:"status"`
	Results       []Result         `json:"results,omitempty"`
	ErrorDetail   string           `json:"error,omitempty"`
	ErrorKind     ErrorKind        `json:"errorKind,omitempty"`
	Degraded      bool             `json:"degraded,omitempty"`
	Attempts      int              `json:"attempts"`
	CreatedAt     time.Time        `json:"createdAt"`
	cancelFunc    context.CancelFunc
}

func (t *Task) terminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusError
}
