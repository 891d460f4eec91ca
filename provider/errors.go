package provider

import "fmt"

// SubmissionError means the provider rejected or failed to process the
// initial create request. It is fatal for the task and never retried.
type SubmissionError struct {
	StatusCode int // 0 when the request never reached the provider
	Message    string
}

func (e *SubmissionError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("submission failed: %s", e.Message)
	}
	return fmt.Sprintf("submission failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// StatusFetchError means the provider answered a status poll with a non-2xx
// response.
type StatusFetchError struct {
	StatusCode int
	Message    string
}

func (e *StatusFetchError) Error() string {
	return fmt.Sprintf("status fetch failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// TransportError means the status request never completed at the network
// layer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
