package task

import "strings"

// Classification is the lifecycle meaning of one raw status payload.
type Classification string

const (
	ClassProcessing Classification = "processing"
	ClassSuccess    Classification = "success"
	ClassFailure    Classification = "failure"
	ClassUnknown    Classification = "unknown"
)

// The provider status vocabulary is loosely specified; these sets cover every
// token observed so far. Anything else classifies as Unknown, which the
// poller treats like Processing but logs distinctly.
var processingTokens = map[string]bool{
	"processing": true,
	"pending":    true,
	"queued":     true,
	"running":    true,
}

var failureTokens = map[string]bool{
	"failed": true,
	"error":  true,
}

const successToken = "succeeded"

// Classify maps a raw status payload to a lifecycle classification. The
// status token may sit at the top level ("status") or nested inside the first
// entry of the data array ("data[0].state"); comparison is case-insensitive.
func Classify(payload map[string]interface{}) Classification {
	token := statusToken(payload)
	switch {
	case token == "":
		return ClassUnknown
	case processingTokens[token]:
		return ClassProcessing
	case token == successToken:
		return ClassSuccess
	case failureTokens[token]:
		return ClassFailure
	default:
		return ClassUnknown
	}
}

func statusToken(payload map[string]interface{}) string {
	if payload == nil {
		return ""
	}
	if s, ok := payload["status"].(string); ok && s != "" {
		return strings.ToLower(s)
	}
	if data, ok := payload["data"].([]interface{}); ok && len(data) > 0 {
		if entry, ok := data[0].(map[string]interface{}); ok {
			if s, ok := entry["state"].(string); ok && s != "" {
				return strings.ToLower(s)
			}
		}
	}
	return ""
}
