package task

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Asset URL field names observed across providers, in precedence order.
// image_url comes last because the music providers use it for cover art.
var assetURLAliases = []string{"audio_url", "video_url", "url", "download_url", "image_url"}

var sourceIDAliases = []string{"clip_id", "id"}

// ExtractResults normalizes a raw success payload into result records.
// Entries lacking an asset URL are dropped. A missing payload data array
// yields an empty slice; the caller treats that as a degraded success.
func ExtractResults(jobID string, payload map[string]interface{}) []Result {
	data, ok := payload["data"].([]interface{})
	if !ok {
		return nil
	}

	var results []Result
	for _, raw := range data {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		assetURL, assetKey := pickAssetURL(entry)
		if assetURL == "" {
			continue
		}

		r := Result{
			SourceID: sourceID(jobID, entry),
			AssetURL: assetURL,
			Title:    "Generated Media",
			Tags:     normalizeTags(entry["tags"]),
		}
		if title, ok := entry["title"].(string); ok && title != "" {
			r.Title = title
		}
		if d, ok := entry["duration"].(float64); ok {
			r.Duration = d
		}
		// Cover art, unless image_url was already consumed as the asset.
		if assetKey != "image_url" {
			if cover, ok := entry["image_url"].(string); ok && cover != "" {
				r.CoverURL = cover
			}
		}

		results = append(results, r)
	}
	return results
}

func pickAssetURL(entry map[string]interface{}) (string, string) {
	for _, key := range assetURLAliases {
		if s, ok := entry[key].(string); ok && s != "" {
			return s, key
		}
	}
	return "", ""
}

// sourceID returns the provider-assigned clip id, or synthesizes one from the
// job id, current time, and a random component. Synthesized ids are unique
// even across repeated extractions of the same payload.
func sourceID(jobID string, entry map[string]interface{}) string {
	for _, key := range sourceIDAliases {
		switch v := entry[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return fmt.Sprintf("%s_%d_%d", jobID, time.Now().UnixMilli(), rand.Int63())
}

// normalizeTags accepts either a comma-separated string or a list of strings.
func normalizeTags(raw interface{}) []string {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		tags := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				tags = append(tags, p)
			}
		}
		return tags
	case []interface{}:
		var tags []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return nil
	}
}
