package upstream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Error is a failed upstream call, already mapped to the status the bridge
// should answer with.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Message)
}

// ExtractErrorMessage digs the human-readable message out of an upstream
// error body: error.message first, then a top-level message, then the raw
// body.
func ExtractErrorMessage(body []byte) string {
	var envelope struct {
		Error *struct {
			Message json.RawMessage `json:"message"`
		} `json:"error"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != nil {
			if message := rawString(envelope.Error.Message); message != "" {
				return message
			}
		}
		if message := rawString(envelope.Message); message != "" {
			return message
		}
	}

	if strings.TrimSpace(string(body)) == "" {
		return "upstream API returned an empty error response"
	}
	return string(body)
}

func rawString(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return ""
	}
	return text
}

// Classify rewrites well-known upstream failure modes into actionable hints.
// Unrecognized messages pass through unchanged.
func Classify(detail string) string {
	lowered := strings.ToLower(detail)

	switch {
	case strings.Contains(lowered, "unsupported_country_region_territory"),
		strings.Contains(lowered, "country, region, or territory not supported"):
		return "OpenAI API is not available in your region. Consider using Azure OpenAI or a compatible regional provider."
	case strings.Contains(lowered, "invalid_api_key"), strings.Contains(lowered, "unauthorized"):
		return "Invalid API key. Please verify OPENAI_API_KEY configuration."
	case strings.Contains(lowered, "rate_limit"), strings.Contains(lowered, "quota"):
		return "Rate limit exceeded. Please retry later or upgrade your upstream quota."
	case strings.Contains(lowered, "model") &&
		(strings.Contains(lowered, "not found") || strings.Contains(lowered, "does not exist")):
		return "Model not found. Please check BIG_MODEL / MIDDLE_MODEL / SMALL_MODEL mappings."
	case strings.Contains(lowered, "billing"), strings.Contains(lowered, "payment"):
		return "Billing issue detected. Please verify upstream account billing status."
	default:
		return detail
	}
}
