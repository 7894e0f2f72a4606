// Package logging provides masking for sensitive values in outbound
// payloads. Alert data and audit details leave the trust boundary over
// webhooks and pub/sub, so credential-bearing fields are redacted first.
package logging

import (
	"strings"
)

// sensitiveFields are field names whose values must never appear in
// alerts, audit details, or log output.
var sensitiveFields = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"refresh_token": true,
	"private_key":   true,
	"client_secret": true,
	"credentials":   true,
	"authorization": true,
	"bearer":        true,
	"session_id":    true,
	"cookie":        true,
	"webhook_url":   true,
}

// MaskedValue replaces sensitive values.
const MaskedValue = "[REDACTED]"

// IsSensitiveField reports whether a field name carries a sensitive value.
func IsSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	if sensitiveFields[lower] {
		return true
	}
	for sensitive := range sensitiveFields {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// MaskFields returns a copy of the map with sensitive values redacted.
// Nested maps are masked recursively. A nil input returns nil.
func MaskFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsSensitiveField(k) {
			out[k] = MaskedValue
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = MaskFields(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// MaskString shows only the first and last few characters of a value.
// Values too short to mask meaningfully are fully redacted.
func MaskString(s string, showFirst, showLast int) string {
	if s == "" {
		return s
	}
	if len(s) <= showFirst+showLast+3 {
		return MaskedValue
	}
	return s[:showFirst] + "***" + s[len(s)-showLast:]
}
