// Package masking redacts payout destinations and contact details before they
// reach the audit trail.
package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = map[string]struct{}{
	"wallet_address": {},
	"account_number": {},
	"email":          {},
	"discord_id":     {},
}

// IsSensitive reports whether values stored under key are redacted.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Mask keeps the last four characters of value. Wallet addresses keep their
// 0x prefix and email addresses keep their domain.
func Mask(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if at := strings.LastIndex(trimmed, "@"); at > 0 && at < len(trimmed)-1 {
		return maskToken + trimmed[at:]
	}

	prefix := ""
	if len(trimmed) > 2 && strings.EqualFold(trimmed[:2], "0x") {
		prefix, trimmed = trimmed[:2], trimmed[2:]
	}
	if len(trimmed) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + trimmed[len(trimmed)-4:]
}

// Metadata returns a copy of input with sensitive keys masked at any depth.
// Blank keys are dropped.
func Metadata(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = maskEntry(key, value)
	}
	return out
}

func maskEntry(key string, value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return Metadata(cast)
	case []any:
		items := make([]any, len(cast))
		for i, item := range cast {
			items[i] = maskEntry(key, item)
		}
		return items
	case string:
		if IsSensitive(key) {
			return Mask(cast)
		}
	}
	return value
}
