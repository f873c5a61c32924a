package logutil

import (
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const redacted = "[REDACTED]"

// IsSensitiveLogField returns true when a key likely contains sensitive data.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "apikey"), strings.Contains(normalized, "accesskey"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	default:
		return false
	}
}

// MaskSecret keeps the first two characters of a secret so operators can tell
// values apart without exposing them.
func MaskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return redacted
	}
	return value[:2] + strings.Repeat("*", 6)
}

// RedactEnv returns KEY=VALUE pairs with sensitive values masked, sorted by key.
func RedactEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if ok && IsSensitiveLogField(key) {
			value = MaskSecret(value)
		}
		if ok {
			out = append(out, key+"="+value)
			continue
		}
		out = append(out, kv)
	}
	sort.Strings(out)
	return out
}

// RedactURL drops userinfo from raw.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User(redacted)
	return u.String()
}

// Fields builds zap fields from a flat map, masking sensitive keys.
func Fields(values map[string]string) []zap.Field {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		v := values[k]
		if IsSensitiveLogField(k) {
			v = MaskSecret(v)
		}
		fields = append(fields, zap.String(k, v))
	}
	return fields
}

// TruncateForLog returns a single-line truncated preview for unstructured values.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "... [truncated]"
}
