package logging

import "strings"

// Redacted replaces values whose keys match the sensitive denylist.
const Redacted = "[REDACTED]"

// sensitiveKeys matches by case-insensitive substring, so "authToken",
// "api_key" and "Password2" are all caught.
var sensitiveKeys = []string{"password", "token", "secret", "key", "auth"}

// identifierKeys are masked rather than removed so log lines stay
// correlatable.
var identifierKeys = map[string]bool{
	"did":     true,
	"userid":  true,
	"user_id": true,
	"actor":   true,
}

func isSensitiveKey(k string) bool {
	lk := strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if strings.Contains(lk, s) {
			return true
		}
	}
	return false
}

// MaskIdentifier keeps a fixed visible prefix and suffix of an
// identifier-like value. Short values pass through unchanged since
// there is nothing left to hide.
func MaskIdentifier(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:8] + "..." + s[len(s)-4:]
}

// redactContext returns a scrubbed copy of ctx. Nested maps and slices
// are walked recursively; the input is never mutated.
func redactContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}

	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		switch {
		case isSensitiveKey(k):
			out[k] = Redacted
		case identifierKeys[strings.ToLower(k)]:
			if s, ok := v.(string); ok {
				out[k] = MaskIdentifier(s)
			} else {
				out[k] = v
			}
		default:
			out[k] = redactValue(v)
		}
	}
	return out
}

func redactValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return redactContext(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = redactValue(e)
		}
		return out
	default:
		return v
	}
}
