package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in logs.
const RedactedValue = "[REDACTED]"

// Funder-supplied free text and credentials. Matching is case-insensitive and
// ignores '-' and '_' so "Memo-Text" and "memo_text" are the same key.
var sensitiveKeys = map[string]struct{}{
	"memo":          {},
	"memotext":      {},
	"email":         {},
	"authorization": {},
	"token":         {},
	"bearer":        {},
	"secret":        {},
	"jwtsecret":     {},
	"passphrase":    {},
	"privatekey":    {},
	"signature":     {},
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("-", "", "_", "").Replace(key)
}

// IsSensitive reports whether values logged under key are masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[normalizeKey(key)]
	return ok
}

// MaskValue returns RedactedValue for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a string attribute, masked when key is sensitive. Empty
// values pass through so logs still show that nothing was supplied.
func MaskField(key, value string) slog.Attr {
	if IsSensitive(key) {
		return slog.String(key, MaskValue(value))
	}
	return slog.String(key, value)
}

// redactAttr masks sensitive string attributes that reached the handler
// without going through MaskField.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || !IsSensitive(attr.Key) {
		return attr
	}
	return slog.String(attr.Key, MaskValue(attr.Value.String()))
}
