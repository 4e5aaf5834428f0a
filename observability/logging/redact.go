package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces masked values in log output.
const RedactedValue = "[REDACTED]"

// Keys that are never written in clear, whatever the call site passes.
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"secret":        {},
	"hmacsecret":    {},
	"passphrase":    {},
	"privatekey":    {},
	"apikey":        {},
	"x-api-key":     {},
}

// Keys MaskField leaves readable.
var maskAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"error":     {},
	"module":    {},
	"caller":    {},
	"owner":     {},
	"wallet":    {},
	"target":    {},
	"operation": {},
	"status":    {},
	"requestid": {},
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsSensitive reports whether values under key are always redacted.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[normalizeKey(key)]
	return ok
}

// MaskField returns an attribute whose value is redacted unless key is known
// to carry public data such as addresses or module names. Empty values pass
// through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, value)
	}
	if _, ok := maskAllowlist[normalizeKey(key)]; ok && !IsSensitive(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// redactAttr is applied by the handler to every attribute.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup || !IsSensitive(attr.Key) {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
