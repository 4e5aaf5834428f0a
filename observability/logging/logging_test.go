package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "walletd", "test", "debug")
	logger.Debug("wallet created", slog.String("owner", "0xabc"), MaskField("token", "secret"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for key, want := range map[string]string{
		"message":  "wallet created",
		"severity": "DEBUG",
		"service":  "walletd",
		"env":      "test",
		"owner":    "0xabc",
		"token":    RedactedValue,
	} {
		if line[key] != want {
			t.Fatalf("%s = %v, want %q", key, line[key], want)
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp key")
	}
}

func TestParseLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "walletd", "", "warning")
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line must be filtered at warn level: %s", buf.String())
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("unknown levels must default to info")
	}
}

func TestSensitiveKeysAreAlwaysRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "walletd", "", "info")
	logger.Info("login", slog.String("Authorization", "Bearer abc"), slog.String("passphrase", "hunter2"), slog.String("wallet", "0x01"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["Authorization"] != RedactedValue || line["passphrase"] != RedactedValue {
		t.Fatalf("secrets leaked: %v", line)
	}
	if line["wallet"] != "0x01" {
		t.Fatalf("public field masked: %v", line["wallet"])
	}
	if got := MaskField("client", "key:abc").Value.String(); got != RedactedValue {
		t.Fatalf("unlisted key must be masked, got %q", got)
	}
}
