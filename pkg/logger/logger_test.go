package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()

	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed decoding log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(Init)

	Info("memory_created", map[string]interface{}{"photos": 2})
	WarnWithUser("user-1", "memory_not_found", nil)
	ErrorWithUser("user-1", "upload_failed", errors.New("boom"), map[string]interface{}{"key": "memories/u/a.jpg"})

	entries := decodeLines(t, &buf)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[0].Level != LevelInfo || entries[0].Action != "memory_created" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[0].UserID != nil {
		t.Fatalf("expected no user id on plain Info, got %q", *entries[0].UserID)
	}
	if entries[1].Level != LevelWarn || entries[1].UserID == nil || *entries[1].UserID != "user-1" {
		t.Fatalf("unexpected warn entry: %+v", entries[1])
	}
	if entries[2].Level != LevelError || entries[2].Error != "boom" {
		t.Fatalf("unexpected error entry: %+v", entries[2])
	}
	if entries[2].Caller == "" {
		t.Fatal("expected caller to be recorded")
	}
}

func TestNoOutputBeforeInit(t *testing.T) {
	globalLogger = nil
	t.Cleanup(Init)

	// must not panic
	Info("ignored", nil)
	Error("ignored", errors.New("x"), nil)
}

func TestRedactSensitiveFields(t *testing.T) {
	payload := map[string]interface{}{
		"email":           "a@b.c",
		"password":        "hunter22",
		"currentPassword": "old",
		"token":           "abc",
	}
	redactSensitiveFields(payload)

	for _, field := range []string{"password", "currentPassword", "token"} {
		if payload[field] != "[REDACTED]" {
			t.Errorf("expected %s to be redacted, got %v", field, payload[field])
		}
	}
	if payload["email"] != "a@b.c" {
		t.Errorf("expected email untouched, got %v", payload["email"])
	}
}
