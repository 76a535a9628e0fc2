package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(r *redactor) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{SugaredLogger: zap.New(core).Sugar(), redact: r}, logs
}

func TestRedactsCredentialsAndHashesContactData(t *testing.T) {
	log, logs := observed(&redactor{enabled: true, salt: "pepper"})
	log.Info("persona created", "OPENAI_API_KEY", "sk-live", "email", "jane.doe.1@acme.com", "persona", "ACME-EXEC-01")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["OPENAI_API_KEY"] != "[REDACTED]" {
		t.Fatalf("api key not redacted: %v", fields["OPENAI_API_KEY"])
	}
	email, _ := fields["email"].(string)
	if !strings.HasPrefix(email, "hash:") || strings.Contains(email, "acme") {
		t.Fatalf("email not hashed: %q", email)
	}
	if fields["persona"] != "ACME-EXEC-01" {
		t.Fatalf("plain field altered: %v", fields["persona"])
	}
}

func TestHashIsStableAndSalted(t *testing.T) {
	a := &redactor{enabled: true, salt: "one"}
	b := &redactor{enabled: true, salt: "two"}
	if a.hash("x@y.com") != a.hash("x@y.com") {
		t.Fatalf("hash is not deterministic")
	}
	if a.hash("x@y.com") == b.hash("x@y.com") {
		t.Fatalf("salt does not change the hash")
	}
}

func TestWithKeepsRedaction(t *testing.T) {
	log, logs := observed(&redactor{enabled: true})
	log.With("phone", "+1 (555) 123-4567").Warn("slot skipped")
	fields := logs.All()[0].ContextMap()
	if phone, _ := fields["phone"].(string); !strings.HasPrefix(phone, "hash:") {
		t.Fatalf("phone not hashed through With: %v", fields["phone"])
	}
}

func TestRedactionCanBeDisabled(t *testing.T) {
	env := map[string]string{"LOG_REDACTION_ENABLED": "off", "LOG_LEVEL": "error"}
	log, err := build("development", func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if log.redact.enabled {
		t.Fatalf("redaction should be off")
	}
	if log.SugaredLogger.Desugar().Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("LOG_LEVEL=error should disable warn")
	}
}

func TestNopIsSafe(t *testing.T) {
	log := Nop()
	log.With("token", "abc").Info("ignored", "secret", 1)
	log.Sync()
}
