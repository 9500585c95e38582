package main

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfigYAML = `
server:
  listen: "127.0.0.1:0"

providers:
  groq:
    kind: openai-compatible
    credential_ref: "sk-test"
    free: true

canonical_models:
  - id: groq/llama
    provider_id: groq
    model_path: llama-3.3-70b
    capabilities:
      streaming: true

aliases:
  chat:
    - groq/llama
`

const brokenConfigYAML = `
server:
  listen: "not-an-address"

providers:
  mystery:
    kind: quantum

canonical_models:
  - id: mystery/chat
    provider_id: nobody
    model_path: chat

aliases:
  chat:
    - missing/model
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meridian.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestBuildReport_Valid(t *testing.T) {
	report := buildReport(writeConfig(t, validConfigYAML))

	if !report.Valid {
		t.Fatalf("report.Valid = false, errors = %+v", report.Errors)
	}
	if report.Providers != 1 {
		t.Errorf("report.Providers = %d, want 1", report.Providers)
	}
	if report.Models != 1 {
		t.Errorf("report.Models = %d, want 1", report.Models)
	}
	if report.Aliases != 1 {
		t.Errorf("report.Aliases = %d, want 1", report.Aliases)
	}
}

func TestBuildReport_AccumulatesFieldErrors(t *testing.T) {
	report := buildReport(writeConfig(t, brokenConfigYAML))

	if report.Valid {
		t.Fatal("report.Valid = true for a broken config")
	}
	// Bad kind, bad model provider reference, and bad alias reference
	// must all surface in one pass.
	if len(report.Errors) < 3 {
		t.Fatalf("len(report.Errors) = %d, want at least 3: %+v", len(report.Errors), report.Errors)
	}

	fields := make(map[string]bool)
	for _, issue := range report.Errors {
		fields[issue.Field] = true
	}
	for _, want := range []string{
		"providers.mystery.kind",
		"canonical_models[0].provider_id",
		"aliases.chat",
	} {
		if !fields[want] {
			t.Errorf("missing field error %q in %+v", want, report.Errors)
		}
	}
}

func TestBuildReport_MissingFile(t *testing.T) {
	report := buildReport(filepath.Join(t.TempDir(), "absent.yaml"))

	if report.Valid {
		t.Fatal("report.Valid = true for a missing file")
	}
	if len(report.Errors) != 1 {
		t.Fatalf("len(report.Errors) = %d, want 1", len(report.Errors))
	}
}

func TestValidateCommandExists(t *testing.T) {
	if validateCmd == nil {
		t.Fatal("validateCmd is nil")
	}
	if validateCmd.Use != "validate" {
		t.Errorf("validateCmd.Use = %q, want %q", validateCmd.Use, "validate")
	}
	if validateCmd.RunE == nil {
		t.Error("validateCmd.RunE should not be nil")
	}
}
