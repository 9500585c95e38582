package providers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRequestClone(t *testing.T) {
	original := &Request{
		Model: "smart",
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
		},
		PreferredProvider: "groq",
		TokenEstimate:     150,
	}

	clone := original.Clone()
	clone.Model = "llama-3.3-70b-versatile"

	if original.Model != "smart" {
		t.Errorf("expected original model untouched, got %q", original.Model)
	}
	if clone.Model != "llama-3.3-70b-versatile" {
		t.Errorf("expected clone model rewritten, got %q", clone.Model)
	}
	if clone.TokenEstimate != original.TokenEstimate {
		t.Error("expected routing state carried into clone")
	}
}

func TestRequestRoutingFieldsNotSerialized(t *testing.T) {
	// Routing state must never leak into the upstream request body.
	req := &Request{
		Model:             "llama-3.3-70b-versatile",
		Messages:          []Message{{Role: RoleUser, Content: "hi"}},
		PreferredProvider: "groq",
		TokenEstimate:     999,
		Metadata:          map[string]string{"request_id": "abc"},
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := string(data)
	for _, forbidden := range []string{"groq", "999", "request_id", "PreferredProvider", "TokenEstimate"} {
		if strings.Contains(body, forbidden) {
			t.Errorf("expected %q absent from wire body, got %s", forbidden, body)
		}
	}
}

func TestChunkErrNotSerialized(t *testing.T) {
	chunk := &Chunk{
		ID:    "resp-1",
		Delta: "partial",
		Err:   errors.New("upstream hiccup"),
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(data), "hiccup") {
		t.Errorf("expected Err excluded from serialization, got %s", data)
	}
}
