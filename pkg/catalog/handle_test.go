package catalog

import (
	"testing"

	"tycho-hq/meridian/pkg/config"
)

func TestHandle_SwapReturnsPrevious(t *testing.T) {
	first := mustCatalog(t)
	h := NewHandle(first)

	if h.Current() != first {
		t.Fatal("Current() does not return the initial generation")
	}

	cfg := testConfig()
	cfg.Providers["groq"] = config.ProviderConfig{
		Kind:          "openai-compatible",
		CredentialRef: "gsk_testkey",
		Free:          true,
		RPMLimit:      10,
	}
	second, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if prev := h.Swap(second); prev != first {
		t.Error("Swap() did not return the previous generation")
	}
	if h.Current() != second {
		t.Error("Current() does not return the swapped generation")
	}
}

func TestHandle_LimitsTracksGeneration(t *testing.T) {
	h := NewHandle(mustCatalog(t))

	if rpm, tpm := h.Limits("groq"); rpm != 30 || tpm != 6000 {
		t.Errorf("Limits(groq) = (%d, %d), want (30, 6000)", rpm, tpm)
	}
	if rpm, tpm := h.Limits("nonexistent"); rpm != 0 || tpm != 0 {
		t.Errorf("Limits(nonexistent) = (%d, %d), want (0, 0)", rpm, tpm)
	}

	cfg := testConfig()
	pc := cfg.Providers["groq"]
	pc.RPMLimit = 5
	pc.TPMLimit = 1000
	cfg.Providers["groq"] = pc
	next, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.Swap(next)

	if rpm, tpm := h.Limits("groq"); rpm != 5 || tpm != 1000 {
		t.Errorf("Limits(groq) after swap = (%d, %d), want (5, 1000)", rpm, tpm)
	}
}

func TestHandle_NilCatalog(t *testing.T) {
	h := NewHandle(nil)

	if h.Current() != nil {
		t.Error("Current() != nil for an empty handle")
	}
	if rpm, tpm := h.Limits("groq"); rpm != 0 || tpm != 0 {
		t.Errorf("Limits() on empty handle = (%d, %d), want (0, 0)", rpm, tpm)
	}
}
