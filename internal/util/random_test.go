package util

import (
	"strings"
	"testing"
)

func TestGenerateSessionIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateSessionID()
		if id == "" {
			t.Fatal("empty session id")
		}
		if seen[id] {
			t.Fatalf("duplicate session id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestGenerateLeadID(t *testing.T) {
	id := GenerateLeadID()
	if !strings.HasPrefix(id, "lead_") {
		t.Errorf("expected lead_ prefix, got %s", id)
	}
	if len(id) != len("lead_")+32 {
		t.Errorf("unexpected lead id length: %s", id)
	}
}

func TestGenerateRandomHex(t *testing.T) {
	if GenerateRandomHex(0) != "" {
		t.Error("expected empty string for zero length")
	}
	hex := GenerateRandomHex(16)
	if len(hex) != 16 {
		t.Fatalf("unexpected length %d", len(hex))
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("non-hex character %q in %s", c, hex)
		}
	}
}
