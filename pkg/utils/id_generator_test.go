package utils

import (
	"testing"

	"github.com/google/uuid"
)

func TestGenerateIDIsValidUUID(t *testing.T) {
	id := GenerateID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("GenerateID() = %q, not a valid UUID: %v", id, err)
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := GenerateID()
		if _, dup := seen[id]; dup {
			t.Fatalf("GenerateID() produced duplicate %q after %d ids", id, i)
		}
		seen[id] = struct{}{}
	}
}
