package util

import (
	"regexp"
	"testing"
)

func TestNewID_Format(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		id := NewID()
		if !re.MatchString(id) {
			t.Fatalf("NewID %q not a valid uuid v4", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
