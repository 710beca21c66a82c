package cache

import (
	"strings"
	"testing"
)

func TestSourceKeyDeterministic(t *testing.T) {
	k1 := SourceKey{Identity: "products/42/main.jpg"}.String()
	k2 := SourceKey{Identity: "products/42/main.jpg"}.String()
	if k1 != k2 {
		t.Errorf("same identity produced different keys: %q vs %q", k1, k2)
	}
}

func TestSourceKeyDistinct(t *testing.T) {
	k1 := SourceKey{Identity: "products/42/main.jpg"}.String()
	k2 := SourceKey{Identity: "products/43/main.jpg"}.String()
	if k1 == k2 {
		t.Errorf("different identities collided on key %q", k1)
	}
}

func TestSourceKeyFormat(t *testing.T) {
	key := SourceKey{Identity: "https://cdn.example.com/img?id=1&size=big"}.String()

	if !strings.HasPrefix(key, "imgopt:img:") {
		t.Errorf("key %q missing namespace prefix", key)
	}

	// Identity characters must never leak into the key; backends treat some
	// characters (spaces, newlines) specially.
	if strings.ContainsAny(key, " ?&=\n") {
		t.Errorf("key %q contains unsafe characters", key)
	}

	parts := strings.Split(key, ":")
	if len(parts) != 3 || len(parts[2]) != 32 {
		t.Errorf("key %q not in imgopt:img:<32 hex> form", key)
	}
}
