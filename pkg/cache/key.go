package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// keyPrefix namespaces all optimizer keys in shared backends.
const keyPrefix = "imgopt"

// SourceKey identifies a cached optimization result by its source identity.
type SourceKey struct {
	// Identity is the stable source locator (path, URL, asset id).
	Identity string
}

// String generates a deterministic cache key string.
// Format: imgopt:img:<sha256 of identity, first 32 hex chars>
//
// Hashing keeps keys short and backend-safe regardless of what characters
// the identity contains.
func (k SourceKey) String() string {
	sum := sha256.Sum256([]byte(k.Identity))
	return strings.Join([]string{keyPrefix, "img", hex.EncodeToString(sum[:])[:32]}, ":")
}
