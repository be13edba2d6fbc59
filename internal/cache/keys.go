package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

const hashRounds = 5

// hashUserID derives the cache key segment for a user. The raw user ID is
// never used as a key: it is run through repeated SHA-256 rounds and
// truncated, so keys in a shared cache namespace cannot be enumerated back
// to user identities.
func hashUserID(userID string) string {
	digest := userID
	for i := 0; i < hashRounds; i++ {
		sum := sha256.Sum256([]byte(digest))
		digest = hex.EncodeToString(sum[:])
	}
	return digest[:16]
}
