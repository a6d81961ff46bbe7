// Package cursor provides opaque pagination token encoding/decoding.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cursor represents the internal state of a keyset pagination cursor over a
// user's owned tasks, ordered by creation time descending with the task ID
// as tiebreaker.
type Cursor struct {
	// CreatedAt is the creation timestamp (Unix millis) to paginate from.
	CreatedAt int64 `json:"created_at"`
	// ID is the task ID tiebreaker at the page boundary.
	ID string `json:"id"`
	// OwnerHash ensures tokens are invalidated if reused for another owner.
	OwnerHash string `json:"owner_hash,omitempty"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor.
// Returns an error if the token is invalid or malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}

	if c.ID == "" {
		return Cursor{}, fmt.Errorf("cursor is missing its id boundary")
	}

	return c, nil
}

// HashOwner computes a short hash of the owner ID for cursor validation.
// Returns empty string for an empty owner.
func HashOwner(ownerID string) string {
	if ownerID == "" {
		return ""
	}
	h := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(h[:8]) // 64-bit hash is sufficient for validation
}
