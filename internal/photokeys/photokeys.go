// Package photokeys owns the encoding of a memory's photo list.
//
// A memory stores its photos as an ordered list of object-storage keys
// serialized into a single text column. Rows written before multi-photo
// memories existed hold a bare key instead of a JSON array, so decoding is
// lenient: anything that is not a JSON array of strings is treated as a
// one-element list containing the raw value.
package photokeys

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxPerMemory is the upper bound on photos attached to one memory.
const MaxPerMemory = 10

var (
	ErrTooMany = fmt.Errorf("a memory can have at most %d photos", MaxPerMemory)
	ErrEmpty   = errors.New("a memory must have at least one photo")
)

// Encode serializes keys as a JSON array.
func Encode(keys []string) string {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.Marshal(keys)
	if err != nil {
		// []string always marshals
		panic(err)
	}
	return string(data)
}

// Decode never fails. See the package comment for the accepted shapes.
func Decode(raw string) []string {
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil || keys == nil {
		return []string{raw}
	}
	return keys
}

// NewKey returns a fresh key for a photo uploaded by userID. The extension is
// whatever follows the last dot of the original filename.
func NewKey(userID, filename string) (string, error) {
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("generating photo key: %w", err)
	}
	return fmt.Sprintf("memories/%s/%s.%s", userID, hex.EncodeToString(token), extension(filename)), nil
}

func extension(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i+1:]
	}
	return filename
}

// Match returns the first key that appears inside ref. ref is usually a
// presigned URL, which embeds the raw key in its path.
func Match(keys []string, ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	for _, key := range keys {
		if key != "" && strings.Contains(ref, key) {
			return key, true
		}
	}
	return "", false
}

// Remove returns keys without any occurrence of key, preserving order.
func Remove(keys []string, key string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

// CheckCapacity reports ErrTooMany when adding photos to a list of existing
// photos would exceed MaxPerMemory.
func CheckCapacity(existing, adding int) error {
	if existing+adding > MaxPerMemory {
		return ErrTooMany
	}
	return nil
}
