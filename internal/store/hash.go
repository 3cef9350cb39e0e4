package store

import (
	"encoding/hex"
	"fmt"

	"github.com/minio/highwayhash"
)

// hashKey is fixed so content hashes are stable across runs and databases.
var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// HashContent returns a hex-encoded 64-bit HighwayHash of content. It is used
// to skip reparsing files whose bytes did not change.
func HashContent(content []byte) (string, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil)), nil
}
