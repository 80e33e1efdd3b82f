package cache

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/asyrjasalo/augent/pkg/types"
)

// HashBytes returns the hex-encoded 256-bit BLAKE3 digest of data.
// Every content hash augent records (per-file snapshot hashes, bundle
// hashes in the lockfile) uses this function.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SnapshotHash computes a bundle's content hash from its snapshot: a
// digest over the sorted (path, file hash) sequence. Files is already
// sorted by path, so the result is deterministic.
func SnapshotHash(snap *types.Snapshot) string {
	hasher := blake3.New()
	for _, f := range snap.Files {
		_, _ = hasher.Write([]byte(f.Path))
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write([]byte(f.Hash))
		_, _ = hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
