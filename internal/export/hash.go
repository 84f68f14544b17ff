package export

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/crypto/argon2"
)

// HashType represents the different hashing algorithms available.
type HashType string

const (
	// HashTypeArgon2id uses the Argon2id algorithm for hashing.
	HashTypeArgon2id HashType = "argon2id"
	// HashTypeSHA256 uses iterated SHA256 for hashing.
	HashTypeSHA256 HashType = "sha256"
)

// Valid reports whether the hash type is supported.
func (h HashType) Valid() bool {
	return h == HashTypeArgon2id || h == HashTypeSHA256
}

// SaltFingerprint identifies a salt without revealing it, so holders of the
// salt can confirm which one an export used.
func SaltFingerprint(salt string) string {
	sum := sha256.Sum256([]byte("bailiff-salt:" + salt))
	return hex.EncodeToString(sum[:8])
}

// HashID converts a single ID to a hash using the specified algorithm with the provided salt.
// memory is in MiB and only used by Argon2id.
func HashID(id uint64, salt string, hashType HashType, iterations uint32, memory uint32) string {
	idBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBytes, id)

	var hash []byte

	switch hashType {
	case HashTypeArgon2id:
		hash = argon2.IDKey(idBytes, []byte(salt), iterations, memory*1024, 1, 32)
	case HashTypeSHA256:
		hash = []byte(salt)

		h := sha256.New()
		for range iterations {
			h.Reset()
			h.Write(idBytes)
			h.Write(hash)
			hash = h.Sum(nil)
		}
	}

	return hex.EncodeToString(hash)
}

// hashIDs hashes every id using up to concurrency goroutines.
func hashIDs(ids []uint64, salt string, hashType HashType, concurrency int, iterations, memory uint32) map[uint64]string {
	hashes := make([]string, len(ids))

	p := pool.New().WithMaxGoroutines(max(concurrency, 1))
	for i, id := range ids {
		p.Go(func() {
			hashes[i] = HashID(id, salt, hashType, iterations, memory)
		})
	}
	p.Wait()

	result := make(map[uint64]string, len(ids))
	for i, id := range ids {
		result[id] = hashes[i]
	}

	return result
}
