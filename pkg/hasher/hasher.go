package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

// Algorithms is the list of supported hashing algorithms.
var Algorithms = []string{"crc32", "md5", "sha1", "sha256", "sha512"}

// castagnoli matches the polynomial used by the GOG installer metadata.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// IsValidAlgo checks whether the provided algorithm string is supported.
func IsValidAlgo(algo string) bool {
	for _, valid := range Algorithms {
		if strings.ToLower(algo) == valid {
			return true
		}
	}
	return false
}

// FileHash calculates the hash of a file using the specified algorithm and
// returns it hex-encoded.
func FileHash(filePath, algo string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileCRC32 computes the CRC-32 (Castagnoli) checksum of a file.
func FileCRC32(filePath string) (uint32, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	h := crc32.New(castagnoli)
	if _, err := io.Copy(h, file); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

// NewCRC32 returns a streaming CRC-32 (Castagnoli) hash.
func NewCRC32() hash.Hash32 { return crc32.New(castagnoli) }

func newHash(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case "crc32":
		return crc32.New(castagnoli), nil
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}
