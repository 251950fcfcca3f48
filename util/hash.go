package util

import "github.com/cespare/xxhash/v2"

// Checksum returns the xxhash64 digest used to verify committed segment files.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}
