package util

import (
	"strconv"
	"strings"
)

func ParseInt(str string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
		return v
	}
	return fallback
}

func ParseBool(str string, fallback bool) bool {
	if v, err := strconv.ParseBool(str); err == nil {
		return v
	}
	return fallback
}

// ParseUint64 accepts decimal or 0x-prefixed hex, which is how segment ids are usually printed.
func ParseUint64(str string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(str), 0, 64)
}

// ParseUint32 is ParseUint64 bounded to 32 bits.
func ParseUint32(str string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(str), 0, 32)
	return uint32(v), err
}
