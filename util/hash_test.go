package util_test

import (
	"testing"

	"github.com/downfa11-org/go-backup/util"
)

func TestChecksumDeterministic(t *testing.T) {
	data := []byte("segment body")
	if util.Checksum(data) != util.Checksum(data) {
		t.Errorf("Checksum should be deterministic")
	}
}

func TestChecksumDetectsFlip(t *testing.T) {
	a := []byte("segment body")
	b := []byte("segment bodz")

	if util.Checksum(a) == util.Checksum(b) {
		t.Errorf("Checksum should differ for different bodies")
	}
}
