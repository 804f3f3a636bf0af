package utils

import (
	"strings"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	original := strings.Repeat("Tracking drills build smooth aim over weeks of practice. ", 50)

	packed, err := CompressText(original)
	if err != nil {
		t.Fatal(err)
	}
	if len(packed) >= len(original) {
		t.Errorf("compressed size %d not smaller than original %d", len(packed), len(original))
	}

	got, err := DecompressText(packed)
	if err != nil {
		t.Fatal(err)
	}
	if got != original {
		t.Errorf("round trip changed content")
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := DecompressText([]byte("not gzip data")); err == nil {
		t.Error("expected error for invalid gzip input")
	}
}
