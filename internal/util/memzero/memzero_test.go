package memzero_test

import (
	"bytes"
	"testing"

	"cipherchat/internal/util/memzero"
)

func TestZero(t *testing.T) {
	b := []byte("super secret group key material!")
	memzero.Zero(b)
	if !bytes.Equal(b, make([]byte, len(b))) {
		t.Fatalf("buffer not wiped: %x", b)
	}
	memzero.Zero(nil)
}
