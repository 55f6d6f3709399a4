package crypto

import "cipherchat/internal/util/memzero"

// Wipe zeroes b. Callers use it on decrypted key material once it has been
// copied into a fixed-size key.
func Wipe(b []byte) { memzero.Zero(b) }
