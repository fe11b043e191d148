// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// fingerprintDomainKey separates client-key fingerprints from any
// other BLAKE3 use of the same input. ASCII, zero-padded to 32 bytes.
var fingerprintDomainKey = [32]byte{
	'b', 'e', 'a', 'k', '.', 'r', 'e', 'l', 'a', 'y', '.', 'c', 'l', 'i', 'e', 'n',
	't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// fingerprintLength is the number of digest bytes kept.
const fingerprintLength = 8

// Fingerprint returns a short, stable, non-reversible identifier for a
// client key: the hex encoding of the first 8 bytes of its keyed
// BLAKE3 hash. The empty key has the empty fingerprint.
func Fingerprint(key string) string {
	if key == "" {
		return ""
	}
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		panic("relay: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(key))
	digest := hasher.Sum(nil)
	return hex.EncodeToString(digest[:fingerprintLength])
}
