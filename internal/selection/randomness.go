/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package selection

import (
	"crypto/sha256"
	"encoding/binary"
)

// randomness is a rand.Source that expands a seed through a sha256 chain
type randomness struct {
	seed  []byte
	state []byte
}

func (r *randomness) Int63() int64 {
	if len(r.state) == 0 {
		r.state = sha256Hash(r.seed)
		r.seed = sha256Hash(r.seed)
	}
	defer func() {
		r.state = r.state[8:]
	}()
	return int64(binary.BigEndian.Uint64(r.state[:8]) >> 1)
}

func (r *randomness) Seed(_ int64) {
	panic("this random source should not be seeded")
}

func sha256Hash(bytes []byte) []byte {
	h := sha256.New()
	h.Write(bytes)
	return h.Sum(nil)
}
