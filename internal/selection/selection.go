/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package selection maps random words to a duplicate free, ordered list of roster indices.
//
// Every draw reduces a 256 bit word modulo a bound no larger than the roster size.
// The residual modulo bias of such a draw is at most bound/2^256 per index, which is
// accepted and not corrected.
package selection

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/holiman/uint256"
)

// Strategy names a draw-without-replacement strategy
type Strategy string

const (
	// Swap draws from the remaining indices with a partial Fisher-Yates shuffle
	Swap Strategy = "swap"
	// Rehash draws from the whole roster and re-derives colliding draws from a hash chain
	Rehash Strategy = "rehash"
)

// maxRehashFactor bounds the re-derivation attempts of a single position to rosterSize*maxRehashFactor.
const maxRehashFactor = 64

// ForStrategy returns the selector implementing the given strategy.
// The empty strategy selects Swap.
func ForStrategy(s Strategy) (raffle.Selector, error) {
	switch s {
	case Swap, "":
		return SelectSwap, nil
	case Rehash:
		return SelectRehash, nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", s)
	}
}

// Select is the default selector
func Select(words []*raffle.Word, rosterSize, winnerCount int) ([]int, error) {
	return SelectSwap(words, rosterSize, winnerCount)
}

// SelectSwap performs a partial Fisher-Yates shuffle over the virtual array [0, rosterSize).
// The i-th draw picks words[i] mod (rosterSize-i) among the indices not drawn yet,
// so the first winner is words[0] mod rosterSize and collisions cannot occur.
func SelectSwap(words []*raffle.Word, rosterSize, winnerCount int) ([]int, error) {
	if err := checkArgs(words, rosterSize, winnerCount); err != nil {
		return nil, err
	}

	// swapped holds the positions of the virtual array that differ from the identity
	swapped := make(map[int]int)
	at := func(i int) int {
		if n, exists := swapped[i]; exists {
			return n
		}
		return i
	}

	res := make([]int, 0, winnerCount)
	for i := 0; i < winnerCount; i++ {
		j := i + mod(words[i], rosterSize-i)
		picked := at(j)
		// Position i is never read again, only j needs to receive what was at i.
		swapped[j] = at(i)
		res = append(res, picked)
	}

	return res, nil
}

// SelectRehash takes words[i] mod rosterSize as the i-th candidate.
// A candidate that was already drawn is replaced by sampling from a sha256 chain
// seeded with the word and its position until a free index comes up.
func SelectRehash(words []*raffle.Word, rosterSize, winnerCount int) ([]int, error) {
	if err := checkArgs(words, rosterSize, winnerCount); err != nil {
		return nil, err
	}

	taken := make(map[int]struct{}, winnerCount)
	res := make([]int, 0, winnerCount)
	for i := 0; i < winnerCount; i++ {
		candidate := mod(words[i], rosterSize)
		if _, exists := taken[candidate]; exists {
			var err error
			candidate, err = redraw(words[i], i, rosterSize, taken)
			if err != nil {
				return nil, err
			}
		}
		taken[candidate] = struct{}{}
		res = append(res, candidate)
	}

	return res, nil
}

func redraw(word *raffle.Word, position int, rosterSize int, taken map[int]struct{}) (int, error) {
	seed := word.Bytes32()
	positionBuff := make([]byte, 8)
	binary.BigEndian.PutUint64(positionBuff, uint64(position))

	r := rand.New(&randomness{seed: append(seed[:], positionBuff...)})

	attempts := rehashAttempts(rosterSize)
	for attempt := 0; attempt < attempts; attempt++ {
		candidate := r.Intn(rosterSize)
		if _, exists := taken[candidate]; !exists {
			return candidate, nil
		}
	}

	return 0, fmt.Errorf("%w: no free index for position %d among %d after %d attempts",
		raffle.ErrSelectionExhausted, position, rosterSize, attempts)
}

// rehashAttempts is rosterSize*maxRehashFactor, saturated at math.MaxInt
func rehashAttempts(rosterSize int) int {
	if rosterSize > math.MaxInt/maxRehashFactor {
		return math.MaxInt
	}
	return rosterSize * maxRehashFactor
}

func checkArgs(words []*raffle.Word, rosterSize, winnerCount int) error {
	if winnerCount <= 0 {
		return fmt.Errorf("%w: winner count must be positive, got %d", raffle.ErrInvalidSelection, winnerCount)
	}
	if rosterSize < winnerCount {
		return fmt.Errorf("%w: cannot draw %d winners out of %d", raffle.ErrInvalidSelection, winnerCount, rosterSize)
	}
	if len(words) < winnerCount {
		return fmt.Errorf("%w: got %d words for %d winners", raffle.ErrInvalidSelection, len(words), winnerCount)
	}
	for i := 0; i < winnerCount; i++ {
		if words[i] == nil {
			return fmt.Errorf("%w: word %d is nil", raffle.ErrInvalidSelection, i)
		}
	}
	return nil
}

func mod(word *raffle.Word, n int) int {
	return int(new(uint256.Int).Mod(word, uint256.NewInt(uint64(n))).Uint64())
}
