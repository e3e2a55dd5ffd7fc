/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package selection

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"testing"

	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var strategies = []Strategy{Swap, Rehash}

func hashedWords(seed string, n int) []*raffle.Word {
	var res []*raffle.Word
	for i := 0; i < n; i++ {
		buff := make([]byte, 8)
		binary.BigEndian.PutUint64(buff, uint64(i))
		h := sha256.Sum256(append([]byte(seed), buff...))
		res = append(res, new(uint256.Int).SetBytes(h[:]))
	}
	return res
}

// congruentWords returns n words that are all congruent to r modulo m
func congruentWords(n int, m, r uint64) []*raffle.Word {
	var res []*raffle.Word
	for i := 0; i < n; i++ {
		w := new(uint256.Int).Mul(uint256.NewInt(uint64(i+1)*1000003), uint256.NewInt(m))
		res = append(res, w.Add(w, uint256.NewInt(r)))
	}
	return res
}

func assertDistinctInRange(t *testing.T, indices []int, rosterSize int) {
	seen := make(map[int]struct{})
	for _, idx := range indices {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, rosterSize)
		_, exists := seen[idx]
		assert.False(t, exists, "index %d drawn twice in %v", idx, indices)
		seen[idx] = struct{}{}
	}
}

func TestSelectCongruentWords(t *testing.T) {
	words := congruentWords(7, 11, 4)
	for _, w := range words {
		assert.Equal(t, uint64(4), new(uint256.Int).Mod(w, uint256.NewInt(11)).Uint64())
	}

	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			selector, err := ForStrategy(s)
			require.NoError(t, err)

			winners, err := selector(words, 11, 7)
			require.NoError(t, err)
			assert.Len(t, winners, 7)
			assertDistinctInRange(t, winners, 11)
			assert.Equal(t, 4, winners[0])
		})
	}
}

func TestSelectDeterministic(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			selector, err := ForStrategy(s)
			require.NoError(t, err)

			words := hashedWords("determinism", 50)
			a, err := selector(words, 100, 50)
			require.NoError(t, err)
			b, err := selector(words, 100, 50)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestSelectNoDuplicates(t *testing.T) {
	for _, s := range strategies {
		selector, err := ForStrategy(s)
		require.NoError(t, err)

		for rosterSize := 1; rosterSize <= 20; rosterSize++ {
			for winnerCount := 1; winnerCount <= rosterSize; winnerCount++ {
				words := hashedWords(string(s), winnerCount)
				winners, err := selector(words, rosterSize, winnerCount)
				require.NoError(t, err)
				assert.Len(t, winners, winnerCount)
				assertDistinctInRange(t, winners, rosterSize)
			}
		}
	}
}

func TestSelectWholeRoster(t *testing.T) {
	// Identical words force every later draw of the rehash strategy through the collision path
	var words []*raffle.Word
	for i := 0; i < 30; i++ {
		words = append(words, uint256.NewInt(12345))
	}

	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			selector, err := ForStrategy(s)
			require.NoError(t, err)

			winners, err := selector(words, 30, 30)
			require.NoError(t, err)
			assertDistinctInRange(t, winners, 30)
			assert.Len(t, winners, 30)
		})
	}
}

func TestSelectSwapFirstDrawIsModulo(t *testing.T) {
	words := []*raffle.Word{uint256.NewInt(23), uint256.NewInt(0), uint256.NewInt(0)}
	winners, err := SelectSwap(words, 10, 3)
	require.NoError(t, err)
	// 23 mod 10 = 3, then zero offsets pick the next untouched positions
	assert.Equal(t, []int{3, 1, 2}, winners)

	words = []*raffle.Word{uint256.NewInt(0), uint256.NewInt(0), uint256.NewInt(0)}
	winners, err = SelectSwap(words, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, winners)

	words = []*raffle.Word{uint256.NewInt(9), uint256.NewInt(8), uint256.NewInt(7)}
	winners, err = SelectSwap(words, 10, 3)
	require.NoError(t, err)
	// 9 picks 9 (0 moves to 9), 1+8 = 9 picks 0, 2+7 = 9 picks 1
	assert.Equal(t, []int{9, 0, 1}, winners)
}

func TestSelectSwapUniformFirstDraw(t *testing.T) {
	counts := make(map[int]int)
	for i := 0; i < 10000; i++ {
		winners, err := SelectSwap([]*raffle.Word{uint256.NewInt(uint64(i))}, 10, 1)
		require.NoError(t, err)
		counts[winners[0]]++
	}
	for idx := 0; idx < 10; idx++ {
		assert.Equal(t, 1000, counts[idx])
	}
}

func TestSelectRehashKeepsFreeCandidates(t *testing.T) {
	words := []*raffle.Word{uint256.NewInt(2), uint256.NewInt(5), uint256.NewInt(7)}
	winners, err := SelectRehash(words, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 7}, winners)
}

func TestSelectExtraWordsIgnored(t *testing.T) {
	words := hashedWords("extra", 10)
	for _, s := range strategies {
		selector, err := ForStrategy(s)
		require.NoError(t, err)

		a, err := selector(words[:4], 12, 4)
		require.NoError(t, err)
		b, err := selector(words, 12, 4)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestSelectInvalidArguments(t *testing.T) {
	words := hashedWords("invalid", 3)

	tests := []struct {
		name        string
		words       []*raffle.Word
		rosterSize  int
		winnerCount int
	}{
		{name: "zero winners", words: words, rosterSize: 3, winnerCount: 0},
		{name: "roster too small", words: words, rosterSize: 2, winnerCount: 3},
		{name: "not enough words", words: words[:2], rosterSize: 5, winnerCount: 3},
		{name: "nil word", words: []*raffle.Word{words[0], nil, words[2]}, rosterSize: 5, winnerCount: 3},
	}

	for _, tt := range tests {
		for _, s := range strategies {
			t.Run(tt.name+"/"+string(s), func(t *testing.T) {
				selector, err := ForStrategy(s)
				require.NoError(t, err)

				winners, err := selector(tt.words, tt.rosterSize, tt.winnerCount)
				assert.ErrorIs(t, err, raffle.ErrInvalidSelection)
				assert.Nil(t, winners)
			})
		}
	}
}

func TestRedrawExhaustion(t *testing.T) {
	taken := map[int]struct{}{0: {}, 1: {}, 2: {}}
	_, err := redraw(uint256.NewInt(1), 3, 3, taken)
	assert.ErrorIs(t, err, raffle.ErrSelectionExhausted)
}

func TestRehashAttemptsSaturate(t *testing.T) {
	assert.Equal(t, 11*maxRehashFactor, rehashAttempts(11))
	assert.Equal(t, math.MaxInt, rehashAttempts(math.MaxInt/maxRehashFactor+1))
	assert.Equal(t, math.MaxInt, rehashAttempts(math.MaxInt))
}

func TestForStrategy(t *testing.T) {
	_, err := ForStrategy("")
	assert.NoError(t, err)
	_, err = ForStrategy("linear-probing")
	assert.EqualError(t, err, `unknown selection strategy "linear-probing"`)
}

func TestRandomnessChain(t *testing.T) {
	a := &randomness{seed: []byte("seed")}
	b := &randomness{seed: []byte("seed")}
	for i := 0; i < 20; i++ {
		n := a.Int63()
		assert.GreaterOrEqual(t, n, int64(0))
		assert.Equal(t, n, b.Int63())
	}
	assert.Panics(t, func() { a.Seed(1) })
}
