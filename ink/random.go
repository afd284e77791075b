// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ink

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
	"pgregory.net/rand"
)

// nextRandom draws the next value of the RANDOM sequence from the explicit
// (seed, previousRandom) state. The global RNG is never consulted, so runs
// replay identically for a fixed SEED_RANDOM.
func nextRandom(storySeed, previousRandom int) int {
	r := rand.New(uint64(int64(storySeed) + int64(previousRandom)))
	return int(r.Uint32() & 0x7fffffff)
}

// sequenceHash derives a stable 32-bit key from the path of a shuffle
// sequence, so shuffles keep their order across sessions and platforms.
func sequenceHash(seqPathStr string) int {
	sum := sha3.Sum256([]byte(seqPathStr))
	return int(binary.BigEndian.Uint32(sum[:4]) & 0x7fffffff)
}

// shuffleIndex deterministically picks the element for one iteration of a
// shuffle sequence. The same shuffle order is generated for a full loop
// through the sequence, keyed by the sequence's location, the loop count and
// the story seed.
func shuffleIndex(seqPathStr string, numElements, seqCount, storySeed int) int {
	loopIndex := seqCount / numElements
	iterationIndex := seqCount % numElements

	randomSeed := sequenceHash(seqPathStr) + loopIndex + storySeed
	r := rand.New(uint64(randomSeed))

	unpickedIndices := make([]int, numElements)
	for i := range unpickedIndices {
		unpickedIndices[i] = i
	}

	for i := 0; i <= iterationIndex; i++ {
		chosen := int(r.Uint32()&0x7fffffff) % len(unpickedIndices)
		chosenIndex := unpickedIndices[chosen]
		if i == iterationIndex {
			return chosenIndex
		}
		unpickedIndices = append(unpickedIndices[:chosen], unpickedIndices[chosen+1:]...)
	}

	return 0
}
