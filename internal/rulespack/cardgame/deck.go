// Package cardgame is the reference GamePackRules implementation (spec
// §4.5): a trivial 52-card game used to exercise the full session pipeline,
// not a rules doctrine. Grounded structurally on the teacher's
// internal/game/roomcode.go for the crypto/rand-backed non-deterministic
// path, and on spec.md §9's typed-state design note for SimpleCardGameData.
package cardgame

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

var suits = [4]string{"S", "H", "D", "C"}
var ranks = [13]string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// fullDeck returns the 52 canonical card identifiers ("S2".."CA"), unshuffled.
func fullDeck() []string {
	deck := make([]string, 0, 52)
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, suit+rank)
		}
	}
	return deck
}

// newShuffleSource returns a seeded source when seed != nil, otherwise a
// source seeded from crypto/rand (the "non-deterministic" branch of spec
// §4.5).
func newShuffleSource(seed *int64) *rand.Rand {
	if seed != nil {
		s := uint64(*seed)
		return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
	}
	var buf [16]byte
	_, _ = crand.Read(buf[:]) // documented to never fail on supported platforms
	return rand.New(rand.NewPCG(binary.BigEndian.Uint64(buf[:8]), binary.BigEndian.Uint64(buf[8:])))
}

// shuffledDeck returns a freshly shuffled 52-card deck. seed, when non-nil,
// makes the shuffle reproducible for tests.
func shuffledDeck(seed *int64) []string {
	deck := fullDeck()
	src := newShuffleSource(seed)
	src.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}
