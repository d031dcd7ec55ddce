// Copyright 2025 Certen Protocol

package merkle

import (
	"crypto/subtle"

	"github.com/certen/orderbook-core/pkg/hashmix"
)

// Verify checks a Merkle inclusion proof against a stored root. It is
// stateless and requires no access to the tree that produced the proof —
// this is the function an on-chain settlement handler calls.
//
// Algorithm: acc starts as leaf. For each sibling in proof, the least
// significant bit of index selects combining order (0: acc is left,
// sibling is right; 1: sibling is left, acc is right), then index is
// shifted right by one. An empty proof succeeds only when leaf == root
// (a single-leaf tree). Index bits beyond len(proof) are never consumed,
// so proofs shorter than 32 levels are unaffected by the unused high
// bits of index.
//
// maxDepth bounds proof length so a verifier never walks an arbitrarily
// long attacker-supplied proof; it is the value persisted on the
// commitment at finalization time (Tree.MaxDepth).
func Verify(mixer hashmix.Mixer, proof [][32]byte, root [32]byte, leaf [32]byte, index uint32, maxDepth uint8) bool {
	if mixer == nil {
		mixer = hashmix.SHA256Mixer{}
	}
	if len(proof) > int(maxDepth) {
		return false
	}

	if len(proof) == 0 {
		return subtle.ConstantTimeCompare(leaf[:], root[:]) == 1
	}

	acc := leaf
	idx := index
	for _, sibling := range proof {
		var buf [65]byte
		buf[0] = hashmix.NodePrefix
		if idx&1 == 0 {
			copy(buf[1:33], acc[:])
			copy(buf[33:65], sibling[:])
		} else {
			copy(buf[1:33], sibling[:])
			copy(buf[33:65], acc[:])
		}
		acc = mixer.Sum(buf[:])
		idx >>= 1
	}

	return subtle.ConstantTimeCompare(acc[:], root[:]) == 1
}
