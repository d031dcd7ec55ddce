// Copyright 2025 Certen Protocol
//
// Merkle Tree Implementation for Order-Leaf Commitments
//
// This implementation provides:
// - Binary Merkle tree construction from raw leaf blobs, with leaf/node
//   domain separation (see pkg/hashmix)
// - Inclusion proof generation for any leaf, as a plain ordered sibling
//   list — the combining order is derived from the leaf's positional
//   index, not stored alongside each sibling (see Verify in verify.go)
// - Thread-safe operations for concurrent epoch building

package merkle

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/certen/orderbook-core/pkg/hashmix"
)

// Common errors
var (
	ErrEmptyTree    = errors.New("cannot build tree from empty leaves")
	ErrLeafNotFound = errors.New("leaf not found in tree")
	ErrNotBuilt     = errors.New("tree not built")
)

// Tree represents a Merkle tree over raw leaf blobs.
type Tree struct {
	mu     sync.RWMutex
	mixer  hashmix.Mixer
	blobs  [][]byte   // original leaf blobs, as supplied
	levels [][][32]byte // level 0 = leaf hashes, last level = [root]
	root   [32]byte
	built  bool
}

// NewTree creates a new empty Merkle tree using the given mixer. A nil
// mixer defaults to hashmix.SHA256Mixer, matching the reference mixer.
func NewTree(mixer hashmix.Mixer) *Tree {
	if mixer == nil {
		mixer = hashmix.SHA256Mixer{}
	}
	return &Tree{mixer: mixer}
}

// BuildTree builds a Merkle tree from the given ordered leaf blobs. Each
// blob is hashed with the leaf domain-separation prefix before folding.
// A nil mixer defaults to hashmix.SHA256Mixer.
func BuildTree(mixer hashmix.Mixer, blobs [][]byte) (*Tree, error) {
	if len(blobs) == 0 {
		return nil, ErrEmptyTree
	}
	if mixer == nil {
		mixer = hashmix.SHA256Mixer{}
	}

	t := &Tree{
		mixer: mixer,
		blobs: make([][]byte, len(blobs)),
	}
	for i, b := range blobs {
		t.blobs[i] = append([]byte(nil), b...)
	}

	if err := t.build(); err != nil {
		return nil, err
	}
	return t, nil
}

// leafHash computes H(0x00 || blob).
func (t *Tree) leafHash(blob []byte) [32]byte {
	buf := make([]byte, 0, len(blob)+1)
	buf = append(buf, hashmix.LeafPrefix)
	buf = append(buf, blob...)
	return t.mixer.Sum(buf)
}

// nodeHash computes H(0x01 || left || right).
func (t *Tree) nodeHash(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 65)
	buf = append(buf, hashmix.NodePrefix)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return t.mixer.Sum(buf)
}

// build constructs the tree level by level from t.blobs. Odd-length
// levels duplicate the last node before hashing (spec §4.C), never
// promoting it unhashed.
func (t *Tree) build() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.blobs) == 0 {
		return ErrEmptyTree
	}

	leaves := make([][32]byte, len(t.blobs))
	for i, blob := range t.blobs {
		leaves[i] = t.leafHash(blob)
	}

	t.levels = [][][32]byte{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([][32]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, t.nodeHash(current[i], current[i+1]))
			} else {
				next = append(next, t.nodeHash(current[i], current[i]))
			}
		}
		t.levels = append(t.levels, next)
		current = next
	}

	t.root = current[0]
	t.built = true
	return nil
}

// Root returns the Merkle root. Callers must check LeafCount()/Built()
// first if they need to distinguish an empty tree from a zero root.
func (t *Tree) Root() [32]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// RootHex returns the Merkle root as a hex string.
func (t *Tree) RootHex() string {
	root := t.Root()
	return hex.EncodeToString(root[:])
}

// Built reports whether the tree has been constructed.
func (t *Tree) Built() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.built
}

// LeafCount returns the number of leaves in the tree.
func (t *Tree) LeafCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.blobs)
}

// MaxDepth returns the proof length for this tree's shape — the number
// of levels above the leaves. Commitments persist this as the upper
// bound a verifier checks a supplied proof against (spec §3).
func (t *Tree) MaxDepth() uint8 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.levels) == 0 {
		return 0
	}
	return uint8(len(t.levels) - 1)
}

// Mixer returns the hash mixer this tree was built with.
func (t *Tree) Mixer() hashmix.Mixer {
	return t.mixer
}

// LeafHash returns the domain-separated hash of the leaf at index.
func (t *Tree) LeafHash(index int) ([32]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.built {
		return [32]byte{}, ErrNotBuilt
	}
	if index < 0 || index >= len(t.levels[0]) {
		return [32]byte{}, fmt.Errorf("leaf index %d out of range [0, %d)", index, len(t.levels[0]))
	}
	return t.levels[0][index], nil
}

// GenerateProof produces the ordered sibling list proving inclusion of
// the leaf at index. Unlike a position-tagged proof, the combining order
// at each step is recovered purely from index's bits by Verify — this
// proof is just the bottom-to-top list of sibling hashes.
func (t *Tree) GenerateProof(index int) ([][32]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.built {
		return nil, ErrNotBuilt
	}
	if index < 0 || index >= len(t.levels[0]) {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", index, len(t.levels[0]))
	}

	proof := make([][32]byte, 0, len(t.levels)-1)
	current := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]

		var sibling [32]byte
		if current%2 == 0 {
			if current+1 < len(nodes) {
				sibling = nodes[current+1]
			} else {
				sibling = nodes[current] // odd tail: duplicated self
			}
		} else {
			sibling = nodes[current-1]
		}

		proof = append(proof, sibling)
		current /= 2
	}

	return proof, nil
}

// GenerateProofForBlob looks up a blob by value and generates its proof,
// returning the index it was found at.
func (t *Tree) GenerateProofForBlob(blob []byte) ([][32]byte, int, error) {
	t.mu.RLock()
	index := -1
	for i, b := range t.blobs {
		if bytes.Equal(b, blob) {
			index = i
			break
		}
	}
	t.mu.RUnlock()

	if index == -1 {
		return nil, 0, ErrLeafNotFound
	}
	proof, err := t.GenerateProof(index)
	return proof, index, err
}
