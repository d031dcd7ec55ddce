// Copyright 2025 Certen Protocol
//
// Portable Inclusion Proof
//
// InclusionProof is the wire-transportable form of a Merkle proof: a
// leaf, its positional index, the sibling path, and the root it should
// resolve to. It can be independently re-verified by any holder without
// trusting the cranker that produced it — this is what pkg/apiserver
// hands back for any order whose epoch tree has been built and what
// pkg/settlement consumes on
// the verifier side.

package merkle

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/certen/orderbook-core/pkg/hashmix"
)

// InclusionProof is the hex-encoded, JSON-friendly form of a proof
// produced by Tree.GenerateProof.
type InclusionProof struct {
	Leaf     string   `json:"leaf"`      // hex-encoded 32-byte leaf hash
	Index    uint32   `json:"index"`     // positional index within the tree
	Root     string   `json:"root"`      // hex-encoded 32-byte root
	MaxDepth uint8    `json:"max_depth"` // proof-length bound from the commitment
	Mixer    string   `json:"mixer"`     // hashmix.Mixer.Name() used to build the tree
	Path     []string `json:"path"`      // ordered sibling hashes, hex-encoded
}

// NewInclusionProof builds the wire form of a proof from its binary
// parts, as returned by Tree.GenerateProof/Tree.LeafHash/Tree.Root.
func NewInclusionProof(mixer hashmix.Mixer, leaf [32]byte, index uint32, root [32]byte, maxDepth uint8, path [][32]byte) *InclusionProof {
	p := &InclusionProof{
		Leaf:     hex.EncodeToString(leaf[:]),
		Index:    index,
		Root:     hex.EncodeToString(root[:]),
		MaxDepth: maxDepth,
		Mixer:    mixer.Name(),
		Path:     make([]string, len(path)),
	}
	for i, s := range path {
		p.Path[i] = hex.EncodeToString(s[:])
	}
	return p
}

// Decode parses the hex fields back into their binary form.
func (p *InclusionProof) Decode() (leaf [32]byte, root [32]byte, path [][32]byte, err error) {
	leafB, err := mustHex32(p.Leaf, "proof.leaf")
	if err != nil {
		return leaf, root, nil, err
	}
	rootB, err := mustHex32(p.Root, "proof.root")
	if err != nil {
		return leaf, root, nil, err
	}
	copy(leaf[:], leafB)
	copy(root[:], rootB)

	path = make([][32]byte, len(p.Path))
	for i, s := range p.Path {
		sb, err := mustHex32(s, fmt.Sprintf("proof.path[%d]", i))
		if err != nil {
			return leaf, root, nil, err
		}
		copy(path[i][:], sb)
	}
	return leaf, root, path, nil
}

// Validate decodes the proof and checks it against its own embedded
// root using the named mixer (fail-closed: an unrecognized mixer name
// is rejected rather than silently falling back to SHA256).
func (p *InclusionProof) Validate() error {
	mixer, err := hashmix.ByName(p.Mixer)
	if err != nil {
		return err
	}
	leaf, root, path, err := p.Decode()
	if err != nil {
		return err
	}
	if !Verify(mixer, path, root, leaf, p.Index, p.MaxDepth) {
		return fmt.Errorf("merkle proof does not resolve to the embedded root")
	}
	return nil
}

// ToJSON serializes the proof.
func (p *InclusionProof) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// InclusionProofFromJSON deserializes a proof.
func InclusionProofFromJSON(data []byte) (*InclusionProof, error) {
	var p InclusionProof
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// mustHex32 validates that a hex string decodes to exactly 32 bytes.
func mustHex32(s string, label string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%s: empty", label)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid hex: %w", label, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%s: expected 32 bytes, got %d", label, len(b))
	}
	return b, nil
}
