// Copyright 2025 Certen Protocol
//
// Merkle commitment: the anchored, owner-scoped record of a root built
// by pkg/merkle's tree builder. Distinct from pkg/epoch's epoch-scoped
// root — a Commitment is the general-purpose primitive spec.md §3
// describes (identified by (owner, seed), reusable by anything that
// needs a fixed-footprint handle on an off-chain dataset, such as
// cmd/airdrop-demo's claim tree), while epoch.Epoch is the order-book-
// specific lifecycle that happens to carry its own root field directly.

package merkle

import (
	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/hashmix"
)

// Commitment is an anchored entity owned by a principal, identified by
// (owner, seed). Once Finalized, Root and LeafCount are immutable.
type Commitment struct {
	Owner     chainid.ID
	Seed      uint64
	Root      [32]byte
	LeafCount uint64
	MaxDepth  uint8
	Mixer     string
	Finalized bool
	CreatedAt int64
}

// NewCommitment creates a commitment with an initial (possibly
// placeholder) root. It is not finalized and remains mutable via
// Update until the owner calls Finalize.
func NewCommitment(owner chainid.ID, seed uint64, root [32]byte, leafCount uint64, maxDepth uint8, mixer hashmix.Mixer, createdAt int64) *Commitment {
	name := hashmix.SHA256Mixer{}.Name()
	if mixer != nil {
		name = mixer.Name()
	}
	return &Commitment{
		Owner:     owner,
		Seed:      seed,
		Root:      root,
		LeafCount: leafCount,
		MaxDepth:  maxDepth,
		Mixer:     name,
		CreatedAt: createdAt,
	}
}

// Update replaces the root, leaf count, and depth bound of a commitment
// that has not yet been finalized. Fails with ErrCommitmentFinalized
// once finalized, matching the data model's immutability invariant.
func (c *Commitment) Update(root [32]byte, leafCount uint64, maxDepth uint8) error {
	if c.Finalized {
		return ErrCommitmentFinalized
	}
	c.Root = root
	c.LeafCount = leafCount
	c.MaxDepth = maxDepth
	return nil
}

// Finalize freezes Root and LeafCount. Idempotent calls fail with
// ErrCommitmentFinalized rather than silently succeeding, so a caller
// notices a double-finalize attempt instead of assuming it was a no-op.
func (c *Commitment) Finalize() error {
	if c.Finalized {
		return ErrCommitmentFinalized
	}
	c.Finalized = true
	return nil
}

// VerifyAgainst checks a proof for leaf at index against this
// commitment's root, using its own recorded mixer and depth bound.
// Fails closed with ErrMerkleNotFinalized if the commitment has not
// been finalized — an unfinalized root is not yet a trustworthy anchor.
func (c *Commitment) VerifyAgainst(proof [][32]byte, leaf [32]byte, index uint32) (bool, error) {
	if !c.Finalized {
		return false, ErrMerkleNotFinalized
	}
	mixer, err := hashmix.ByName(c.Mixer)
	if err != nil {
		return false, err
	}
	return Verify(mixer, proof, c.Root, leaf, index, c.MaxDepth), nil
}
