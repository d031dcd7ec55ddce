// Copyright 2025 Certen Protocol

package merkle

import (
	"testing"

	"github.com/certen/orderbook-core/pkg/hashmix"
)

func TestCommitment_LifecycleImmutableAfterFinalize(t *testing.T) {
	tree, err := BuildTree(nil, [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	c := NewCommitment([32]byte{0xAA}, 7, tree.Root(), uint64(tree.LeafCount()), tree.MaxDepth(), hashmix.SHA256Mixer{}, 1700000000)
	if c.Finalized {
		t.Fatal("new commitment must not be finalized")
	}

	newRoot := [32]byte{9, 9, 9}
	if err := c.Update(newRoot, 5, 3); err != nil {
		t.Fatalf("update before finalize should succeed: %v", err)
	}
	if c.Root != newRoot {
		t.Fatalf("update did not persist new root")
	}

	if err := c.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := c.Finalize(); err != ErrCommitmentFinalized {
		t.Errorf("expected ErrCommitmentFinalized on double finalize, got %v", err)
	}
	if err := c.Update([32]byte{1}, 1, 1); err != ErrCommitmentFinalized {
		t.Errorf("expected ErrCommitmentFinalized on post-finalize update, got %v", err)
	}
}

func TestCommitment_VerifyAgainstRequiresFinalized(t *testing.T) {
	tree, err := BuildTree(nil, [][]byte{[]byte("x"), []byte("y")})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	c := NewCommitment([32]byte{1}, 1, tree.Root(), 2, tree.MaxDepth(), nil, 1)

	leaf, err := tree.LeafHash(0)
	if err != nil {
		t.Fatalf("LeafHash: %v", err)
	}
	proof, err := tree.GenerateProof(0)
	if err != nil {
		t.Fatalf("GenerateProof: %v", err)
	}

	if _, err := c.VerifyAgainst(proof, leaf, 0); err != ErrMerkleNotFinalized {
		t.Errorf("expected ErrMerkleNotFinalized before finalize, got %v", err)
	}

	if err := c.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	ok, err := c.VerifyAgainst(proof, leaf, 0)
	if err != nil {
		t.Fatalf("VerifyAgainst: %v", err)
	}
	if !ok {
		t.Fatal("expected proof to verify against finalized commitment")
	}
}
