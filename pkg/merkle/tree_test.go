// Copyright 2025 Certen Protocol
//
// Merkle Tree Tests

package merkle

import (
	"bytes"
	"testing"

	"github.com/certen/orderbook-core/pkg/hashmix"
)

func TestBuildTree_SingleLeaf(t *testing.T) {
	tree, err := BuildTree(nil, [][]byte{[]byte("test data")})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	leaf, err := tree.LeafHash(0)
	if err != nil {
		t.Fatalf("failed to get leaf hash: %v", err)
	}

	// Single leaf tree: root equals the leaf hash
	root := tree.Root()
	if !bytes.Equal(root[:], leaf[:]) {
		t.Errorf("single leaf root mismatch: got %x, want %x", root, leaf)
	}

	if tree.LeafCount() != 1 {
		t.Errorf("leaf count mismatch: got %d, want 1", tree.LeafCount())
	}
	if tree.MaxDepth() != 0 {
		t.Errorf("max depth mismatch: got %d, want 0", tree.MaxDepth())
	}
}

func TestBuildTree_TwoLeaves(t *testing.T) {
	mixer := hashmix.SHA256Mixer{}
	tree, err := BuildTree(mixer, [][]byte{[]byte("leaf 1"), []byte("leaf 2")})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	leaf0, _ := tree.LeafHash(0)
	leaf1, _ := tree.LeafHash(1)

	buf := append([]byte{hashmix.NodePrefix}, leaf0[:]...)
	buf = append(buf, leaf1[:]...)
	expectedRoot := mixer.Sum(buf)

	root := tree.Root()
	if !bytes.Equal(root[:], expectedRoot[:]) {
		t.Errorf("two leaf root mismatch: got %x, want %x", root, expectedRoot)
	}
}

func TestBuildTree_FourLeaves(t *testing.T) {
	blobs := make([][]byte, 4)
	for i := range blobs {
		blobs[i] = []byte{byte(i)}
	}

	tree, err := BuildTree(nil, blobs)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	if tree.LeafCount() != 4 {
		t.Errorf("leaf count mismatch: got %d, want 4", tree.LeafCount())
	}
	if tree.MaxDepth() != 2 {
		t.Errorf("max depth mismatch: got %d, want 2", tree.MaxDepth())
	}
}

func TestBuildTree_OddLeaves(t *testing.T) {
	blobs := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	tree, err := BuildTree(nil, blobs)
	if err != nil {
		t.Fatalf("failed to build tree with odd leaves: %v", err)
	}

	if tree.LeafCount() != 3 {
		t.Errorf("leaf count mismatch: got %d, want 3", tree.LeafCount())
	}

	// All three indices must verify against the root (scenario 3).
	root := tree.Root()
	for i := 0; i < 3; i++ {
		leaf, err := tree.LeafHash(i)
		if err != nil {
			t.Fatalf("leaf %d: %v", i, err)
		}
		proof, err := tree.GenerateProof(i)
		if err != nil {
			t.Fatalf("leaf %d: %v", i, err)
		}
		if !Verify(tree.Mixer(), proof, root, leaf, uint32(i), tree.MaxDepth()) {
			t.Errorf("leaf %d: proof did not verify", i)
		}
	}
}

func TestGenerateProof_TwoLeaves(t *testing.T) {
	tree, err := BuildTree(nil, [][]byte{[]byte("leaf 1"), []byte("leaf 2")})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	root := tree.Root()

	proof0, err := tree.GenerateProof(0)
	if err != nil {
		t.Fatalf("failed to generate proof for leaf 0: %v", err)
	}
	if len(proof0) != 1 {
		t.Errorf("proof path length mismatch: got %d, want 1", len(proof0))
	}

	leaf0, _ := tree.LeafHash(0)
	leaf1, _ := tree.LeafHash(1)

	if !Verify(tree.Mixer(), proof0, root, leaf0, 0, tree.MaxDepth()) {
		t.Error("proof verification failed for valid proof at index 0")
	}
	// Same proof, wrong index, must fail (spec §8 round-trip property).
	if Verify(tree.Mixer(), proof0, root, leaf0, 1, tree.MaxDepth()) {
		t.Error("proof verified at the wrong index")
	}

	proof1, err := tree.GenerateProof(1)
	if err != nil {
		t.Fatalf("failed to generate proof for leaf 1: %v", err)
	}
	if !Verify(tree.Mixer(), proof1, root, leaf1, 1, tree.MaxDepth()) {
		t.Error("proof verification failed for valid proof at index 1")
	}
}

func TestGenerateProof_FourLeaves(t *testing.T) {
	blobs := make([][]byte, 4)
	for i := range blobs {
		blobs[i] = []byte{byte(i)}
	}

	tree, err := BuildTree(nil, blobs)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	root := tree.Root()

	for i := 0; i < 4; i++ {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			t.Fatalf("failed to generate proof for leaf %d: %v", i, err)
		}
		if len(proof) != 2 {
			t.Errorf("leaf %d: proof path length mismatch: got %d, want 2", i, len(proof))
		}

		leaf, _ := tree.LeafHash(i)
		if !Verify(tree.Mixer(), proof, root, leaf, uint32(i), tree.MaxDepth()) {
			t.Errorf("leaf %d: proof verification failed", i)
		}
	}
}

func TestGenerateProof_LargeTree(t *testing.T) {
	blobs := make([][]byte, 100)
	for i := range blobs {
		blobs[i] = []byte{byte(i), byte(i >> 8)}
	}

	tree, err := BuildTree(nil, blobs)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	root := tree.Root()

	for _, i := range []int{0, 1, 49, 50, 99} {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			t.Fatalf("failed to generate proof for leaf %d: %v", i, err)
		}
		leaf, _ := tree.LeafHash(i)
		if !Verify(tree.Mixer(), proof, root, leaf, uint32(i), tree.MaxDepth()) {
			t.Errorf("leaf %d: proof verification failed", i)
		}
	}
}

func TestVerify_InvalidProof(t *testing.T) {
	tree, err := BuildTree(nil, [][]byte{[]byte("leaf 1"), []byte("leaf 2")})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	root := tree.Root()
	proof, err := tree.GenerateProof(0)
	if err != nil {
		t.Fatalf("failed to generate proof: %v", err)
	}

	wrongLeaf := hashmix.SHA256Mixer{}.Sum([]byte("wrong leaf"))
	if Verify(tree.Mixer(), proof, root, wrongLeaf, 0, tree.MaxDepth()) {
		t.Error("proof should not verify for wrong leaf")
	}

	wrongRoot := hashmix.SHA256Mixer{}.Sum([]byte("wrong root"))
	leaf0, _ := tree.LeafHash(0)
	if Verify(tree.Mixer(), proof, wrongRoot, leaf0, 0, tree.MaxDepth()) {
		t.Error("proof should not verify for wrong root")
	}
}

func TestVerify_MaxDepthExceeded(t *testing.T) {
	tree, err := BuildTree(nil, [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	root := tree.Root()
	proof, _ := tree.GenerateProof(0)
	leaf0, _ := tree.LeafHash(0)

	// maxDepth shorter than the proof must reject, even though the
	// combining math would otherwise succeed.
	if Verify(tree.Mixer(), proof, root, leaf0, 0, uint8(len(proof)-1)) {
		t.Error("verify should reject a proof longer than max_depth")
	}
}

func TestVerify_EmptyProofSingleLeaf(t *testing.T) {
	// Spec §4.B edge case: empty proof succeeds only when leaf == root.
	mixer := hashmix.SHA256Mixer{}
	leaf := mixer.Sum([]byte{hashmix.LeafPrefix})
	if !Verify(mixer, nil, leaf, leaf, 0, 0) {
		t.Error("empty proof should succeed when leaf == root")
	}

	other := mixer.Sum([]byte("different"))
	if Verify(mixer, nil, other, leaf, 0, 0) {
		t.Error("empty proof should fail when leaf != root")
	}
}

func TestGenerateProofForBlob(t *testing.T) {
	tree, err := BuildTree(nil, [][]byte{[]byte("leaf 1"), []byte("leaf 2")})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	proof, index, err := tree.GenerateProofForBlob([]byte("leaf 2"))
	if err != nil {
		t.Fatalf("failed to generate proof by blob: %v", err)
	}
	if index != 1 {
		t.Errorf("index mismatch: got %d, want 1", index)
	}

	leaf1, _ := tree.LeafHash(1)
	if !Verify(tree.Mixer(), proof, tree.Root(), leaf1, uint32(index), tree.MaxDepth()) {
		t.Error("proof verification failed")
	}

	if _, _, err := tree.GenerateProofForBlob([]byte("missing")); err != ErrLeafNotFound {
		t.Errorf("expected ErrLeafNotFound, got %v", err)
	}
}

func TestInclusionProofRoundTrip(t *testing.T) {
	tree, err := BuildTree(nil, [][]byte{[]byte("leaf 1"), []byte("leaf 2"), []byte("leaf 3")})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	leaf, _ := tree.LeafHash(2)
	proof, err := tree.GenerateProof(2)
	if err != nil {
		t.Fatalf("failed to generate proof: %v", err)
	}

	wire := NewInclusionProof(tree.Mixer(), leaf, 2, tree.Root(), tree.MaxDepth(), proof)
	data, err := wire.ToJSON()
	if err != nil {
		t.Fatalf("failed to serialize proof: %v", err)
	}

	restored, err := InclusionProofFromJSON(data)
	if err != nil {
		t.Fatalf("failed to deserialize proof: %v", err)
	}

	if err := restored.Validate(); err != nil {
		t.Errorf("restored proof failed to validate: %v", err)
	}
}

func TestEmptyTree(t *testing.T) {
	_, err := BuildTree(nil, [][]byte{})
	if err != ErrEmptyTree {
		t.Errorf("expected ErrEmptyTree, got %v", err)
	}
}
