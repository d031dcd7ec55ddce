// Copyright 2025 Certen Protocol
//
// airdrop-demo is a thin, self-contained composition of pkg/bitfield,
// pkg/merkle, and pkg/ledgerstore: it commits a fixed recipient list to
// a merkle root, lets each recipient claim exactly once against a
// bitfield registry, and persists every step through pkg/ledgerstore
// backed by an in-memory KV store. Grounded on cmd/bls-zk-setup/main.go's
// shape: a small, single-purpose CLI with no server loop.
package main

import (
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/certen/orderbook-core/pkg/bitfield"
	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/hashmix"
	"github.com/certen/orderbook-core/pkg/kvdb"
	"github.com/certen/orderbook-core/pkg/ledgerstore"
	"github.com/certen/orderbook-core/pkg/merkle"
)

// recipient is one entitlement in the airdrop list, canonically encoded
// as sha256(address || amount_le) before being fed to the merkle tree —
// the leaf content is deliberately separate from the order-book domain's
// orderleaf.Leaf encoding, since an airdrop entitlement has no side,
// epoch, or expiry.
type recipient struct {
	Address chainid.ID
	Amount  uint64
}

func (r recipient) leafInput() []byte {
	var amt [8]byte
	for i := 0; i < 8; i++ {
		amt[i] = byte(r.Amount >> (8 * i))
	}
	buf := append(append([]byte{}, r.Address.Bytes()...), amt[:]...)
	return buf
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	recipients := []recipient{
		{Address: chainid.BytesToID([]byte("alice")), Amount: 1_000},
		{Address: chainid.BytesToID([]byte("bob")), Amount: 2_500},
		{Address: chainid.BytesToID([]byte("carol")), Amount: 750},
	}

	leaves := make([][]byte, len(recipients))
	for i, r := range recipients {
		sum := sha256.Sum256(r.leafInput())
		leaves[i] = sum[:]
	}

	mixer := hashmix.SHA256Mixer{}
	tree, err := merkle.BuildTree(mixer, leaves)
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}

	owner := chainid.BytesToID([]byte("airdrop-demo"))
	now := time.Now().Unix()
	commitment := merkle.NewCommitment(owner, 0, tree.Root(), uint64(len(leaves)), tree.MaxDepth(), mixer, now)
	if err := commitment.Finalize(); err != nil {
		return fmt.Errorf("finalize commitment: %w", err)
	}

	db := dbm.NewMemDB()
	ledger := ledgerstore.NewStore(kvdb.NewKVAdapter(db))
	if err := ledger.PutCommitment(commitment); err != nil {
		return fmt.Errorf("persist commitment: %w", err)
	}

	claims, err := bitfield.NewRegistry(owner, bitfield.ChunkBits)
	if err != nil {
		return fmt.Errorf("new claims registry: %w", err)
	}
	if _, err := claims.MaterializeChunk(0); err != nil {
		return fmt.Errorf("materialize claims chunk: %w", err)
	}
	if err := ledger.PutRegistry(claims); err != nil {
		return fmt.Errorf("persist claims registry: %w", err)
	}
	chunk := bitfield.NewChunk(owner, 0, now)

	fmt.Printf("committed %d recipients, root=%x\n", len(recipients), tree.Root())

	for i, r := range recipients {
		leaf, err := tree.LeafHash(i)
		if err != nil {
			return fmt.Errorf("leaf hash %d: %w", i, err)
		}
		proof, err := tree.GenerateProof(i)
		if err != nil {
			return fmt.Errorf("generate proof %d: %w", i, err)
		}
		ok, err := commitment.VerifyAgainst(proof, leaf, uint32(i))
		if err != nil {
			return fmt.Errorf("verify proof %d: %w", i, err)
		}
		if !ok {
			return fmt.Errorf("proof %d failed to verify against the committed root", i)
		}

		newlyClaimed, err := chunk.Set(uint32(i))
		if err != nil {
			return fmt.Errorf("claim bit %d: %w", i, err)
		}
		if !newlyClaimed {
			return fmt.Errorf("recipient %d already claimed", i)
		}
		fmt.Printf("  claimed: recipient=%s amount=%d proof_ok=%t\n", r.Address.Hex(), r.Amount, ok)
	}

	if err := ledger.PutChunk(chunk); err != nil {
		return fmt.Errorf("persist claims chunk: %w", err)
	}

	// A second claim attempt by the same recipient must report
	// newlySet=false: the bitfield enforces at-most-once the same way
	// settlement does, without raising an error of its own.
	if newlyClaimed, err := chunk.Set(0); err != nil {
		return fmt.Errorf("re-claim bit 0: %w", err)
	} else if newlyClaimed {
		return fmt.Errorf("expected double-claim to be rejected")
	}
	fmt.Println("double-claim correctly rejected")

	return nil
}
