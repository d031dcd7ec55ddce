// Copyright 2025 Certen Protocol

package settlement

import (
	"context"
	"sync"
	"testing"

	"github.com/certen/orderbook-core/pkg/bitfield"
	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/epoch"
	"github.com/certen/orderbook-core/pkg/hashmix"
	"github.com/certen/orderbook-core/pkg/merkle"
	"github.com/certen/orderbook-core/pkg/orderbook"
	"github.com/certen/orderbook-core/pkg/orderleaf"
)

type fakeVault struct {
	mu    sync.Mutex
	moved []uint64
}

func (v *fakeVault) Transfer(ctx context.Context, from, to, mint chainid.ID, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.moved = append(v.moved, amount)
	return nil
}

type fakeReceipts struct {
	mu   sync.Mutex
	seen map[[3]uint64]bool
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{seen: make(map[[3]uint64]bool)}
}

func (r *fakeReceipts) HasReceipt(orderBook chainid.ID, makerOrderID, takerOrderID uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[[3]uint64{0, makerOrderID, takerOrderID}], nil
}

func (r *fakeReceipts) PutReceipt(ctx context.Context, rec *Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [3]uint64{0, rec.MakerOrderID, rec.TakerOrderID}
	if r.seen[key] {
		return &Error{Kind: KindReceiptAlreadyExists}
	}
	r.seen[key] = true
	return nil
}

type fixture struct {
	book        *orderbook.OrderBook
	bookID      chainid.ID
	makerEpoch  epoch.Snapshot
	takerEpoch  epoch.Snapshot
	makerBytes  []byte
	takerBytes  []byte
	makerLeaf   orderleaf.Leaf
	takerLeaf   orderleaf.Leaf
	makerProof  *merkle.InclusionProof
	takerProof  *merkle.InclusionProof
	makerChunk  *bitfield.Chunk
	takerChunk  *bitfield.Chunk
}

// buildFixture produces one finalized epoch containing exactly a bid and
// an ask leaf that cross, with valid inclusion proofs for both.
func buildFixture(t *testing.T) *fixture {
	t.Helper()

	bookID := chainid.BytesToID([]byte("book-1"))
	book, err := orderbook.NewOrderBook(
		chainid.BytesToID([]byte("authority")),
		chainid.BytesToID([]byte("base")),
		chainid.BytesToID([]byte("quote")),
		chainid.BytesToID([]byte("base-vault")),
		chainid.BytesToID([]byte("quote-vault")),
		chainid.BytesToID([]byte("fee-vault")),
		1, 30, 3600, 1, 1000,
	)
	if err != nil {
		t.Fatalf("new order book: %v", err)
	}

	bid := orderleaf.Leaf{
		Maker:      chainid.BytesToID([]byte("maker-bid")),
		OrderID:    1,
		Side:       orderleaf.SideBid,
		Price:      100,
		Amount:     10,
		EpochIndex: 0,
		OrderIndex: 0,
		CreatedAt:  1,
	}
	ask := orderleaf.Leaf{
		Maker:      chainid.BytesToID([]byte("maker-ask")),
		OrderID:    2,
		Side:       orderleaf.SideAsk,
		Price:      100,
		Amount:     6,
		EpochIndex: 0,
		OrderIndex: 1,
		CreatedAt:  2,
	}

	bidEnc := bid.Encode()
	askEnc := ask.Encode()
	mixer := hashmix.SHA256Mixer{}
	tree, err := merkle.BuildTree(mixer, [][]byte{bidEnc[:], askEnc[:]})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}

	mkProof := func(idx int) *merkle.InclusionProof {
		leafHash, err := tree.LeafHash(idx)
		if err != nil {
			t.Fatalf("leaf hash: %v", err)
		}
		path, err := tree.GenerateProof(idx)
		if err != nil {
			t.Fatalf("gen proof: %v", err)
		}
		return merkle.NewInclusionProof(mixer, leafHash, uint32(idx), tree.Root(), tree.MaxDepth(), path)
	}

	e := epoch.NewEpoch(bookID, 0, 0)
	if err := e.SubmitEpochRoot(tree.Root(), 2, 2048); err != nil {
		t.Fatalf("submit root: %v", err)
	}
	if err := e.FinalizeEpoch(10); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	snap := e.Snapshot()

	registry := SettlementRegistryOwner(bookID, 0)
	makerChunkIdx, _ := bitfield.GlobalIndex(uint64(bid.OrderIndex))
	takerChunkIdx, _ := bitfield.GlobalIndex(uint64(ask.OrderIndex))

	return &fixture{
		book:       book,
		bookID:     bookID,
		makerEpoch: snap,
		takerEpoch: snap,
		makerBytes: bidEnc[:],
		takerBytes: askEnc[:],
		makerLeaf:  bid,
		takerLeaf:  ask,
		makerProof: mkProof(0),
		takerProof: mkProof(1),
		makerChunk: bitfield.NewChunk(registry, makerChunkIdx, 0),
		takerChunk: bitfield.NewChunk(registry, takerChunkIdx, 0),
	}
}

func (f *fixture) request(vault VaultTransferer, receipts ReceiptStore, now int64) *Request {
	return &Request{
		OrderBookID:    f.bookID,
		OrderBook:      f.book,
		MakerEpoch:     f.makerEpoch,
		TakerEpoch:     f.takerEpoch,
		MakerLeafBytes: f.makerBytes,
		TakerLeafBytes: f.takerBytes,
		MakerProof:     f.makerProof,
		TakerProof:     f.takerProof,
		MakerChunk:     f.makerChunk,
		TakerChunk:     f.takerChunk,
		MakerAccount:   f.makerLeaf.Maker,
		TakerAccount:   f.takerLeaf.Maker,
		FillAmount:     6,
		FillPrice:      100,
		Now:            now,
		Vault:          vault,
		Receipts:       receipts,
	}
}

func TestVerify_Success(t *testing.T) {
	f := buildFixture(t)
	vault := &fakeVault{}
	receipts := newFakeReceipts()

	result, err := Verify(context.Background(), f.request(vault, receipts, 20))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Receipt.FillAmount != 6 {
		t.Errorf("fill amount = %d, want 6", result.Receipt.FillAmount)
	}
	// quote_volume = 6 * 100 / 1 = 600; fee = 600 * 30 / 10_000 = 1
	if result.Receipt.QuoteVolume != 600 {
		t.Errorf("quote volume = %d, want 600", result.Receipt.QuoteVolume)
	}
	if result.Receipt.FeeAmount != 1 {
		t.Errorf("fee = %d, want 1", result.Receipt.FeeAmount)
	}
	if f.book.TotalSettlements != 1 {
		t.Errorf("total settlements = %d, want 1", f.book.TotalSettlements)
	}
	set, _ := f.makerChunk.IsSet(0)
	if !set {
		t.Error("maker local bit should be set after settlement")
	}
}

// Scenario 5: settling the same maker/taker pair twice must fail the
// second time with AlreadySettled, and must not move funds twice.
func TestVerify_DoubleSettlementRejected(t *testing.T) {
	f := buildFixture(t)
	vault := &fakeVault{}
	receipts := newFakeReceipts()

	if _, err := Verify(context.Background(), f.request(vault, receipts, 20)); err != nil {
		t.Fatalf("first verify: %v", err)
	}

	_, err := Verify(context.Background(), f.request(vault, receipts, 21))
	if err == nil {
		t.Fatal("expected second settlement to fail")
	}
	settlementErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if settlementErr.Kind != KindAlreadySettled {
		t.Errorf("kind = %s, want %s", settlementErr.Kind, KindAlreadySettled)
	}
	if len(vault.moved) != 3 {
		t.Errorf("expected exactly the first settlement's 3 transfers to have landed, got %d", len(vault.moved))
	}
}

// Scenario 6: a proof for the wrong leaf (the taker's proof presented
// for the maker's leaf) must fail with InvalidMerkleProof and leave
// every bit unset.
func TestVerify_ProofMismatchRejected(t *testing.T) {
	f := buildFixture(t)
	vault := &fakeVault{}
	receipts := newFakeReceipts()

	// Swap in the taker's proof for the maker's leaf.
	req := f.request(vault, receipts, 20)
	req.MakerProof = f.takerProof

	_, err := Verify(context.Background(), req)
	if err == nil {
		t.Fatal("expected proof mismatch to fail")
	}
	settlementErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if settlementErr.Kind != KindInvalidMerkleProof {
		t.Errorf("kind = %s, want %s", settlementErr.Kind, KindInvalidMerkleProof)
	}
	set, _ := f.makerChunk.IsSet(0)
	if set {
		t.Error("maker bit must remain unset when the proof check fails")
	}
	if len(vault.moved) != 0 {
		t.Error("no funds should move when the proof check fails")
	}
}

func TestVerify_EpochNotFinalizedRejected(t *testing.T) {
	f := buildFixture(t)
	f.makerEpoch.Finalized = false

	_, err := Verify(context.Background(), f.request(&fakeVault{}, newFakeReceipts(), 20))
	settlementErr, ok := err.(*Error)
	if !ok || settlementErr.Kind != KindEpochNotFinalized {
		t.Fatalf("expected EpochNotFinalized, got %v", err)
	}
}

func TestVerify_ExpiredOrderRejected(t *testing.T) {
	bookID := chainid.BytesToID([]byte("book-1"))
	book, err := orderbook.NewOrderBook(
		chainid.BytesToID([]byte("authority")),
		chainid.BytesToID([]byte("base")),
		chainid.BytesToID([]byte("quote")),
		chainid.BytesToID([]byte("base-vault")),
		chainid.BytesToID([]byte("quote-vault")),
		chainid.BytesToID([]byte("fee-vault")),
		1, 30, 3600, 1, 1000,
	)
	if err != nil {
		t.Fatalf("new order book: %v", err)
	}

	bid := orderleaf.Leaf{
		Maker: chainid.BytesToID([]byte("maker-bid")), OrderID: 1,
		Side: orderleaf.SideBid, Price: 100, Amount: 10,
		EpochIndex: 0, OrderIndex: 0, CreatedAt: 1, ExpiresAt: 5,
	}
	ask := orderleaf.Leaf{
		Maker: chainid.BytesToID([]byte("maker-ask")), OrderID: 2,
		Side: orderleaf.SideAsk, Price: 100, Amount: 6,
		EpochIndex: 0, OrderIndex: 1, CreatedAt: 2,
	}
	bidEnc := bid.Encode()
	askEnc := ask.Encode()

	mixer := hashmix.SHA256Mixer{}
	tree, err := merkle.BuildTree(mixer, [][]byte{bidEnc[:], askEnc[:]})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	mkProof := func(idx int) *merkle.InclusionProof {
		leafHash, err := tree.LeafHash(idx)
		if err != nil {
			t.Fatalf("leaf hash: %v", err)
		}
		path, err := tree.GenerateProof(idx)
		if err != nil {
			t.Fatalf("gen proof: %v", err)
		}
		return merkle.NewInclusionProof(mixer, leafHash, uint32(idx), tree.Root(), tree.MaxDepth(), path)
	}

	e := epoch.NewEpoch(bookID, 0, 0)
	if err := e.SubmitEpochRoot(tree.Root(), 2, 2048); err != nil {
		t.Fatalf("submit root: %v", err)
	}
	if err := e.FinalizeEpoch(10); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	snap := e.Snapshot()

	registry := SettlementRegistryOwner(bookID, 0)

	req := &Request{
		OrderBookID:    bookID,
		OrderBook:      book,
		MakerEpoch:     snap,
		TakerEpoch:     snap,
		MakerLeafBytes: bidEnc[:],
		TakerLeafBytes: askEnc[:],
		MakerProof:     mkProof(0),
		TakerProof:     mkProof(1),
		MakerChunk:     bitfield.NewChunk(registry, 0, 0),
		TakerChunk:     bitfield.NewChunk(registry, 0, 0),
		MakerAccount:   bid.Maker,
		TakerAccount:   ask.Maker,
		FillAmount:     6,
		FillPrice:      100,
		Now:            20, // past the bid's expires_at=5
		Vault:          &fakeVault{},
		Receipts:       newFakeReceipts(),
	}

	_, err = Verify(context.Background(), req)
	settlementErr, ok := err.(*Error)
	if !ok || settlementErr.Kind != KindOrderExpired {
		t.Fatalf("expected OrderExpired, got %v", err)
	}
}
