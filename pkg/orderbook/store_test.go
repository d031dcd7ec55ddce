// Copyright 2025 Certen Protocol

package orderbook

import (
	"testing"

	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/epoch"
	"github.com/certen/orderbook-core/pkg/orderleaf"
)

func newTestBook(t *testing.T) *OrderBook {
	t.Helper()
	book, err := NewOrderBook(
		chainid.BytesToID([]byte("authority")),
		chainid.BytesToID([]byte("base")),
		chainid.BytesToID([]byte("quote")),
		chainid.BytesToID([]byte("base-vault")),
		chainid.BytesToID([]byte("quote-vault")),
		chainid.BytesToID([]byte("fee-vault")),
		1,     // tick_size
		30,    // fee_bps
		3600,  // settlement_ttl_seconds
		1,     // price_scale
		1000,  // cleanup_reward
	)
	if err != nil {
		t.Fatalf("failed to create order book: %v", err)
	}
	return book
}

func TestMatch_PriceTimeCross(t *testing.T) {
	book := newTestBook(t)
	store, err := NewStore(book, nil, 1000)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	maker := chainid.BytesToID([]byte("maker"))

	// Scenario 4: Bid{price=100,amount=10,created_at=1}, Ask{price=100,amount=6,created_at=2}.
	bid, err := store.AddOrder(maker, orderleaf.SideBid, 100, 10, 1, 0)
	if err != nil {
		t.Fatalf("add bid: %v", err)
	}
	ask, err := store.AddOrder(maker, orderleaf.SideAsk, 100, 6, 2, 0)
	if err != nil {
		t.Fatalf("add ask: %v", err)
	}

	results := store.Match(100)
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}

	m := results[0]
	if m.Maker.Leaf.OrderID != bid.Leaf.OrderID {
		t.Errorf("maker mismatch: got order_id=%d, want bid order_id=%d", m.Maker.Leaf.OrderID, bid.Leaf.OrderID)
	}
	if m.Taker.Leaf.OrderID != ask.Leaf.OrderID {
		t.Errorf("taker mismatch: got order_id=%d, want ask order_id=%d", m.Taker.Leaf.OrderID, ask.Leaf.OrderID)
	}
	if m.FillAmount != 6 {
		t.Errorf("fill_amount mismatch: got %d, want 6", m.FillAmount)
	}
	if m.FillPrice != 100 {
		t.Errorf("fill_price mismatch: got %d, want 100", m.FillPrice)
	}
	if bid.Remaining != 4 {
		t.Errorf("bid remaining mismatch: got %d, want 4", bid.Remaining)
	}
	if ask.Remaining != 0 {
		t.Errorf("ask remaining mismatch: got %d, want 0", ask.Remaining)
	}
}

func TestMatch_NoCross(t *testing.T) {
	book := newTestBook(t)
	store, err := NewStore(book, nil, 1000)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	maker := chainid.BytesToID([]byte("maker"))

	if _, err := store.AddOrder(maker, orderleaf.SideBid, 99, 10, 1, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddOrder(maker, orderleaf.SideAsk, 100, 10, 2, 0); err != nil {
		t.Fatal(err)
	}

	if results := store.Match(100); len(results) != 0 {
		t.Errorf("expected no matches when bid < ask, got %d", len(results))
	}
}

func TestMatch_SkipsExpiredOrders(t *testing.T) {
	book := newTestBook(t)
	store, err := NewStore(book, nil, 1000)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	maker := chainid.BytesToID([]byte("maker"))

	// Expired bid at a crossing price must be skipped.
	if _, err := store.AddOrder(maker, orderleaf.SideBid, 100, 10, 1, 50); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddOrder(maker, orderleaf.SideAsk, 100, 10, 2, 0); err != nil {
		t.Fatal(err)
	}

	if results := store.Match(100); len(results) != 0 {
		t.Errorf("expected no matches against an expired bid, got %d", len(results))
	}
}

func TestAddOrder_RotatesEpochAtCapacity(t *testing.T) {
	book := newTestBook(t)
	cfg := DefaultStoreConfig()
	cfg.MaxOrdersPerEpoch = 2
	store, err := NewStore(book, cfg, 1000)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	maker := chainid.BytesToID([]byte("maker"))

	o1, _ := store.AddOrder(maker, orderleaf.SideBid, 100, 1, 1, 0)
	o2, _ := store.AddOrder(maker, orderleaf.SideBid, 100, 1, 2, 0)

	if o1.Leaf.EpochIndex != 0 || o2.Leaf.EpochIndex != 0 {
		t.Fatalf("both orders should land in epoch 0: got %d, %d", o1.Leaf.EpochIndex, o2.Leaf.EpochIndex)
	}
	if book.CurrentEpoch != 1 {
		t.Errorf("expected epoch rotation to epoch 1, got %d", book.CurrentEpoch)
	}

	e, ok := store.Epoch(0)
	if !ok {
		t.Fatal("epoch 0 should exist")
	}
	if e.State() != epoch.StateRootPending {
		t.Errorf("epoch 0 should be RootPending after rotation, got %s", e.State())
	}

	proof, err := store.ProofForOrder(o1.Leaf.OrderID)
	if err != nil {
		t.Fatalf("failed to get proof for order: %v", err)
	}
	if err := proof.Validate(); err != nil {
		t.Errorf("proof failed to validate: %v", err)
	}
}
