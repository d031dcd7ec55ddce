// Copyright 2025 Certen Protocol

package orderleaf

import (
	"bytes"
	"testing"

	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/hashmix"
)

func knownAnswerLeaf() Leaf {
	var maker chainid.ID
	for i := range maker {
		maker[i] = 0xAA
	}
	return Leaf{
		Maker:      maker,
		OrderID:    1,
		Side:       SideBid,
		Price:      100,
		Amount:     10,
		EpochIndex: 0,
		OrderIndex: 0,
		CreatedAt:  1700000000,
		ExpiresAt:  0,
	}
}

// TestKnownAnswerVector pins the exact byte layout from the design
// notes: maker = 32x0xAA, order_id=1, side=0, price=100, amount=10,
// epoch_index=0, order_index=0, created_at=1700000000, expires_at=0.
func TestKnownAnswerVector(t *testing.T) {
	l := knownAnswerLeaf()
	encoded := l.Encode()

	if len(encoded) != EncodedLen {
		t.Fatalf("encoded length mismatch: got %d, want %d", len(encoded), EncodedLen)
	}

	want := make([]byte, 0, EncodedLen)
	want = append(want, bytes.Repeat([]byte{0xAA}, 32)...)
	want = append(want, 1, 0, 0, 0, 0, 0, 0, 0) // order_id = 1 (LE u64)
	want = append(want, 0)                      // side = Bid
	want = append(want, 100, 0, 0, 0, 0, 0, 0, 0) // price = 100
	want = append(want, 10, 0, 0, 0, 0, 0, 0, 0)  // amount = 10
	want = append(want, 0, 0, 0, 0)               // epoch_index = 0
	want = append(want, 0, 0, 0, 0)               // order_index = 0
	// created_at = 1700000000 = 0x6553F100
	want = append(want, 0x00, 0xF1, 0x53, 0x65, 0, 0, 0, 0)
	want = append(want, 0, 0, 0, 0, 0, 0, 0, 0) // expires_at = 0

	if !bytes.Equal(encoded[:], want) {
		t.Errorf("known-answer encoding mismatch:\ngot  %x\nwant %x", encoded, want)
	}

	// The hash must be deterministic and stable across calls.
	mixer := hashmix.SHA256Mixer{}
	h1 := l.Hash(mixer)
	h2 := l.Hash(mixer)
	if h1 != h2 {
		t.Error("leaf hash is not deterministic")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	l := knownAnswerLeaf()
	l.OrderID = 42
	l.Side = SideAsk
	l.Price = 12345
	l.Amount = 6789
	l.EpochIndex = 7
	l.OrderIndex = 99
	l.ExpiresAt = 1700003600

	encoded := l.Encode()
	decoded, err := Decode(encoded[:])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != l {
		t.Errorf("round-trip mismatch:\ngot  %+v\nwant %+v", decoded, l)
	}
}

func TestDecode_ShortBuffer(t *testing.T) {
	if _, err := Decode(make([]byte, EncodedLen-1)); err != ErrShortBuffer {
		t.Errorf("expected ErrShortBuffer, got %v", err)
	}
}

func TestDecode_InvalidSide(t *testing.T) {
	l := knownAnswerLeaf()
	encoded := l.Encode()
	encoded[32+8] = 2 // side byte, must be 0 or 1
	if _, err := Decode(encoded[:]); err != ErrInvalidSide {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}
}

func TestExpired(t *testing.T) {
	l := knownAnswerLeaf()
	if l.Expired(2000000000) {
		t.Error("expires_at=0 should never expire")
	}

	l.ExpiresAt = 1700000500
	if l.Expired(1700000400) {
		t.Error("should not be expired before expires_at")
	}
	if !l.Expired(1700000600) {
		t.Error("should be expired after expires_at")
	}
}
