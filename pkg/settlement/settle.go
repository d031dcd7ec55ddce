// Copyright 2025 Certen Protocol
//
// Settlement verification: the ten ordered, fatal checks a maker/taker
// match must pass before any funds move. Checks 1–6 mutate nothing, and
// step 7 never leaves the maker/taker bit pair half-set. Once step 7 has
// set both bits, a failed vault transfer or receipt write returns an
// error with both bits still set, and transfers that already went through
// are not reversed (see VaultTransferer). The ordered fatal-check shape
// follows pkg/batch's anchor adapter, generalized from "is this batch
// anchorable" to "does this match cross, prove, and settle cleanly".

package settlement

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/certen/orderbook-core/pkg/bitfield"
	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/epoch"
	"github.com/certen/orderbook-core/pkg/hashmix"
	"github.com/certen/orderbook-core/pkg/merkle"
	"github.com/certen/orderbook-core/pkg/orderbook"
	"github.com/certen/orderbook-core/pkg/orderleaf"
)

// SettlementRegistryOwner derives the bitfield registry identity that
// tracks settled order_index values for one order book's epoch. Every
// epoch gets its own registry rather than sharing one across the order
// book's lifetime, so a chunk's capacity only ever has to cover one
// epoch's max_orders_per_epoch.
func SettlementRegistryOwner(orderBookID chainid.ID, epochIndex uint32) chainid.ID {
	var epochLE [4]byte
	epochLE[0] = byte(epochIndex)
	epochLE[1] = byte(epochIndex >> 8)
	epochLE[2] = byte(epochIndex >> 16)
	epochLE[3] = byte(epochIndex >> 24)
	return chainid.BytesToID(chainid.DeriveKey([]byte("settlement"), orderBookID[:], epochLE[:]))
}

// Request bundles everything Verify needs to settle one maker/taker
// match. Both leaves' canonical bytes and proofs are supplied by the
// caller (the cranker) the way account-based runtimes pass instruction
// accounts in rather than having the program look them up itself.
type Request struct {
	OrderBookID chainid.ID
	OrderBook   *orderbook.OrderBook

	MakerEpoch epoch.Snapshot
	TakerEpoch epoch.Snapshot

	MakerLeafBytes []byte
	TakerLeafBytes []byte

	MakerProof *merkle.InclusionProof
	TakerProof *merkle.InclusionProof

	MakerChunk *bitfield.Chunk
	TakerChunk *bitfield.Chunk

	MakerAccount chainid.ID
	TakerAccount chainid.ID

	FillAmount uint64
	FillPrice  uint64

	Now int64

	Vault    VaultTransferer
	Receipts ReceiptStore
}

// Result is what a successful settlement produced.
type Result struct {
	Receipt *Receipt
}

// Verify runs the ten ordered checks and, if all pass, moves funds and
// records a receipt. It returns a *Error on any failed check; every
// *Error's Kind is one of the stable identifiers in errors.go.
func Verify(ctx context.Context, req *Request) (*Result, error) {
	book := req.OrderBook

	// 1. order book must be active, and both epochs must still be
	// within their settlement TTL since finalization.
	if !book.Active {
		return nil, fail(KindBookInactive, nil)
	}
	if !req.MakerEpoch.Finalized || !req.TakerEpoch.Finalized {
		return nil, fail(KindEpochNotFinalized, nil)
	}
	if ttlExceeded(req.MakerEpoch.FinalizedAt, req.Now, book.SettlementTTLSeconds) ||
		ttlExceeded(req.TakerEpoch.FinalizedAt, req.Now, book.SettlementTTLSeconds) {
		return nil, fail(KindSettlementTTLExceeded, nil)
	}

	// 2. decode both leaves and check basic shape.
	maker, err := orderleaf.Decode(req.MakerLeafBytes)
	if err != nil {
		return nil, fail(KindInvalidLeaf, fmt.Errorf("maker: %w", err))
	}
	taker, err := orderleaf.Decode(req.TakerLeafBytes)
	if err != nil {
		return nil, fail(KindInvalidLeaf, fmt.Errorf("taker: %w", err))
	}
	if maker.Side == taker.Side {
		return nil, fail(KindSameSide, nil)
	}
	if req.FillAmount == 0 {
		return nil, fail(KindZeroAmount, nil)
	}

	bidLeaf, askLeaf := maker, taker
	if maker.Side == orderleaf.SideAsk {
		bidLeaf, askLeaf = taker, maker
	}

	// 3. price crossing and tick size.
	if bidLeaf.Price < askLeaf.Price {
		return nil, fail(KindPriceNotCrossed, nil)
	}
	if book.TickSize > 0 && (bidLeaf.Price%book.TickSize != 0 || askLeaf.Price%book.TickSize != 0) {
		return nil, fail(KindTickViolation, nil)
	}

	// 4. expiry.
	if maker.Expired(req.Now) || taker.Expired(req.Now) {
		return nil, fail(KindOrderExpired, nil)
	}

	// 5. merkle inclusion against each leaf's own finalized epoch root.
	if err := verifyInclusion(req.MakerProof, maker, req.MakerEpoch); err != nil {
		return nil, err
	}
	if err := verifyInclusion(req.TakerProof, taker, req.TakerEpoch); err != nil {
		return nil, err
	}

	// 6. fill bounds: cannot exceed either leaf's resting amount, and
	// the fill price must equal the maker's own price.
	if req.FillAmount > maker.Amount || req.FillAmount > taker.Amount {
		return nil, fail(KindFillExceedsAmount, nil)
	}
	if req.FillPrice != maker.Price {
		return nil, fail(KindPriceNotCrossed, fmt.Errorf("fill_price %d does not match maker price %d", req.FillPrice, maker.Price))
	}

	// 7. bitfield check-and-set: at-most-once enforcement per leaf.
	makerRegistry := SettlementRegistryOwner(req.OrderBookID, maker.EpochIndex)
	takerRegistry := SettlementRegistryOwner(req.OrderBookID, taker.EpochIndex)
	makerChunkIdx, makerLocal := bitfield.GlobalIndex(uint64(maker.OrderIndex))
	takerChunkIdx, takerLocal := bitfield.GlobalIndex(uint64(taker.OrderIndex))

	if req.MakerChunk == nil || req.MakerChunk.Registry != makerRegistry || req.MakerChunk.ChunkIndex != makerChunkIdx {
		return nil, fail(KindChunkIdentityMismatch, fmt.Errorf("maker chunk"))
	}
	if req.TakerChunk == nil || req.TakerChunk.Registry != takerRegistry || req.TakerChunk.ChunkIndex != takerChunkIdx {
		return nil, fail(KindChunkIdentityMismatch, fmt.Errorf("taker chunk"))
	}

	if has, err := req.Receipts.HasReceipt(req.OrderBookID, maker.OrderID, taker.OrderID); err != nil {
		return nil, fail(KindAlreadySettled, err)
	} else if has {
		return nil, fail(KindAlreadySettled, nil)
	}

	makerNewlySet, err := req.MakerChunk.Set(makerLocal)
	if err != nil {
		return nil, fail(KindChunkIdentityMismatch, err)
	}
	if !makerNewlySet {
		return nil, fail(KindAlreadySettled, fmt.Errorf("maker order_id=%d", maker.OrderID))
	}
	takerNewlySet, err := req.TakerChunk.Set(takerLocal)
	if err != nil {
		_, _ = req.MakerChunk.Unset(makerLocal)
		return nil, fail(KindChunkIdentityMismatch, err)
	}
	if !takerNewlySet {
		// Roll the maker bit back: the pair settles atomically or not
		// at all, and the maker side already proved it was untouched.
		_, _ = req.MakerChunk.Unset(makerLocal)
		return nil, fail(KindAlreadySettled, fmt.Errorf("taker order_id=%d", taker.OrderID))
	}

	// 8. fee computation and vault transfers.
	quoteVolume := req.FillAmount * req.FillPrice / book.PriceScale
	fee := quoteVolume * uint64(book.FeeBps) / 10_000

	bidAccount, askAccount := req.MakerAccount, req.TakerAccount
	if maker.Side == orderleaf.SideAsk {
		bidAccount, askAccount = req.TakerAccount, req.MakerAccount
	}

	if err := req.Vault.Transfer(ctx, book.BaseVault, bidAccount, book.BaseMint, req.FillAmount); err != nil {
		return nil, fail(KindInsufficientVaultBal, fmt.Errorf("base leg: %w", err))
	}
	if err := req.Vault.Transfer(ctx, book.QuoteVault, askAccount, book.QuoteMint, quoteVolume-fee); err != nil {
		return nil, fail(KindInsufficientVaultBal, fmt.Errorf("quote leg: %w", err))
	}
	if fee > 0 {
		if err := req.Vault.Transfer(ctx, book.QuoteVault, book.FeeVault, book.QuoteMint, fee); err != nil {
			return nil, fail(KindInsufficientVaultBal, fmt.Errorf("fee leg: %w", err))
		}
	}

	// 9. receipt, enforcing (order_book, maker_order_id, taker_order_id)
	// at-most-once alongside the bitfield check.
	receipt := &Receipt{
		OrderBook:    req.OrderBookID,
		MakerOrderID: maker.OrderID,
		TakerOrderID: taker.OrderID,
		MakerEpoch:   maker.EpochIndex,
		TakerEpoch:   taker.EpochIndex,
		FillAmount:   req.FillAmount,
		FillPrice:    req.FillPrice,
		QuoteVolume:  quoteVolume,
		FeeAmount:    fee,
		SettledAt:    req.Now,
		ExpiresAt:    req.Now + book.SettlementTTLSeconds,
	}
	if err := req.Receipts.PutReceipt(ctx, receipt); err != nil {
		return nil, fail(KindReceiptAlreadyExists, err)
	}

	// 10. roll up order book aggregates.
	book.TotalSettlements++
	book.Stats.TotalVolumeBase += req.FillAmount
	book.Stats.TotalVolumeQuote += quoteVolume
	book.Stats.TotalFeesPaid += fee

	return &Result{Receipt: receipt}, nil
}

func ttlExceeded(finalizedAt, now, ttlSeconds int64) bool {
	if ttlSeconds <= 0 {
		return false
	}
	return now > finalizedAt+ttlSeconds
}

func verifyInclusion(proof *merkle.InclusionProof, leaf orderleaf.Leaf, ep epoch.Snapshot) *Error {
	if proof == nil {
		return fail(KindInvalidMerkleProof, fmt.Errorf("missing proof"))
	}
	if proof.Root != hex.EncodeToString(ep.Root[:]) {
		return fail(KindInvalidMerkleProof, fmt.Errorf("proof root does not match epoch %d's finalized root", ep.EpochIndex))
	}
	if proof.Index != leaf.OrderIndex {
		return fail(KindInvalidMerkleProof, fmt.Errorf("proof index %d does not match leaf order_index %d", proof.Index, leaf.OrderIndex))
	}

	mixer, err := hashmix.ByName(proof.Mixer)
	if err != nil {
		return fail(KindInvalidMerkleProof, err)
	}
	wantLeaf := leaf.Hash(mixer)
	if proof.Leaf != hex.EncodeToString(wantLeaf[:]) {
		return fail(KindInvalidMerkleProof, fmt.Errorf("proof leaf hash does not match the decoded leaf"))
	}

	if err := proof.Validate(); err != nil {
		return fail(KindInvalidMerkleProof, err)
	}
	return nil
}
