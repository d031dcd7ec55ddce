// Copyright 2025 Certen Protocol
//
// LedgerStore provides high-level access to the order-book core's
// durable state in a KV store: bitfield registries and chunks, merkle
// commitments, epochs, and settlement receipts. Adapted from
// pkg/ledger/store.go's discipline — KV-key-prefix-plus-JSON-blob
// records, sentinel errors instead of nil/nil on a missing key, and
// big-endian uint64/uint32 key suffixes so scans come back in index
// order — repointed from system/anchor ledgers at this core's own
// entities.
//
// CONCURRENCY: like its ancestor, LedgerStore assumes single-writer
// access per key prefix; cmd/cranker is the only writer, the same
// single-owner discipline pkg/orderbook.Store documents for its own
// in-memory state.

package ledgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/certen/orderbook-core/pkg/bitfield"
	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/epoch"
	"github.com/certen/orderbook-core/pkg/merkle"
	"github.com/certen/orderbook-core/pkg/orderbook"
	"github.com/certen/orderbook-core/pkg/settlement"
)

// tombstone marks a deleted record. The KV interface has no native
// delete, so DeleteReceipt/DeleteEpoch overwrite the key with this
// sentinel rather than a zero-valued JSON struct — a zero-valued
// settlement.Receipt unmarshals with err==nil and ExpiresAt==0, which
// previously made get() return it as a live record past its own TTL,
// and cleanup.Worker.Sweep would re-reclaim and re-pay for it forever.
var tombstone = []byte("\x00deleted")

// KV is the minimal persistence interface LedgerStore is built against.
// pkg/kvdb.KVAdapter implements it over cometbft-db.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// Store is the durable-state façade over a KV backend.
type Store struct {
	kv KV
}

// NewStore wraps a KV backend as a LedgerStore.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// ====== KV key layout ======

var (
	prefixRegistry   = []byte("bitfield_registry:")
	prefixChunk      = []byte("bitfield_chunk:")
	prefixCommitment = []byte("merkle_root:")
	prefixOrderBook  = []byte("order_book:")
	prefixEpoch      = []byte("epoch:")
	prefixEpochIndex = []byte("epoch_index:") // + order_book -> []uint32
	prefixReceipt    = []byte("settlement:")
	prefixReceiptIdx = []byte("settlement_index:") // + order_book -> []receiptKey
)

func be32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func be64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func registryKey(owner chainid.ID) []byte {
	return append(append([]byte{}, prefixRegistry...), owner[:]...)
}

func chunkKey(registry chainid.ID, chunkIndex uint32) []byte {
	k := append(append([]byte{}, prefixChunk...), registry[:]...)
	return append(k, be32(chunkIndex)...)
}

func commitmentKey(owner chainid.ID, seed uint64) []byte {
	k := append(append([]byte{}, prefixCommitment...), owner[:]...)
	return append(k, be64(seed)...)
}

func orderBookKey(id chainid.ID) []byte {
	return append(append([]byte{}, prefixOrderBook...), id[:]...)
}

func epochKey(orderBook chainid.ID, epochIndex uint32) []byte {
	k := append(append([]byte{}, prefixEpoch...), orderBook[:]...)
	return append(k, be32(epochIndex)...)
}

func epochIndexKey(orderBook chainid.ID) []byte {
	return append(append([]byte{}, prefixEpochIndex...), orderBook[:]...)
}

func receiptKey(orderBook chainid.ID, makerOrderID, takerOrderID uint64) []byte {
	k := append(append([]byte{}, prefixReceipt...), orderBook[:]...)
	k = append(k, be64(makerOrderID)...)
	return append(k, be64(takerOrderID)...)
}

func receiptIndexKey(orderBook chainid.ID) []byte {
	return append(append([]byte{}, prefixReceiptIdx...), orderBook[:]...)
}

// get loads and unmarshals a JSON record, returning ErrNotFound when the
// key is absent rather than a bare nil/nil the way the teacher's ledger
// store historically did.
func (s *Store) get(key []byte, v interface{}) error {
	b, err := s.kv.Get(key)
	if err != nil {
		return fmt.Errorf("ledgerstore: get: %w", err)
	}
	if len(b) == 0 || bytes.Equal(b, tombstone) {
		return ErrNotFound
	}
	return json.Unmarshal(b, v)
}

func (s *Store) put(key []byte, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ledgerstore: marshal: %w", err)
	}
	return s.kv.Set(key, b)
}

// ====== Bitfield registry/chunk persistence ======

// registryRecord is the JSON-serializable form of a bitfield.Registry.
type registryRecord struct {
	Owner         chainid.ID
	TotalCapacity uint64
	ChunkCount    uint32
	Materialized  []uint32
}

// PutRegistry persists a registry's directory state.
func (s *Store) PutRegistry(r *bitfield.Registry) error {
	capacity := r.CapacityChunks()
	materialized := make([]uint32, 0, capacity)
	for i := uint32(0); i < capacity; i++ {
		if r.IsMaterialized(i) {
			materialized = append(materialized, i)
		}
	}
	rec := registryRecord{
		Owner:         r.Owner,
		TotalCapacity: r.TotalCapacity,
		ChunkCount:    r.ChunkCount,
		Materialized:  materialized,
	}
	return s.put(registryKey(r.Owner), rec)
}

// GetRegistry reconstructs a bitfield.Registry from its persisted record.
func (s *Store) GetRegistry(owner chainid.ID) (*bitfield.Registry, error) {
	var rec registryRecord
	if err := s.get(registryKey(owner), &rec); err != nil {
		return nil, err
	}
	r, err := bitfield.NewRegistry(rec.Owner, rec.TotalCapacity)
	if err != nil {
		return nil, err
	}
	for _, idx := range rec.Materialized {
		if _, err := r.MaterializeChunk(idx); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// chunkRecord is the JSON-serializable form of a bitfield.Chunk. Bits
// round-trips through encoding/json's default []byte-as-base64 codec.
type chunkRecord struct {
	Registry   chainid.ID
	ChunkIndex uint32
	Bits       []byte
	SetCount   uint16
	CreatedAt  int64
}

// PutChunk persists one chunk's full 256-byte page and cached popcount.
func (s *Store) PutChunk(c *bitfield.Chunk) error {
	rec := chunkRecord{
		Registry:   c.Registry,
		ChunkIndex: c.ChunkIndex,
		Bits:       append([]byte(nil), c.Bits[:]...),
		SetCount:   c.SetCount,
		CreatedAt:  c.CreatedAt,
	}
	return s.put(chunkKey(c.Registry, c.ChunkIndex), rec)
}

// GetChunk loads a chunk by (registry, chunk_index).
func (s *Store) GetChunk(registry chainid.ID, chunkIndex uint32) (*bitfield.Chunk, error) {
	var rec chunkRecord
	if err := s.get(chunkKey(registry, chunkIndex), &rec); err != nil {
		return nil, err
	}
	c := bitfield.NewChunk(rec.Registry, rec.ChunkIndex, rec.CreatedAt)
	copy(c.Bits[:], rec.Bits)
	c.SetCount = rec.SetCount
	return c, nil
}

// ====== Merkle commitment persistence ======

// PutCommitment persists a generic (owner, seed) merkle commitment.
func (s *Store) PutCommitment(c *merkle.Commitment) error {
	return s.put(commitmentKey(c.Owner, c.Seed), c)
}

// GetCommitment loads a commitment by (owner, seed).
func (s *Store) GetCommitment(owner chainid.ID, seed uint64) (*merkle.Commitment, error) {
	var c merkle.Commitment
	if err := s.get(commitmentKey(owner, seed), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ====== Order book, epoch, and receipt persistence ======

// OrderBookID derives the order book's identity the way spec.md §6
// describes: ("order_book", authority, base_mint, quote_mint).
func OrderBookID(authority, baseMint, quoteMint chainid.ID) chainid.ID {
	return chainid.BytesToID(chainid.DeriveKey([]byte("order_book"), authority[:], baseMint[:], quoteMint[:]))
}

// PutOrderBook persists an order book's configuration and rolling stats.
func (s *Store) PutOrderBook(id chainid.ID, book *orderbook.OrderBook) error {
	return s.put(orderBookKey(id), book)
}

// GetOrderBook loads an order book by its derived identity.
func (s *Store) GetOrderBook(id chainid.ID) (*orderbook.OrderBook, error) {
	var book orderbook.OrderBook
	if err := s.get(orderBookKey(id), &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// PutEpoch persists one epoch's snapshot and adds its index to the
// order book's epoch directory if not already present, the same
// meta-plus-per-key-record shape pkg/ledger used for system-ledger
// blocks.
func (s *Store) PutEpoch(orderBook chainid.ID, snap epoch.Snapshot) error {
	if err := s.put(epochKey(orderBook, snap.EpochIndex), snap); err != nil {
		return err
	}

	idx, err := s.epochIndices(orderBook)
	if err != nil {
		return err
	}
	for _, existing := range idx {
		if existing == snap.EpochIndex {
			return nil
		}
	}
	idx = append(idx, snap.EpochIndex)
	return s.put(epochIndexKey(orderBook), idx)
}

// GetEpoch loads one epoch's persisted snapshot.
func (s *Store) GetEpoch(orderBook chainid.ID, epochIndex uint32) (epoch.Snapshot, error) {
	var snap epoch.Snapshot
	err := s.get(epochKey(orderBook, epochIndex), &snap)
	return snap, err
}

func (s *Store) epochIndices(orderBook chainid.ID) ([]uint32, error) {
	var idx []uint32
	err := s.get(epochIndexKey(orderBook), &idx)
	if err == ErrNotFound {
		return nil, nil
	}
	return idx, err
}

// ListFinalizedEpochs implements pkg/cleanup.EpochLister: every
// persisted epoch for orderBook whose snapshot reports Finalized.
func (s *Store) ListFinalizedEpochs(orderBook chainid.ID) ([]epoch.Snapshot, error) {
	idx, err := s.epochIndices(orderBook)
	if err != nil {
		return nil, err
	}
	out := make([]epoch.Snapshot, 0, len(idx))
	for _, i := range idx {
		snap, err := s.GetEpoch(orderBook, i)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if snap.Finalized {
			out = append(out, snap)
		}
	}
	return out, nil
}

// DeleteEpoch implements pkg/cleanup.EpochLister: removes a finalized
// epoch's record past its grace period. The KV interface has no
// Delete, so this tombstones the record.
func (s *Store) DeleteEpoch(_ context.Context, orderBook chainid.ID, epochIndex uint32) error {
	return s.kv.Set(epochKey(orderBook, epochIndex), tombstone)
}

// PutReceipt persists a settlement receipt and indexes it under its
// order book for enumeration by pkg/cleanup.
func (s *Store) PutReceipt(_ context.Context, r *settlement.Receipt) error {
	if err := s.put(receiptKey(r.OrderBook, r.MakerOrderID, r.TakerOrderID), r); err != nil {
		return err
	}

	idx, err := s.receiptIndex(r.OrderBook)
	if err != nil {
		return err
	}
	pair := receiptPair{Maker: r.MakerOrderID, Taker: r.TakerOrderID}
	for _, existing := range idx {
		if existing == pair {
			return nil
		}
	}
	idx = append(idx, pair)
	return s.put(receiptIndexKey(r.OrderBook), idx)
}

// HasReceipt implements pkg/settlement.ReceiptStore: at-most-once check.
func (s *Store) HasReceipt(orderBook chainid.ID, makerOrderID, takerOrderID uint64) (bool, error) {
	var r settlement.Receipt
	err := s.get(receiptKey(orderBook, makerOrderID, takerOrderID), &r)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

type receiptPair struct {
	Maker uint64
	Taker uint64
}

func (s *Store) receiptIndex(orderBook chainid.ID) ([]receiptPair, error) {
	var idx []receiptPair
	err := s.get(receiptIndexKey(orderBook), &idx)
	if err == ErrNotFound {
		return nil, nil
	}
	return idx, err
}

// ListReceipts implements pkg/cleanup.ReceiptLister.
func (s *Store) ListReceipts(orderBook chainid.ID) ([]*settlement.Receipt, error) {
	idx, err := s.receiptIndex(orderBook)
	if err != nil {
		return nil, err
	}
	out := make([]*settlement.Receipt, 0, len(idx))
	for _, pair := range idx {
		var r settlement.Receipt
		err := s.get(receiptKey(orderBook, pair.Maker, pair.Taker), &r)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, nil
}

// DeleteReceipt implements pkg/cleanup.ReceiptLister: tombstones a
// settled receipt past its grace period the same way DeleteEpoch does,
// and prunes it from the order book's receipt index so ListReceipts
// (and therefore cleanup.Worker.Sweep) never enumerates it again —
// without this, a reclaimed receipt would keep being "found", re-paid,
// and re-counted on every subsequent sweep.
func (s *Store) DeleteReceipt(_ context.Context, orderBook chainid.ID, makerOrderID, takerOrderID uint64) error {
	if err := s.kv.Set(receiptKey(orderBook, makerOrderID, takerOrderID), tombstone); err != nil {
		return err
	}

	idx, err := s.receiptIndex(orderBook)
	if err != nil {
		return err
	}
	pair := receiptPair{Maker: makerOrderID, Taker: takerOrderID}
	pruned := idx[:0]
	for _, existing := range idx {
		if existing != pair {
			pruned = append(pruned, existing)
		}
	}
	return s.put(receiptIndexKey(orderBook), pruned)
}
