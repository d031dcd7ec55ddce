// Copyright 2025 Certen Protocol
//
// Off-chain order store and matcher. The store is a single-writer,
// in-process structure: concurrent submissions are serialized at its
// mutation entry points the way the teacher's batch Collector serializes
// concurrent AddXTransaction calls under one mutex, and no reader ever
// observes a half-inserted order.

package orderbook

import (
	"log"
	"sort"
	"sync"

	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/epoch"
	"github.com/certen/orderbook-core/pkg/hashmix"
	"github.com/certen/orderbook-core/pkg/merkle"
	"github.com/certen/orderbook-core/pkg/orderleaf"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	MaxOrdersPerEpoch uint32 // default 2048, aligning with one bitfield chunk
	Mixer             hashmix.Mixer
	Logger            *log.Logger
}

// DefaultStoreConfig returns the spec's default cranker knobs.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		MaxOrdersPerEpoch: 2048,
		Mixer:             hashmix.SHA256Mixer{},
		Logger:            log.New(log.Writer(), "[OrderStore] ", log.LstdFlags),
	}
}

// Store holds one order book's live bid/ask books plus every epoch it
// has ever opened.
type Store struct {
	mu sync.RWMutex

	book              *OrderBook
	maxOrdersPerEpoch uint32
	mixer             hashmix.Mixer
	logger            *log.Logger

	nextOrderID uint64

	currentEpoch       *epoch.Epoch
	currentEpochOrders []*Order // dense, gap-free, insertion-ordered

	epochs     map[uint32]*epoch.Epoch
	epochTrees map[uint32]*merkle.Tree

	orders map[uint64]*Order // all live orders, by order_id

	bids []*Order // descending price, ascending created_at
	asks []*Order // ascending price, ascending created_at
}

// NewStore opens epoch 0 and returns a ready-to-use store.
func NewStore(book *OrderBook, cfg *StoreConfig, openedAt int64) (*Store, error) {
	if book == nil {
		return nil, ErrNilStore
	}
	if cfg == nil {
		cfg = DefaultStoreConfig()
	}
	if cfg.MaxOrdersPerEpoch == 0 {
		return nil, ErrMaxOrdersExceeded
	}
	if cfg.Mixer == nil {
		cfg.Mixer = hashmix.SHA256Mixer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[OrderStore] ", log.LstdFlags)
	}

	s := &Store{
		book:              book,
		maxOrdersPerEpoch: cfg.MaxOrdersPerEpoch,
		mixer:             cfg.Mixer,
		logger:            cfg.Logger,
		epochs:            make(map[uint32]*epoch.Epoch),
		epochTrees:        make(map[uint32]*merkle.Tree),
		orders:            make(map[uint64]*Order),
	}
	s.currentEpoch = epoch.NewEpoch(book.Authority, book.CurrentEpoch, openedAt)
	s.epochs[book.CurrentEpoch] = s.currentEpoch
	return s, nil
}

// AddOrder assigns order_id, epoch_index, and order_index, inserts into
// the correct side book, and rotates the epoch if it just filled to
// max_orders_per_epoch.
func (s *Store) AddOrder(maker chainid.ID, side orderleaf.Side, price, amount uint64, createdAt, expiresAt int64) (*Order, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.book.Active {
		return nil, ErrBookInactive
	}

	orderID := s.nextOrderID
	s.nextOrderID++

	leaf := orderleaf.Leaf{
		Maker:      maker,
		OrderID:    orderID,
		Side:       side,
		Price:      price,
		Amount:     amount,
		EpochIndex: s.book.CurrentEpoch,
		OrderIndex: uint32(len(s.currentEpochOrders)),
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}

	order := &Order{Leaf: leaf, Remaining: amount}
	s.currentEpochOrders = append(s.currentEpochOrders, order)
	s.orders[orderID] = order
	s.book.TotalOrders++

	if side == orderleaf.SideBid {
		s.insertBid(order)
	} else {
		s.insertAsk(order)
	}

	if uint32(len(s.currentEpochOrders)) >= s.maxOrdersPerEpoch {
		if _, _, err := s.rotateEpochLocked(createdAt); err != nil {
			return order, err
		}
	}

	return order, nil
}

func (s *Store) insertBid(o *Order) {
	// Descending price, ascending created_at tie-break.
	i := sort.Search(len(s.bids), func(i int) bool {
		b := s.bids[i]
		if b.Leaf.Price != o.Leaf.Price {
			return b.Leaf.Price < o.Leaf.Price
		}
		return b.Leaf.CreatedAt > o.Leaf.CreatedAt
	})
	s.bids = append(s.bids, nil)
	copy(s.bids[i+1:], s.bids[i:])
	s.bids[i] = o
}

func (s *Store) insertAsk(o *Order) {
	// Ascending price, ascending created_at tie-break.
	i := sort.Search(len(s.asks), func(i int) bool {
		a := s.asks[i]
		if a.Leaf.Price != o.Leaf.Price {
			return a.Leaf.Price > o.Leaf.Price
		}
		return a.Leaf.CreatedAt > o.Leaf.CreatedAt
	})
	s.asks = append(s.asks, nil)
	copy(s.asks[i+1:], s.asks[i:])
	s.asks[i] = o
}

// RotateEpoch closes the current epoch (builds its tree, submits the
// root) and opens the next one. Callers normally let AddOrder trigger
// this automatically at max_orders_per_epoch; the epoch loop calls this
// directly on its own ticker (spec §5).
func (s *Store) RotateEpoch(now int64) (*epoch.Epoch, *merkle.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotateEpochLocked(now)
}

func (s *Store) rotateEpochLocked(now int64) (*epoch.Epoch, *merkle.Tree, error) {
	if s.currentEpoch == nil {
		return nil, nil, ErrNoCurrentEpoch
	}
	if len(s.currentEpochOrders) == 0 {
		return s.currentEpoch, s.epochTrees[s.book.CurrentEpoch], nil
	}

	blobs := make([][]byte, len(s.currentEpochOrders))
	for i, o := range s.currentEpochOrders {
		encoded := o.Leaf.Encode()
		blobs[i] = encoded[:]
	}

	tree, err := merkle.BuildTree(s.mixer, blobs)
	if err != nil {
		return nil, nil, err
	}

	if err := s.currentEpoch.SubmitEpochRoot(tree.Root(), uint32(len(blobs)), s.maxOrdersPerEpoch); err != nil {
		return nil, nil, err
	}
	s.epochTrees[s.book.CurrentEpoch] = tree

	nextIndex := s.book.CurrentEpoch + 1
	s.book.CurrentEpoch = nextIndex
	s.currentEpoch = epoch.NewEpoch(s.book.Authority, nextIndex, now)
	s.epochs[nextIndex] = s.currentEpoch
	s.currentEpochOrders = nil

	s.logger.Printf("rotated epoch %d -> %d (root=%x, orders=%d)", nextIndex-1, nextIndex, tree.Root(), len(blobs))
	return s.epochs[nextIndex-1], tree, nil
}

// FinalizeEpoch freezes a RootPending epoch. Caller is expected to be
// the order book's authority; authorization itself is a cmd/cranker
// concern, not this store's.
func (s *Store) FinalizeEpoch(epochIndex uint32, finalizedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.epochs[epochIndex]
	if !ok {
		return ErrEpochNotFound
	}
	return e.FinalizeEpoch(finalizedAt)
}

// Epoch returns the epoch record for epochIndex.
func (s *Store) Epoch(epochIndex uint32) (*epoch.Epoch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.epochs[epochIndex]
	return e, ok
}

// ProofForOrder returns the merkle proof for orderID within its epoch's
// tree, if that epoch has already been rotated (its tree built).
func (s *Store) ProofForOrder(orderID uint64) (*merkle.InclusionProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	tree, ok := s.epochTrees[order.Leaf.EpochIndex]
	if !ok {
		return nil, ErrEpochNotFound
	}

	leaf, err := tree.LeafHash(int(order.Leaf.OrderIndex))
	if err != nil {
		return nil, err
	}
	path, err := tree.GenerateProof(int(order.Leaf.OrderIndex))
	if err != nil {
		return nil, err
	}

	return merkle.NewInclusionProof(tree.Mixer(), leaf, order.Leaf.OrderIndex, tree.Root(), tree.MaxDepth(), path), nil
}

// OrderBook returns the store's underlying order book record.
func (s *Store) OrderBook() *OrderBook {
	return s.book
}

// Depth reports the live (unfilled) order count on each side, used by
// pkg/obsmetrics' book-depth gauge.
func (s *Store) Depth() (bids, asks int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.bids {
		if !o.filled() {
			bids++
		}
	}
	for _, o := range s.asks {
		if !o.filled() {
			asks++
		}
	}
	return bids, asks
}
