// Copyright 2025 Certen Protocol
//
// Matching: price-time priority over the sorted bid/ask books. Matching
// is deterministic given a snapshot of both books — the same book state
// always produces the same sequence of fills.

package orderbook

// MatchResult is one fill produced by a single Match call.
type MatchResult struct {
	Maker      *Order
	Taker      *Order
	FillAmount uint64
	FillPrice  uint64
}

// Match walks both books from the top, filling while the best bid's
// price is not below the best ask's price. Expired orders are skipped
// in place and pruned from the books afterward. The resting order
// (earlier created_at) is the maker; fill price is always the maker's
// price.
func (s *Store) Match(now int64) []MatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []MatchResult
	bidIdx, askIdx := 0, 0

	for bidIdx < len(s.bids) && askIdx < len(s.asks) {
		bid := s.bids[bidIdx]
		ask := s.asks[askIdx]

		if bid.filled() || bid.Leaf.Expired(now) {
			bidIdx++
			continue
		}
		if ask.filled() || ask.Leaf.Expired(now) {
			askIdx++
			continue
		}
		if bid.Leaf.Price < ask.Leaf.Price {
			break // no cross
		}

		var maker, taker *Order
		if bid.Leaf.CreatedAt <= ask.Leaf.CreatedAt {
			maker, taker = bid, ask
		} else {
			maker, taker = ask, bid
		}

		fillAmount := bid.Remaining
		if ask.Remaining < fillAmount {
			fillAmount = ask.Remaining
		}

		bid.Remaining -= fillAmount
		ask.Remaining -= fillAmount

		results = append(results, MatchResult{
			Maker:      maker,
			Taker:      taker,
			FillAmount: fillAmount,
			FillPrice:  maker.Leaf.Price,
		})

		if bid.filled() {
			bidIdx++
		}
		if ask.filled() {
			askIdx++
		}
	}

	s.bids = pruneConsumed(s.bids, bidIdx, now)
	s.asks = pruneConsumed(s.asks, askIdx, now)

	return results
}

// pruneConsumed drops every order before matchedUpTo (filled or skipped
// as expired) while preserving the remaining sort order.
func pruneConsumed(orders []*Order, matchedUpTo int, now int64) []*Order {
	live := orders[:0]
	for i, o := range orders {
		if i < matchedUpTo {
			continue
		}
		if o.filled() || o.Leaf.Expired(now) {
			continue
		}
		live = append(live, o)
	}
	return live
}
