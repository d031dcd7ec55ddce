// Copyright 2025 Certen Protocol
//
// Vault transfers and crank-reward payouts are explicit external
// collaborators (spec.md §1): pkg/settlement and pkg/cleanup depend on
// narrow interfaces and never move real funds themselves. loggingVault
// is the cranker's concrete wiring of both interfaces against an
// in-memory balance ledger, standing in for whatever real custody
// backend (an on-chain vault contract, a custodial ledger) an operator
// points this at in production.
package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/certen/orderbook-core/pkg/chainid"
)

// loggingVault implements settlement.VaultTransferer and
// cleanup.RewardPayer over a simple in-memory per-(account, mint)
// balance table, logging every movement the way the teacher's batch
// components log every state transition.
type loggingVault struct {
	mu       sync.Mutex
	balances map[chainid.ID]map[chainid.ID]uint64
	logger   *log.Logger
}

func newLoggingVault(logger *log.Logger) *loggingVault {
	if logger == nil {
		logger = log.New(log.Writer(), "[Vault] ", log.LstdFlags)
	}
	return &loggingVault{
		balances: make(map[chainid.ID]map[chainid.ID]uint64),
		logger:   logger,
	}
}

// Credit seeds an account's balance for a given mint. Nothing in the
// cranker calls it, so every vault account starts at a zero balance.
func (v *loggingVault) Credit(account, mint chainid.ID, amount uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credit(account, mint, amount)
}

func (v *loggingVault) credit(account, mint chainid.ID, amount uint64) {
	byMint, ok := v.balances[account]
	if !ok {
		byMint = make(map[chainid.ID]uint64)
		v.balances[account] = byMint
	}
	byMint[mint] += amount
}

// Transfer implements settlement.VaultTransferer.
func (v *loggingVault) Transfer(ctx context.Context, from, to, mint chainid.ID, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount == 0 {
		return nil
	}
	fromBal := v.balances[from][mint]
	if fromBal < amount {
		return fmt.Errorf("vault: insufficient balance: account=%s mint=%s have=%d need=%d", from.Hex(), mint.Hex(), fromBal, amount)
	}
	v.balances[from][mint] = fromBal - amount
	v.credit(to, mint, amount)
	v.logger.Printf("transferred %d of mint %s: %s -> %s", amount, mint.Hex(), from.Hex(), to.Hex())
	return nil
}

// PayReward implements cleanup.RewardPayer. It credits amount to `to`
// under the order book ID in place of a mint, and debits no vault or
// other account.
func (v *loggingVault) PayReward(ctx context.Context, orderBook chainid.ID, to chainid.ID, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if amount == 0 {
		return nil
	}
	v.credit(to, orderBook, amount)
	v.logger.Printf("paid cleanup reward %d to %s for order book %s", amount, to.Hex(), orderBook.Hex())
	return nil
}
