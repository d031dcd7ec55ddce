// Copyright 2025 Certen Protocol
//
// cmd/cranker is the off-chain service that drives one order book: it
// accepts orders, runs the match loop, rotates and finalizes epochs, and
// settles crossed matches once their epochs are finalized — the
// composition root plays the same part main.go's startValidator does
// for the teacher's BFT validator, wiring the same shape of components
// (config, persistent KV store, HTTP API, graceful shutdown) around a
// different domain.

package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/certen/orderbook-core/pkg/apiserver"
	"github.com/certen/orderbook-core/pkg/auditstore"
	"github.com/certen/orderbook-core/pkg/chainid"
	"github.com/certen/orderbook-core/pkg/cleanup"
	"github.com/certen/orderbook-core/pkg/config"
	"github.com/certen/orderbook-core/pkg/kvdb"
	"github.com/certen/orderbook-core/pkg/ledgerstore"
	"github.com/certen/orderbook-core/pkg/obsmetrics"
	"github.com/certen/orderbook-core/pkg/orderbook"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("starting certen cranker")

	var (
		configPath = flag.String("config", "", "Path to a YAML config file (overrides environment variables)")
		showHelp   = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	keypair, err := loadOrGenerateKeypair(cfg.KeypairPath)
	if err != nil {
		log.Fatalf("failed to load signing keypair: %v", err)
	}
	pub := keypair.Public().(ed25519.PublicKey)
	callerID := chainid.BytesToID(pub)
	log.Printf("cranker signing identity: %s", callerID.Hex())
	log.Printf("target chain RPC: %s (vault transfers/finalization confirmation are external collaborators, not dialed here)", cfg.RPCURL)

	obID := chainid.HexToID(cfg.OrderBookAddress)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		log.Fatalf("failed to create data directory %s: %v", cfg.DataDir, err)
	}
	db, err := dbm.NewGoLevelDB("cranker-ledger", cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open ledger database: %v", err)
	}
	defer db.Close()

	ledger := ledgerstore.NewStore(kvdb.NewKVAdapter(db))

	book, err := ledger.GetOrderBook(obID)
	if err != nil {
		log.Fatalf("failed to load order book %s: %v (order books are provisioned out of band before the cranker starts)", cfg.OrderBookAddress, err)
	}

	storeCfg := orderbook.DefaultStoreConfig()
	storeCfg.MaxOrdersPerEpoch = cfg.MaxOrdersPerEpoch
	storeCfg.Logger = log.New(log.Writer(), "[OrderStore] ", log.LstdFlags)

	store, err := orderbook.NewStore(book, storeCfg, time.Now().Unix())
	if err != nil {
		log.Fatalf("failed to initialize order store: %v", err)
	}

	metrics := obsmetrics.New()
	vault := newLoggingVault(log.New(log.Writer(), "[Vault] ", log.LstdFlags))

	cleanupCfg := cleanup.DefaultConfig()
	cleanupCfg.OrderBook = obID
	cleanupCfg.Caller = callerID
	cleanupCfg.GracePeriodSeconds = int64(cfg.CleanupGracePeriodSec)
	cleanupCfg.CleanupReward = book.CleanupReward
	cleanupCfg.SettlementTTLSeconds = book.SettlementTTLSeconds
	cleanupCfg.Interval = cfg.CleanupInterval()
	cleanupWorker, err := cleanup.NewWorker(ledger, ledger, vault, cleanupCfg)
	if err != nil {
		log.Fatalf("failed to initialize cleanup worker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var orderAudit apiserver.OrderRecorder
	var epochAudit epochRecorder
	var receiptAudit receiptRecorder
	if cfg.DatabaseURL != "" {
		auditClient, err := auditstore.NewClient(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to audit database: %v", err)
		}
		defer auditClient.Close()
		if err := auditClient.MigrateUp(ctx); err != nil {
			log.Fatalf("failed to migrate audit database: %v", err)
		}
		orderAudit = auditstore.NewOrderRepository(auditClient)
		epochAudit = auditstore.NewEpochRepository(auditClient)
		receiptAudit = auditstore.NewReceiptRepository(auditClient)
		log.Printf("audit mirror enabled (postgres)")
	} else {
		log.Printf("audit mirror disabled (no DATABASE_URL configured)")
	}

	settler := newSettlementEngine(store, ledger, vault, metrics, receiptAudit, obID, log.New(log.Writer(), "[Settlement] ", log.LstdFlags))

	go matchLoop(ctx, store, settler, metrics, cfg.MatchInterval(), log.New(log.Writer(), "[MatchLoop] ", log.LstdFlags))
	go epochLoop(ctx, store, ledger, epochAudit, obID, cfg.EpochRotationInterval(), metrics, log.New(log.Writer(), "[EpochLoop] ", log.LstdFlags))
	go settlementLoop(ctx, settler, cfg.SettlementInterval())
	cleanupWorker.Start(ctx)

	handlers := apiserver.NewHandlers(store, cleanupWorker, metrics, orderAudit, cfg.AdminToken, log.New(log.Writer(), "[APIServer] ", log.LstdFlags))
	mux := http.NewServeMux()
	apiserver.RegisterRoutes(mux, handlers)
	mux.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("cranker API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down cranker...")
	cancel()
	cleanupWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Printf("cranker stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func printHelp() {
	fmt.Println(`certen cranker - off-chain order book matching and settlement service

Usage:
  cranker [flags]

Flags:
  --config string   Path to a YAML config file
  --help            Show this help message

Environment variables (see pkg/config):
  RPC_URL, KEYPAIR_PATH, ORDER_BOOK_ADDRESS, MAX_ORDERS_PER_EPOCH,
  EPOCH_ROTATION_INTERVAL_SEC, MATCH_INTERVAL_MS, SETTLEMENT_INTERVAL_MS,
  ADMIN_TOKEN (bearer token required on /api/admin/* routes)`)
}
