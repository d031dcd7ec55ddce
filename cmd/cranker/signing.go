// Copyright 2025 Certen Protocol
//
// Signing identity management for the cranker. Adapted from the
// teacher's loadOrGenerateEd25519Key in main.go: never derive keys from
// a configured ID, generate-or-load a real key from disk with
// restrictive permissions.

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// loadOrGenerateKeypair loads the cranker's Ed25519 signing identity from
// keypairPath, generating and persisting a new one if none exists.
func loadOrGenerateKeypair(keypairPath string) (ed25519.PrivateKey, error) {
	keyDir := filepath.Dir(keypairPath)
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, fmt.Errorf("create key directory %s: %w", keyDir, err)
	}

	if _, err := os.Stat(keypairPath); os.IsNotExist(err) {
		log.Printf("[Cranker] generating new Ed25519 keypair at %s", keypairPath)
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		if err := os.WriteFile(keypairPath, []byte(hex.EncodeToString(priv)), 0600); err != nil {
			return nil, fmt.Errorf("save ed25519 key to %s: %w", keypairPath, err)
		}
		return priv, nil
	}

	log.Printf("[Cranker] loading existing Ed25519 keypair from %s", keypairPath)
	data, err := os.ReadFile(keypairPath)
	if err != nil {
		return nil, fmt.Errorf("read ed25519 key from %s: %w", keypairPath, err)
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode ed25519 key from %s: %w", keypairPath, err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 key size: expected %d, got %d", ed25519.PrivateKeySize, len(keyBytes))
	}
	return ed25519.PrivateKey(keyBytes), nil
}
