// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wallet loads the Ed25519 signing identity cmd/validator uses to
// build Epistula envelopes: either a deterministic seed-derived keypair for
// mock-chain runs, or a hotkey file on disk, the same two paths the
// original miner's keypair loader offered.
package wallet

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"subnetvalidator/internal/envelope"
)

// Identity is a signing keypair plus its hex-encoded public key, the form
// envelope.Build and Dispatcher expect.
type Identity struct {
	Private ed25519.PrivateKey
	Hotkey  string // hex-encoded public key
}

// hotkeyFile mirrors the JSON a hotkey file on disk is expected to contain:
// a hex-encoded 32-byte Ed25519 seed under one of two historical field
// names, matching the original loader's "secretSeed" / "secretKey" fallback.
type hotkeyFile struct {
	SecretSeed string `json:"secret_seed"`
	SecretKey  string `json:"secret_key"`
}

// Load returns the validator's signing identity. If mock is true, it derives
// a deterministic keypair from walletName/walletHotkey — the same posture
// the original took under SKIP_EPISTULA_VERIFY, useful for -use-mock-chain
// runs and tests where no real wallet exists on disk. Otherwise it reads
// walletPath/walletName/hotkeys/walletHotkey.
func Load(mock bool, walletPath, walletName, walletHotkey string) (Identity, error) {
	if mock {
		return deriveMock(walletName, walletHotkey), nil
	}

	path := filepath.Join(walletPath, walletName, "hotkeys", walletHotkey)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Identity{}, fmt.Errorf("wallet: read hotkey file %s: %w", path, err)
	}

	var hk hotkeyFile
	if err := json.Unmarshal(raw, &hk); err != nil {
		return Identity{}, fmt.Errorf("wallet: parse hotkey file %s: %w", path, err)
	}
	seedHex := hk.SecretSeed
	if seedHex == "" {
		seedHex = hk.SecretKey
	}
	if seedHex == "" {
		return Identity{}, fmt.Errorf("wallet: %s has no secret_seed or secret_key field", path)
	}

	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return Identity{}, fmt.Errorf("wallet: decode seed in %s: %w", path, err)
	}
	if len(seed) != ed25519.SeedSize {
		return Identity{}, fmt.Errorf("wallet: %s seed is %d bytes, want %d", path, len(seed), ed25519.SeedSize)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return Identity{Private: priv, Hotkey: envelope.HexPublicKey(pub)}, nil
}

func deriveMock(walletName, walletHotkey string) Identity {
	sum := sha256.Sum256([]byte(fmt.Sprintf("mock_%s_%s_seed", walletName, walletHotkey)))
	priv := ed25519.NewKeyFromSeed(sum[:])
	pub := priv.Public().(ed25519.PublicKey)
	return Identity{Private: priv, Hotkey: envelope.HexPublicKey(pub)}
}
