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

// Package envelope implements the signed, replay-resistant request envelope
// used between the validator and every worker. It is a pure function over
// bytes and keys: no HTTP, no sockets, so canonicalization and replay tests
// run without standing up a network.
package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// AllowedDelta is the maximum age of an incoming nonce before it is rejected
// as stale.
const AllowedDelta = 5 * time.Second

// Body is the signed envelope payload. Field order here is irrelevant; the
// signature covers the form produced by canonicalizeBody, which re-sorts
// keys regardless of struct field order.
type Body struct {
	Data      any    `json:"data"`
	Nonce     int64  `json:"nonce"`
	SignedBy  string `json:"signed_by"`
	SignedFor string `json:"signed_for"`
	Version   int    `json:"version"`
}

// Build produces a signed envelope addressed to recipient, carrying data as
// its payload. signedBy is the hex-encoded public key matching priv.
func Build(priv ed25519.PrivateKey, signedBy, recipient string, data any, version int) (Body, string, error) {
	body := Body{
		Data:      data,
		Nonce:     time.Now().UnixNano(),
		SignedBy:  signedBy,
		SignedFor: recipient,
		Version:   version,
	}
	canon, err := canonicalizeBody(body)
	if err != nil {
		return Body{}, "", fmt.Errorf("envelope: canonicalize: %w", err)
	}
	sig := ed25519.Sign(priv, canon)
	return body, "0x" + hex.EncodeToString(sig), nil
}

// Kind enumerates the ways verification can fail.
type Kind int

const (
	MissingField Kind = iota
	BadNonceType
	Stale
	BadSignatureFormat
	SignatureInvalid
	MalformedJSON
)

func (k Kind) String() string {
	switch k {
	case MissingField:
		return "MissingField"
	case BadNonceType:
		return "BadNonceType"
	case Stale:
		return "Stale"
	case BadSignatureFormat:
		return "BadSignatureFormat"
	case SignatureInvalid:
		return "SignatureInvalid"
	case MalformedJSON:
		return "MalformedJSON"
	default:
		return "Unknown"
	}
}

// Error is the typed verification failure. Callers branch on Kind rather
// than on an error string: every kind is a protocol violation, but only
// Stale carries an age worth logging.
type Error struct {
	Kind   Kind
	Field  string
	Age    time.Duration
	Reason string
}

func (e *Error) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("envelope: missing required field: %s", e.Field)
	case BadNonceType:
		return "envelope: invalid nonce type"
	case Stale:
		return fmt.Sprintf("envelope: request too stale (%.1fs old)", e.Age.Seconds())
	case BadSignatureFormat:
		return "envelope: invalid signature format"
	case SignatureInvalid:
		return "envelope: signature verification failed"
	case MalformedJSON:
		return fmt.Sprintf("envelope: invalid JSON: %s", e.Reason)
	default:
		return "envelope: verification failed"
	}
}

// Verify checks raw (the received envelope bytes) against hexSig, using
// resolvePub to map the signed_by identity string to its ed25519 public key.
func Verify(raw []byte, hexSig string, now time.Time, resolvePub func(signedBy string) (ed25519.PublicKey, error)) (map[string]any, error) {
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &Error{Kind: MalformedJSON, Reason: err.Error()}
	}

	for _, field := range []string{"data", "nonce", "signed_by", "signed_for"} {
		if _, ok := parsed[field]; !ok {
			return nil, &Error{Kind: MissingField, Field: field}
		}
	}

	if len(hexSig) < 2 || hexSig[:2] != "0x" {
		return nil, &Error{Kind: BadSignatureFormat}
	}

	if _, ok := parsed["nonce"].(float64); !ok {
		return nil, &Error{Kind: BadNonceType}
	}
	// Re-read the nonce as an exact integer: a float64 cannot hold a
	// nanosecond timestamp without rounding.
	var exact struct {
		Nonce json.Number `json:"nonce"`
	}
	if err := json.Unmarshal(raw, &exact); err != nil {
		return nil, &Error{Kind: BadNonceType}
	}
	nonce, err := exact.Nonce.Int64()
	if err != nil {
		return nil, &Error{Kind: BadNonceType}
	}

	age := now.UnixNano() - nonce
	if age > int64(AllowedDelta) {
		return nil, &Error{Kind: Stale, Age: time.Duration(age)}
	}

	signedBy, _ := parsed["signed_by"].(string)
	pub, err := resolvePub(signedBy)
	if err != nil {
		return nil, &Error{Kind: SignatureInvalid, Reason: err.Error()}
	}

	sigBytes, err := hex.DecodeString(hexSig[2:])
	if err != nil {
		return nil, &Error{Kind: BadSignatureFormat}
	}

	canon, err := canonicalizeMap(parsed)
	if err != nil {
		return nil, &Error{Kind: MalformedJSON, Reason: err.Error()}
	}

	if !ed25519.Verify(pub, canon, sigBytes) {
		return nil, &Error{Kind: SignatureInvalid}
	}

	return parsed, nil
}

// ExtractSender returns the signed_by identity from an already-verified body.
func ExtractSender(body map[string]any) string {
	s, _ := body["signed_by"].(string)
	return s
}

// ExtractReceiver returns the signed_for identity from an already-verified body.
func ExtractReceiver(body map[string]any) string {
	s, _ := body["signed_for"].(string)
	return s
}

// ExtractData returns the data payload from an already-verified body.
func ExtractData(body map[string]any) any {
	return body["data"]
}

// canonicalizeBody serializes body the same way a verifier will re-serialize
// the parsed JSON it receives: decode to a generic value, then re-marshal.
// encoding/json always emits map keys in sorted order, which is exactly the
// recursive lexicographic sort the protocol requires, at every nesting level,
// with no custom tree-walker.
func canonicalizeBody(body Body) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

func canonicalizeMap(parsed map[string]any) ([]byte, error) {
	return json.Marshal(parsed)
}

// NewKeypair generates a fresh Ed25519 signing key, used by mock-mode
// wallets and tests.
func NewKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// HexPublicKey renders a public key the way hotkeys are compared against
// signed_by strings throughout this package.
func HexPublicKey(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}
