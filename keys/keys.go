// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package keys holds the fixed-size key material TSP VIDs are built from:
// an Ed25519 signing keypair and an X25519 encryption keypair. The two roles
// are never converted into each other; a VID always carries both.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/cloudflare/circl/hpke"
)

// KeyData is the fixed-size octet representation every TSP key role shares
// on the wire and in the store.
type KeyData [32]byte

// SigningPrivateKey is an Ed25519 seed (the 32-byte form, not the 64-byte
// expanded private key).
type SigningPrivateKey KeyData

// SigningPublicKey is an Ed25519 public key.
type SigningPublicKey KeyData

// EncryptionPrivateKey is an X25519 scalar.
type EncryptionPrivateKey KeyData

// EncryptionPublicKey is an X25519 point.
type EncryptionPublicKey KeyData

// Digest is a SHA-256 output, used as the relationship thread identifier.
type Digest [32]byte

// Sha256 hashes b into a Digest.
func Sha256(b []byte) Digest {
	return Digest(sha256.Sum256(b))
}

func (d Digest) String() string {
	return fmt.Sprintf("%x", [32]byte(d))
}

// SigningKeyPair is an Ed25519 keypair used for envelope signatures.
type SigningKeyPair struct {
	Public  SigningPublicKey
	private ed25519.PrivateKey
}

// GenerateSigningKeyPair generates a fresh Ed25519 signing keypair.
func GenerateSigningKeyPair() (*SigningKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keys: generate signing keypair: %w", err)
	}
	var spub SigningPublicKey
	copy(spub[:], pub)
	return &SigningKeyPair{Public: spub, private: priv}, nil
}

// SigningKeyPairFromSeed rebuilds a keypair from a stored 32-byte seed.
func SigningKeyPairFromSeed(seed SigningPrivateKey) *SigningKeyPair {
	priv := ed25519.NewKeyFromSeed(seed[:])
	var pub SigningPublicKey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &SigningKeyPair{Public: pub, private: priv}
}

// Private returns the 32-byte seed suitable for storage.
func (kp *SigningKeyPair) Private() SigningPrivateKey {
	var seed SigningPrivateKey
	copy(seed[:], kp.private.Seed())
	return seed
}

// Sign signs message with the Ed25519 private key.
func (kp *SigningKeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.private, message)
}

// VerifySignature verifies a detached Ed25519 signature.
func VerifySignature(pub SigningPublicKey, message, signature []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), message, signature)
}

// EncryptionKeyPair is an X25519 keypair used for HPKE sealing.
type EncryptionKeyPair struct {
	Public  EncryptionPublicKey
	Private EncryptionPrivateKey
}

// GenerateEncryptionKeyPair generates a fresh X25519 keypair using the KEM
// scheme HPKE is configured with, so the raw bytes round-trip through
// hpke.KEM_X25519_HKDF_SHA256's (Un)MarshalBinary without re-derivation.
func GenerateEncryptionKeyPair() (*EncryptionKeyPair, error) {
	kem := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	pub, priv, err := kem.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("keys: generate encryption keypair: %w", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("keys: marshal encryption public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("keys: marshal encryption private key: %w", err)
	}
	var kp EncryptionKeyPair
	copy(kp.Public[:], pubBytes)
	copy(kp.Private[:], privBytes)
	return &kp, nil
}
