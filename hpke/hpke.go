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

// Package hpke implements the TSP sealing pipeline: HPKE-Base with
// X25519-HKDF-SHA256 + ChaCha20-Poly1305 for confidentiality, and a
// detached Ed25519 signature over the fully encoded envelope for
// authenticity. It depends only on small structural interfaces so it has
// no import-time coupling to the vid package.
package hpke

import (
	"crypto/rand"

	circlhpke "github.com/cloudflare/circl/hpke"
	"github.com/trust-spanning/tsp-go/codec"
	"github.com/trust-spanning/tsp-go/keys"
	"github.com/trust-spanning/tsp-go/tsperr"
)

func suite() circlhpke.Suite {
	return circlhpke.NewSuite(
		circlhpke.KEM_X25519_HKDF_SHA256,
		circlhpke.KDF_HKDF_SHA256,
		circlhpke.AEAD_ChaCha20Poly1305,
	)
}

// Signer is a VID capable of producing envelope signatures.
type Signer interface {
	Identifier() string
	SigningKey() keys.SigningPrivateKey
}

// Verifier is a VID whose signature can be checked.
type Verifier interface {
	Identifier() string
	VerifyingKey() keys.SigningPublicKey
}

// Encryptor is a VID that can receive an HPKE-sealed message.
type Encryptor interface {
	Identifier() string
	EncryptionKey() keys.EncryptionPublicKey
}

// Decryptor is a VID capable of opening an HPKE-sealed message.
type Decryptor interface {
	Identifier() string
	DecryptionKey() keys.EncryptionPrivateKey
}

// buildInfo binds sender, receiver and any non-confidential data into the
// HPKE context so ciphertexts cannot be replayed against a different pair.
func buildInfo(senderID, receiverID string, nonconfidential []byte) []byte {
	info := make([]byte, 0, len(senderID)+len(receiverID)+len(nonconfidential)+2)
	info = append(info, senderID...)
	info = append(info, 0)
	info = append(info, receiverID...)
	info = append(info, 0)
	info = append(info, nonconfidential...)
	return info
}

func sign(sender Signer, unsigned []byte) []byte {
	kp := keys.SigningKeyPairFromSeed(sender.SigningKey())
	return kp.Sign(unsigned)
}

// Seal encrypts payload for receiver and signs the result with sender's key.
func Seal(sender Signer, receiver Encryptor, nonconfidential []byte, payload codec.Payload) ([]byte, error) {
	plaintext := payload.Marshal()
	info := buildInfo(sender.Identifier(), receiver.Identifier(), nonconfidential)

	kem := circlhpke.KEM_X25519_HKDF_SHA256.Scheme()
	pubKey := receiver.EncryptionKey()
	rp, err := kem.UnmarshalBinaryPublicKey(pubKey[:])
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindCryptographic, "unmarshal receiver encryption key", err)
	}

	s, err := suite().NewSender(rp, info)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindCryptographic, "hpke new sender", err)
	}
	enc, sealer, err := s.Setup(rand.Reader)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindCryptographic, "hpke sender setup", err)
	}
	ct, err := sealer.Seal(plaintext, info)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindCryptographic, "hpke seal", err)
	}
	ciphertext := append(append([]byte{}, enc...), ct...)

	unsigned := codec.EncodeUnsigned([]byte(sender.Identifier()), []byte(receiver.Identifier()), nonconfidential, ciphertext)
	signature := sign(sender, unsigned)
	return codec.AppendSignature(unsigned, signature), nil
}

// SealAndHash seals payload and additionally returns the SHA-256 digest of
// the complete returned envelope — the relationship thread id. Since the
// envelope travels byte-for-byte to the receiver, hashing the full frame
// again there (see Store.OpenMessage's RequestRelationship case) reproduces
// the identical digest without either side needing to agree on any range
// narrower than "the whole received frame".
func SealAndHash(sender Signer, receiver Encryptor, nonconfidential []byte, payload codec.Payload) ([]byte, keys.Digest, error) {
	b, err := Seal(sender, receiver, nonconfidential, payload)
	if err != nil {
		return nil, keys.Digest{}, err
	}
	return b, keys.Sha256(b), nil
}

// Identified is satisfied by any VID capability set; Sign only needs the
// optional receiver's identifier, not its keys.
type Identified interface {
	Identifier() string
}

// Sign produces a signed-only envelope with no ciphertext part.
func Sign(sender Signer, receiver Identified, nonconfidential []byte) []byte {
	var receiverID []byte
	if receiver != nil {
		receiverID = []byte(receiver.Identifier())
	}
	unsigned := codec.EncodeUnsigned([]byte(sender.Identifier()), receiverID, nonconfidential, nil)
	signature := sign(sender, unsigned)
	return codec.AppendSignature(unsigned, signature)
}

// kemEncLen is the fixed length, in bytes, of an X25519 HPKE encapsulated key.
const kemEncLen = 32

// Open verifies and decrypts an encrypted envelope addressed to receiver
// and originated by sender. It returns the non-confidential data (if any),
// the decoded payload, and the signed byte range (the envelope without its
// signature part). Thread ids are not derived from this range: they hash
// the whole envelope (see SealAndHash).
func Open(receiver Decryptor, sender Verifier, raw []byte) (nonconfidential []byte, payload codec.Payload, signedRange []byte, err error) {
	parts, derr := codec.DecodeParts(raw)
	if derr != nil {
		return nil, codec.Payload{}, nil, derr
	}
	if !keys.VerifySignature(sender.VerifyingKey(), parts.SignedRange, parts.Signature) {
		return nil, codec.Payload{}, nil, tsperr.New(tsperr.KindVerify, "envelope signature does not verify")
	}
	if string(parts.Receiver) != receiver.Identifier() {
		return nil, codec.Payload{}, nil, tsperr.ErrUnexpectedRecipient
	}
	if parts.Ciphertext == nil {
		return nil, codec.Payload{}, nil, tsperr.New(tsperr.KindCryptographic, "encrypted envelope missing ciphertext part")
	}
	if len(parts.Ciphertext) < kemEncLen {
		return nil, codec.Payload{}, nil, tsperr.New(tsperr.KindCryptographic, "ciphertext shorter than HPKE encapsulated key")
	}
	enc := parts.Ciphertext[:kemEncLen]
	ct := parts.Ciphertext[kemEncLen:]

	info := buildInfo(sender.Identifier(), receiver.Identifier(), parts.Nonconfidential)

	kem := circlhpke.KEM_X25519_HKDF_SHA256.Scheme()
	privKey := receiver.DecryptionKey()
	skR, uerr := kem.UnmarshalBinaryPrivateKey(privKey[:])
	if uerr != nil {
		return nil, codec.Payload{}, nil, tsperr.Wrap(tsperr.KindCryptographic, "unmarshal receiver decryption key", uerr)
	}
	r, nerr := suite().NewReceiver(skR, info)
	if nerr != nil {
		return nil, codec.Payload{}, nil, tsperr.Wrap(tsperr.KindCryptographic, "hpke new receiver", nerr)
	}
	opener, serr := r.Setup(enc)
	if serr != nil {
		return nil, codec.Payload{}, nil, tsperr.Wrap(tsperr.KindCryptographic, "hpke receiver setup", serr)
	}
	plaintext, oerr := opener.Open(ct, info)
	if oerr != nil {
		return nil, codec.Payload{}, nil, tsperr.Wrap(tsperr.KindCryptographic, "hpke open", oerr)
	}

	p, perr := codec.UnmarshalPayload(plaintext)
	if perr != nil {
		return nil, codec.Payload{}, nil, perr
	}
	return parts.Nonconfidential, p, parts.SignedRange, nil
}

// Verify checks a signed-only envelope and returns the authenticated
// non-confidential data.
func Verify(sender Verifier, raw []byte) ([]byte, error) {
	parts, err := codec.DecodeParts(raw)
	if err != nil {
		return nil, err
	}
	if !keys.VerifySignature(sender.VerifyingKey(), parts.SignedRange, parts.Signature) {
		return nil, tsperr.New(tsperr.KindVerify, "envelope signature does not verify")
	}
	return parts.Nonconfidential, nil
}

// Sha256 hashes b into a Digest, exposed here so callers do not need to
// import keys directly just to compute a thread id.
func Sha256(b []byte) keys.Digest {
	return keys.Sha256(b)
}
