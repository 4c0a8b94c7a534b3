// SPDX-License-Identifier: LGPL-3.0-or-later

package store

import (
	"encoding/hex"

	"github.com/trust-spanning/tsp-go/keys"
	"github.com/trust-spanning/tsp-go/tsperr"
	"github.com/trust-spanning/tsp-go/vid"
)

// OwnedVidRecord is the persisted representation of a VID we control.
type OwnedVidRecord struct {
	Identifier    string `json:"id"`
	Endpoint      string `json:"transport"`
	VerifyingKey  string `json:"public-sigkey"`
	EncryptionKey string `json:"public-enckey"`
	SigningKey    string `json:"sigkey"`
	DecryptionKey string `json:"enckey"`
	ParentVid     string `json:"parent-vid,omitempty"`
	RelationVid   string `json:"relation-vid,omitempty"`
}

// VerifiedVidRecord is the persisted representation of a VID we only know
// about, without private key material.
type VerifiedVidRecord struct {
	Identifier    string `json:"id"`
	Endpoint      string `json:"transport"`
	VerifyingKey  string `json:"public-sigkey"`
	EncryptionKey string `json:"public-enckey"`
	ParentVid     string `json:"parent-vid,omitempty"`
	RelationVid   string `json:"relation-vid,omitempty"`
}

// Snapshot is the full exportable state of a Store, matching the layout a
// node persists to disk between runs.
type Snapshot struct {
	Owned    []OwnedVidRecord    `json:"owned-vids"`
	Verified []VerifiedVidRecord `json:"verified-vids"`
}

// Export captures every known VID, split into owned (with private keys)
// and verified-only (without) records. Relationship status and routes are
// intentionally not persisted: they are re-negotiated on restart.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap Snapshot
	for _, ctx := range s.contexts {
		parent, _ := ctx.Vid.ParentVid()
		relation, _ := ctx.Vid.RelationVid()
		if ctx.Private != nil {
			snap.Owned = append(snap.Owned, OwnedVidRecord{
				Identifier:    ctx.Private.Identifier(),
				Endpoint:      ctx.Private.Endpoint().String(),
				VerifyingKey:  keyHex(ctx.Private.VerifyingKey()),
				EncryptionKey: keyHex(ctx.Private.EncryptionKey()),
				SigningKey:    keyHex(ctx.Private.SigningKey()),
				DecryptionKey: keyHex(ctx.Private.DecryptionKey()),
				ParentVid:     parent,
				RelationVid:   relation,
			})
			continue
		}
		snap.Verified = append(snap.Verified, VerifiedVidRecord{
			Identifier:    ctx.Vid.Identifier(),
			Endpoint:      ctx.Vid.Endpoint().String(),
			VerifyingKey:  keyHex(ctx.Vid.VerifyingKey()),
			EncryptionKey: keyHex(ctx.Vid.EncryptionKey()),
			ParentVid:     parent,
			RelationVid:   relation,
		})
	}
	return snap
}

// Import loads a Snapshot into the store, overwriting any existing entries
// with the same identifier.
func (s *Store) Import(snap Snapshot) error {
	for _, rec := range snap.Verified {
		verifying, err := decodeKey32(rec.VerifyingKey)
		if err != nil {
			return tsperr.Wrap(tsperr.KindDecode, "decode verifying key", err)
		}
		encryption, err := decodeKey32(rec.EncryptionKey)
		if err != nil {
			return tsperr.Wrap(tsperr.KindDecode, "decode encryption key", err)
		}
		v, err := vid.NewVerifiedVid(rec.Identifier, rec.Endpoint,
			keys.SigningPublicKey(verifying), keys.EncryptionPublicKey(encryption),
			rec.ParentVid, rec.RelationVid)
		if err != nil {
			return err
		}
		if err := s.AddVerifiedVid(v); err != nil {
			return err
		}
	}
	for _, rec := range snap.Owned {
		signing, err := decodeKey32(rec.SigningKey)
		if err != nil {
			return tsperr.Wrap(tsperr.KindDecode, "decode signing key", err)
		}
		decryption, err := decodeKey32(rec.DecryptionKey)
		if err != nil {
			return tsperr.Wrap(tsperr.KindDecode, "decode decryption key", err)
		}
		ov, err := vid.NewOwnedVidFromKeys(rec.Identifier, rec.Endpoint,
			keys.SigningPrivateKey(signing), keys.EncryptionPrivateKey(decryption),
			rec.ParentVid, rec.RelationVid)
		if err != nil {
			return err
		}
		if err := s.AddPrivateVid(ov); err != nil {
			return err
		}
	}
	return nil
}

// keyHex hex-encodes any of the fixed-size key types, all of which share
// the underlying representation [32]byte.
func keyHex[K ~[32]byte](k K) string {
	b := [32]byte(k)
	return hex.EncodeToString(b[:])
}

func decodeKey32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, tsperr.New(tsperr.KindDecode, "expected 32-byte hex-encoded key")
	}
	copy(out[:], raw)
	return out, nil
}
