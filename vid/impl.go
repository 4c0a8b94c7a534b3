// SPDX-License-Identifier: LGPL-3.0-or-later

package vid

import (
	"crypto/ecdh"
	"fmt"
	"net/url"

	"github.com/trust-spanning/tsp-go/keys"
	"github.com/trust-spanning/tsp-go/tsperr"
)

// encryptionPublicFromPrivate derives the X25519 public point from a raw
// scalar. Only used to reconstruct the public half of a decryption key
// loaded from storage; the HPKE seal/open path never goes through here.
func encryptionPublicFromPrivate(priv keys.EncryptionPrivateKey) keys.EncryptionPublicKey {
	p, err := ecdh.X25519().NewPrivateKey(priv[:])
	if err != nil {
		return keys.EncryptionPublicKey{}
	}
	var pub keys.EncryptionPublicKey
	copy(pub[:], p.PublicKey().Bytes())
	return pub
}

// verifiedVid is the concrete, immutable VerifiedVid implementation used
// throughout the store and resolvers.
type verifiedVid struct {
	identifier string
	endpoint   *url.URL
	verifying  keys.SigningPublicKey
	encryption keys.EncryptionPublicKey
	parent     *string
	relation   *string
}

// NewVerifiedVid builds a VerifiedVid from resolved capability data. parent
// and relation may be empty strings to indicate absence.
func NewVerifiedVid(identifier, endpoint string, verifying keys.SigningPublicKey, encryption keys.EncryptionPublicKey, parent, relation string) (VerifiedVid, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindInvalidVid, "invalid endpoint URL", err)
	}
	v := &verifiedVid{identifier: identifier, endpoint: u, verifying: verifying, encryption: encryption}
	if parent != "" {
		v.parent = &parent
	}
	if relation != "" {
		v.relation = &relation
	}
	return v, nil
}

func (v *verifiedVid) Identifier() string                     { return v.identifier }
func (v *verifiedVid) Endpoint() *url.URL                     { return v.endpoint }
func (v *verifiedVid) VerifyingKey() keys.SigningPublicKey     { return v.verifying }
func (v *verifiedVid) EncryptionKey() keys.EncryptionPublicKey { return v.encryption }

func (v *verifiedVid) ParentVid() (string, bool) {
	if v.parent == nil {
		return "", false
	}
	return *v.parent, true
}

func (v *verifiedVid) RelationVid() (string, bool) {
	if v.relation == nil {
		return "", false
	}
	return *v.relation, true
}

// SetParentVid mutates the parent link in place; used by Store.SetParentForVid.
func (v *verifiedVid) SetParentVid(parent string) {
	if parent == "" {
		v.parent = nil
		return
	}
	v.parent = &parent
}

// SetRelationVid mutates the relation link in place; used by Store.SetRelationForVid.
func (v *verifiedVid) SetRelationVid(relation string) {
	if relation == "" {
		v.relation = nil
		return
	}
	v.relation = &relation
}

func (v *verifiedVid) String() string {
	return fmt.Sprintf("VerifiedVid{id: %s, endpoint: %s}", v.identifier, v.endpoint)
}

// ownedVid wraps a VerifiedVid with the private keys this process controls.
// Debug output never prints the private keys.
type ownedVid struct {
	*verifiedVid
	signingKey    keys.SigningPrivateKey
	decryptionKey keys.EncryptionPrivateKey
}

func (o *ownedVid) SigningKey() keys.SigningPrivateKey       { return o.signingKey }
func (o *ownedVid) DecryptionKey() keys.EncryptionPrivateKey { return o.decryptionKey }

func (o *ownedVid) String() string {
	return fmt.Sprintf("OwnedVid{id: %s, endpoint: %s, keys: <redacted>}", o.identifier, o.endpoint)
}

func (o *ownedVid) GoString() string {
	return o.String()
}

// Bind creates a fresh owned VID: a new Ed25519 signing keypair and a new
// X25519 encryption keypair, bound to identifier and endpoint.
func Bind(identifier, endpoint string) (OwnedVid, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindInvalidVid, "invalid endpoint URL", err)
	}
	signing, err := keys.GenerateSigningKeyPair()
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindInternal, "generate signing keypair", err)
	}
	enc, err := keys.GenerateEncryptionKeyPair()
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindInternal, "generate encryption keypair", err)
	}
	return &ownedVid{
		verifiedVid: &verifiedVid{
			identifier: identifier,
			endpoint:   u,
			verifying:  signing.Public,
			encryption: enc.Public,
		},
		signingKey:    signing.Private(),
		decryptionKey: enc.Private,
	}, nil
}

// NewOwnedVidFromKeys reconstructs an owned VID from stored key material,
// used by snapshot import.
func NewOwnedVidFromKeys(identifier, endpoint string, signing keys.SigningPrivateKey, decryption keys.EncryptionPrivateKey, parent, relation string) (OwnedVid, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindInvalidVid, "invalid endpoint URL", err)
	}
	kp := keys.SigningKeyPairFromSeed(signing)
	encKP := encryptionPublicFromPrivate(decryption)
	v := &verifiedVid{identifier: identifier, endpoint: u, verifying: kp.Public, encryption: encKP}
	if parent != "" {
		v.parent = &parent
	}
	if relation != "" {
		v.relation = &relation
	}
	return &ownedVid{verifiedVid: v, signingKey: signing, decryptionKey: decryption}, nil
}
