// SPDX-License-Identifier: LGPL-3.0-or-later

package vid

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/trust-spanning/tsp-go/keys"
	"github.com/trust-spanning/tsp-go/tsperr"
)

func parseURLOrEmpty(endpoint string) (*url.URL, error) {
	if endpoint == "" {
		return &url.URL{}, nil
	}
	return url.Parse(endpoint)
}

// multicodec prefixes for the key types carried in a did:peer:2 identifier.
var (
	multicodecEd25519Pub = [2]byte{0xed, 0x20}
	multicodecX25519Pub  = [2]byte{0xec, 0x20}
)

type peerService struct {
	T string `json:"t"`
	S struct {
		URI string `json:"uri"`
	} `json:"s"`
}

// encodeDidPeer builds a did:peer:2 identifier string from a signing
// public key, an encryption public key and a service endpoint URL.
func encodeDidPeer(verifying keys.SigningPublicKey, encryption keys.EncryptionPublicKey, endpoint string) (string, error) {
	edEncoded := base58.Encode(append(append([]byte{}, multicodecEd25519Pub[:]...), verifying[:]...))
	xEncoded := base58.Encode(append(append([]byte{}, multicodecX25519Pub[:]...), encryption[:]...))

	svc := peerService{T: "tsp"}
	svc.S.URI = endpoint
	svcJSON, err := json.Marshal(svc)
	if err != nil {
		return "", tsperr.Wrap(tsperr.KindEncode, "marshal did:peer service block", err)
	}
	svcEncoded := base64.RawURLEncoding.EncodeToString(svcJSON)

	return fmt.Sprintf("did:peer:2.Vz%s.Ez%s.S%s", edEncoded, xEncoded, svcEncoded), nil
}

// decodeDidPeer parses a did:peer:2 identifier back into its key material
// and service endpoint.
func decodeDidPeer(identifier string) (verifying keys.SigningPublicKey, encryption keys.EncryptionPublicKey, endpoint string, err error) {
	const prefix = "did:peer:2."
	if !strings.HasPrefix(identifier, prefix) {
		return verifying, encryption, "", tsperr.New(tsperr.KindInvalidVid, "not a did:peer:2 identifier")
	}
	segments := strings.Split(strings.TrimPrefix(identifier, prefix), ".")

	var haveV, haveE, haveS bool
	for _, seg := range segments {
		if len(seg) < 2 {
			continue
		}
		switch seg[0] {
		case 'V':
			if seg[1] != 'z' {
				return verifying, encryption, "", tsperr.New(tsperr.KindInvalidVid, "unsupported did:peer verification key encoding")
			}
			raw, derr := base58.Decode(seg[2:])
			if derr != nil {
				return verifying, encryption, "", tsperr.Wrap(tsperr.KindInvalidVid, "decode did:peer verification key", derr)
			}
			if len(raw) != 2+32 || raw[0] != multicodecEd25519Pub[0] || raw[1] != multicodecEd25519Pub[1] {
				return verifying, encryption, "", tsperr.New(tsperr.KindInvalidVid, "unexpected did:peer verification key multicodec")
			}
			copy(verifying[:], raw[2:])
			haveV = true
		case 'E':
			if seg[1] != 'z' {
				return verifying, encryption, "", tsperr.New(tsperr.KindInvalidVid, "unsupported did:peer encryption key encoding")
			}
			raw, derr := base58.Decode(seg[2:])
			if derr != nil {
				return verifying, encryption, "", tsperr.Wrap(tsperr.KindInvalidVid, "decode did:peer encryption key", derr)
			}
			if len(raw) != 2+32 || raw[0] != multicodecX25519Pub[0] || raw[1] != multicodecX25519Pub[1] {
				return verifying, encryption, "", tsperr.New(tsperr.KindInvalidVid, "unexpected did:peer encryption key multicodec")
			}
			copy(encryption[:], raw[2:])
			haveE = true
		case 'S':
			raw, derr := base64.RawURLEncoding.DecodeString(seg[1:])
			if derr != nil {
				return verifying, encryption, "", tsperr.Wrap(tsperr.KindInvalidVid, "decode did:peer service block", derr)
			}
			var svc peerService
			if jerr := json.Unmarshal(raw, &svc); jerr != nil {
				return verifying, encryption, "", tsperr.Wrap(tsperr.KindInvalidVid, "unmarshal did:peer service block", jerr)
			}
			endpoint = svc.S.URI
			haveS = true
		}
	}
	if !haveV || !haveE || !haveS {
		return verifying, encryption, "", tsperr.New(tsperr.KindInvalidVid, "did:peer:2 identifier missing a required segment")
	}
	return verifying, encryption, endpoint, nil
}

// CreateNestedVid derives a fresh owned VID whose identifier is the
// did:peer:2 self-encoding of its own freshly generated keys. relationVid,
// if non-empty, is recorded as the relation partner for nested sends.
func CreateNestedVid(endpoint, relationVid string) (OwnedVid, error) {
	signing, err := keys.GenerateSigningKeyPair()
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindInternal, "generate signing keypair", err)
	}
	enc, err := keys.GenerateEncryptionKeyPair()
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindInternal, "generate encryption keypair", err)
	}
	identifier, err := encodeDidPeer(signing.Public, enc.Public, endpoint)
	if err != nil {
		return nil, err
	}
	v := &verifiedVid{
		identifier: identifier,
		verifying:  signing.Public,
		encryption: enc.Public,
	}
	if u, uerr := parseURLOrEmpty(endpoint); uerr == nil {
		v.endpoint = u
	}
	if relationVid != "" {
		v.relation = &relationVid
	}
	return &ownedVid{verifiedVid: v, signingKey: signing.Private(), decryptionKey: enc.Private}, nil
}

// PeerResolver implements Resolver for did:peer:2 identifiers; it is pure
// decoding and never touches the network.
type PeerResolver struct{}

func (PeerResolver) Resolve(identifier string) (VerifiedVid, error) {
	verifying, encryption, endpoint, err := decodeDidPeer(identifier)
	if err != nil {
		return nil, err
	}
	u, uerr := parseURLOrEmpty(endpoint)
	if uerr != nil {
		return nil, tsperr.Wrap(tsperr.KindInvalidVid, "invalid did:peer service endpoint", uerr)
	}
	return &verifiedVid{identifier: identifier, endpoint: u, verifying: verifying, encryption: encryption}, nil
}
