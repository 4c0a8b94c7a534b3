// SPDX-License-Identifier: LGPL-3.0-or-later

package resolver

import (
	"github.com/mr-tron/base58"
	"github.com/trust-spanning/tsp-go/vid"
)

func base58Decode(s string) ([]byte, error) {
	return base58.Decode(s)
}

// PeerResolver resolves did:peer:2 identifiers by pure decoding; it never
// touches the network. It simply re-exports vid.PeerResolver so callers
// building a resolver chain can treat every scheme uniformly from this
// package.
type PeerResolver = vid.PeerResolver
