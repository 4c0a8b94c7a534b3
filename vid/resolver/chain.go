// SPDX-License-Identifier: LGPL-3.0-or-later

package resolver

import (
	"strings"

	"github.com/trust-spanning/tsp-go/tsperr"
	"github.com/trust-spanning/tsp-go/vid"
)

// SchemeResolver dispatches to a did:web or did:peer resolver based on the
// identifier's scheme prefix, the way the teacher's MultiChainResolver
// dispatches by chain name.
type SchemeResolver struct {
	web  vid.Resolver
	peer vid.Resolver
}

// NewSchemeResolver builds a resolver covering both identifier schemes the
// core understands semantically.
func NewSchemeResolver(web vid.Resolver) *SchemeResolver {
	return &SchemeResolver{web: web, peer: PeerResolver{}}
}

func (s *SchemeResolver) Resolve(identifier string) (vid.VerifiedVid, error) {
	switch {
	case strings.HasPrefix(identifier, "did:web:"):
		return s.web.Resolve(identifier)
	case strings.HasPrefix(identifier, "did:peer:"):
		return s.peer.Resolve(identifier)
	default:
		return nil, tsperr.ForVid(tsperr.KindInvalidVid, "unsupported identifier scheme", identifier)
	}
}
