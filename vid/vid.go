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

// Package vid holds the Verified Identifier data model: the capability set
// every TSP participant is addressed by, and the owned variant that also
// carries private key material.
package vid

import (
	"net/url"

	"github.com/trust-spanning/tsp-go/keys"
)

// VerifiedVid is the public capability set of a TSP participant: an
// identifier, a transport endpoint, and the two public keys needed to
// verify and encrypt to it.
type VerifiedVid interface {
	Identifier() string
	Endpoint() *url.URL
	VerifyingKey() keys.SigningPublicKey
	EncryptionKey() keys.EncryptionPublicKey
	ParentVid() (string, bool)
	RelationVid() (string, bool)
}

// OwnedVid additionally carries the private keys this process controls.
type OwnedVid interface {
	VerifiedVid
	SigningKey() keys.SigningPrivateKey
	DecryptionKey() keys.EncryptionPrivateKey
}

// Mutable is implemented by the concrete VID types so the store can update
// the parent/relation links recorded on an already-inserted VID.
type Mutable interface {
	SetParentVid(string)
	SetRelationVid(string)
}

// Resolver abstracts "given an identifier, produce a VerifiedVid". Concrete
// resolvers (did:web, did:peer) live outside the core.
type Resolver interface {
	Resolve(identifier string) (VerifiedVid, error)
}
