// SPDX-License-Identifier: LGPL-3.0-or-later

package store

import (
	"github.com/trust-spanning/tsp-go/keys"
	"github.com/trust-spanning/tsp-go/vid"
)

// ReceivedKind distinguishes the variants OpenMessage can produce.
type ReceivedKind int

const (
	// GenericMessage carries application data, either signed-only or
	// signed-and-encrypted (see MessageKind).
	GenericMessage ReceivedKind = iota
	// RequestRelationship is an inbound relationship-formation request.
	RequestRelationship
	// AcceptRelationship confirms a relationship this process proposed.
	AcceptRelationship
	// CancelRelationship tears down a relationship, uni- or bidirectional.
	CancelRelationship
	// ForwardRequest asks the caller to relay an opaque envelope onward;
	// see Store.ForwardRoutedMessage.
	ForwardRequest
)

// MessageKind records how a GenericMessage's authenticity and
// confidentiality were established.
type MessageKind int

const (
	SignedAndEncrypted MessageKind = iota
	Signed
)

// Received is the result of Store.OpenMessage: a tagged union over the
// possible inbound message shapes.
type Received struct {
	Kind ReceivedKind
	// Sender is always populated with the verified originator of the
	// outermost (or, after unwrapping nested layers, innermost) envelope
	// actually consulted to produce this result.
	Sender vid.VerifiedVid

	// GenericMessage
	Nonconfidential []byte
	Message         []byte
	MessageKind     MessageKind

	// RequestRelationship only; AcceptRelationship and CancelRelationship
	// results leave it zero.
	ThreadID keys.Digest

	// ForwardRequest
	NextHop       vid.VerifiedVid
	Route         [][]byte
	OpaquePayload []byte
}
