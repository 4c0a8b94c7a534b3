// SPDX-License-Identifier: LGPL-3.0-or-later

package store

import "github.com/trust-spanning/tsp-go/keys"

// RelationKind enumerates the relationship-status sum type. Controlled is
// reserved: the core defines it but never enters it from inbound traffic.
type RelationKind int

const (
	Unrelated RelationKind = iota
	Unidirectional
	Bidirectional
	Controlled
)

func (k RelationKind) String() string {
	switch k {
	case Unrelated:
		return "unrelated"
	case Unidirectional:
		return "unidirectional"
	case Bidirectional:
		return "bidirectional"
	case Controlled:
		return "controlled"
	default:
		return "unknown"
	}
}

// RelationStatus is the relationship-state sum type: Unrelated carries no
// data, Unidirectional/Bidirectional carry the thread id that correlates
// the request to its accept, Controlled carries nothing and is reserved.
type RelationStatus struct {
	Kind     RelationKind
	ThreadID keys.Digest
}

func UnrelatedStatus() RelationStatus { return RelationStatus{Kind: Unrelated} }

func UnidirectionalStatus(t keys.Digest) RelationStatus {
	return RelationStatus{Kind: Unidirectional, ThreadID: t}
}

func BidirectionalStatus(t keys.Digest) RelationStatus {
	return RelationStatus{Kind: Bidirectional, ThreadID: t}
}
