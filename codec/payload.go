// SPDX-License-Identifier: LGPL-3.0-or-later

package codec

import (
	"encoding/binary"

	"github.com/trust-spanning/tsp-go/tsperr"
)

// PayloadKind tags the variant carried inside a sealed or signed envelope.
type PayloadKind byte

const (
	PayloadContent PayloadKind = iota
	PayloadNestedMessage
	PayloadRoutedMessage
	PayloadRequestRelationship
	PayloadAcceptRelationship
	PayloadCancelRelationship
)

// Payload is the tagged union carried as the plaintext (or signed body) of
// a TSP envelope.
type Payload struct {
	Kind     PayloadKind
	Bytes    []byte     // Content, NestedMessage
	Hops     [][]byte   // RoutedMessage: remaining hop identifiers
	Inner    []byte     // RoutedMessage: opaque inner envelope bytes
	ThreadID [32]byte   // AcceptRelationship, CancelRelationship
}

// Marshal serializes a Payload into its inner byte representation.
func (p Payload) Marshal() []byte {
	switch p.Kind {
	case PayloadContent, PayloadNestedMessage:
		buf := make([]byte, 0, 5+len(p.Bytes))
		buf = append(buf, byte(p.Kind))
		buf = appendLenPrefixed(buf, p.Bytes)
		return buf
	case PayloadRoutedMessage:
		buf := []byte{byte(p.Kind)}
		var hopCount [2]byte
		binary.BigEndian.PutUint16(hopCount[:], uint16(len(p.Hops)))
		buf = append(buf, hopCount[:]...)
		for _, hop := range p.Hops {
			buf = appendLenPrefixed(buf, hop)
		}
		buf = appendLenPrefixed(buf, p.Inner)
		return buf
	case PayloadRequestRelationship:
		return []byte{byte(p.Kind)}
	case PayloadAcceptRelationship, PayloadCancelRelationship:
		buf := make([]byte, 0, 33)
		buf = append(buf, byte(p.Kind))
		buf = append(buf, p.ThreadID[:]...)
		return buf
	default:
		return []byte{byte(p.Kind)}
	}
}

func appendLenPrefixed(buf, data []byte) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(data)))
	buf = append(buf, l[:]...)
	return append(buf, data...)
}

func readLenPrefixed(b []byte) (data []byte, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, tsperr.New(tsperr.KindDecode, "truncated length-prefixed field")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, tsperr.New(tsperr.KindDecode, "length-prefixed field extends past buffer")
	}
	return b[:n], b[n:], nil
}

// UnmarshalPayload parses the inner byte representation produced by Marshal.
func UnmarshalPayload(b []byte) (Payload, error) {
	if len(b) < 1 {
		return Payload{}, tsperr.New(tsperr.KindDecode, "empty payload")
	}
	kind := PayloadKind(b[0])
	rest := b[1:]

	switch kind {
	case PayloadContent, PayloadNestedMessage:
		data, rest, err := readLenPrefixed(rest)
		if err != nil {
			return Payload{}, err
		}
		if len(rest) != 0 {
			return Payload{}, tsperr.New(tsperr.KindDecode, "trailing bytes after payload content")
		}
		return Payload{Kind: kind, Bytes: data}, nil

	case PayloadRoutedMessage:
		if len(rest) < 2 {
			return Payload{}, tsperr.New(tsperr.KindDecode, "truncated routed message hop count")
		}
		hopCount := binary.BigEndian.Uint16(rest[:2])
		rest = rest[2:]
		hops := make([][]byte, 0, hopCount)
		for i := uint16(0); i < hopCount; i++ {
			var hop []byte
			var err error
			hop, rest, err = readLenPrefixed(rest)
			if err != nil {
				return Payload{}, err
			}
			hops = append(hops, hop)
		}
		inner, rest, err := readLenPrefixed(rest)
		if err != nil {
			return Payload{}, err
		}
		if len(rest) != 0 {
			return Payload{}, tsperr.New(tsperr.KindDecode, "trailing bytes after routed message")
		}
		return Payload{Kind: kind, Hops: hops, Inner: inner}, nil

	case PayloadRequestRelationship:
		if len(rest) != 0 {
			return Payload{}, tsperr.New(tsperr.KindDecode, "trailing bytes after request-relationship")
		}
		return Payload{Kind: kind}, nil

	case PayloadAcceptRelationship, PayloadCancelRelationship:
		if len(rest) != 32 {
			return Payload{}, tsperr.New(tsperr.KindDecode, "relationship control payload missing thread id")
		}
		var threadID [32]byte
		copy(threadID[:], rest)
		return Payload{Kind: kind, ThreadID: threadID}, nil

	default:
		return Payload{}, tsperr.New(tsperr.KindDecode, "unknown payload kind")
	}
}
