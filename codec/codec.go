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

// Package codec implements the CESR-style tagged binary framing of a TSP
// envelope: PREFIX || SENDER || [RECEIVER] || [NONCONFIDENTIAL] ||
// [CIPHERTEXT] || SIGNATURE. Every part after the prefix is a one-byte kind
// tag followed by a four-byte big-endian length and that many data bytes.
// Decoding never copies: every returned slice aliases the input buffer.
package codec

import (
	"encoding/binary"

	"github.com/trust-spanning/tsp-go/tsperr"
)

// Prefix is the fixed magic that opens every TSP envelope.
var Prefix = [4]byte{'T', 'S', 'P', '1'}

type partTag byte

const (
	tagSender        partTag = 1
	tagReceiver      partTag = 2
	tagNonconfident  partTag = 3
	tagCiphertext    partTag = 4
	tagSignature     partTag = 5
)

const headerLen = 1 + 4 // tag + uint32 length

// Parts is the fully decoded, zero-copy view of an envelope. Optional
// fields are nil when absent.
type Parts struct {
	Sender          []byte
	Receiver        []byte
	Nonconfidential []byte
	Ciphertext      []byte
	Signature       []byte
	// SignedRange is the byte range of the original buffer the signature
	// was computed over: everything before the signature part.
	SignedRange []byte
}

// Kind distinguishes a SignedMessage from an EncryptedMessage without
// touching the ciphertext.
type Kind int

const (
	KindSigned Kind = iota
	KindEncrypted
)

// Probed is the cheap, non-allocating result of Probe.
type Probed struct {
	Kind     Kind
	Sender   []byte
	Receiver []byte // nil if absent
}

// Encode assembles an envelope from its parts. receiver, nonconfidential and
// ciphertext may be nil to omit that part; signature must be non-nil.
func Encode(sender, receiver, nonconfidential, ciphertext, signature []byte) []byte {
	return AppendSignature(EncodeUnsigned(sender, receiver, nonconfidential, ciphertext), signature)
}

// EncodeUnsigned assembles every part except the signature, returning the
// exact byte range that a signature must be computed over.
func EncodeUnsigned(sender, receiver, nonconfidential, ciphertext []byte) []byte {
	size := len(Prefix) + headerLen + len(sender)
	if receiver != nil {
		size += headerLen + len(receiver)
	}
	if nonconfidential != nil {
		size += headerLen + len(nonconfidential)
	}
	if ciphertext != nil {
		size += headerLen + len(ciphertext)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, Prefix[:]...)
	buf = appendPart(buf, tagSender, sender)
	if receiver != nil {
		buf = appendPart(buf, tagReceiver, receiver)
	}
	if nonconfidential != nil {
		buf = appendPart(buf, tagNonconfident, nonconfidential)
	}
	if ciphertext != nil {
		buf = appendPart(buf, tagCiphertext, ciphertext)
	}
	return buf
}

// AppendSignature appends the signature part to a buffer produced by
// EncodeUnsigned, completing the envelope.
func AppendSignature(unsigned, signature []byte) []byte {
	return appendPart(append([]byte{}, unsigned...), tagSignature, signature)
}

func appendPart(buf []byte, tag partTag, data []byte) []byte {
	buf = append(buf, byte(tag))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, data...)
}

// readPart reads one tag+length+data group starting at b[0]. It returns the
// tag, the data slice (aliasing b), and the number of bytes consumed.
func readPart(b []byte) (partTag, []byte, int, error) {
	if len(b) < headerLen {
		return 0, nil, 0, tsperr.New(tsperr.KindDecode, "truncated part header")
	}
	tag := partTag(b[0])
	n := binary.BigEndian.Uint32(b[1:5])
	end := headerLen + int(n)
	if end > len(b) || end < headerLen {
		return 0, nil, 0, tsperr.New(tsperr.KindDecode, "part length extends past buffer")
	}
	return tag, b[headerLen:end], end, nil
}

// Probe identifies the envelope kind and extracts the sender and optional
// receiver identifiers without decrypting or allocating. It stops scanning
// as soon as it has answered that question; it does not validate the rest
// of the frame.
func Probe(b []byte) (Probed, error) {
	if len(b) < len(Prefix) || [4]byte(b[:4]) != Prefix {
		return Probed{}, tsperr.New(tsperr.KindDecode, "missing TSP envelope prefix")
	}
	b = b[len(Prefix):]

	tag, sender, n, err := readPart(b)
	if err != nil {
		return Probed{}, err
	}
	if tag != tagSender {
		return Probed{}, tsperr.New(tsperr.KindDecode, "expected sender part first")
	}
	b = b[n:]

	var receiver []byte
	if len(b) >= headerLen {
		if tag, data, n, err := readPart(b); err == nil && tag == tagReceiver {
			receiver = data
			b = b[n:]
		}
	}

	// Scan the remaining parts only far enough to learn whether a
	// ciphertext part is present.
	kind := KindSigned
	for len(b) >= headerLen {
		tag, _, n, err := readPart(b)
		if err != nil {
			break
		}
		if tag == tagCiphertext {
			kind = KindEncrypted
			break
		}
		if tag == tagSignature {
			break
		}
		b = b[n:]
	}

	return Probed{Kind: kind, Sender: sender, Receiver: receiver}, nil
}

// GetSenderReceiver is a thin convenience wrapper over Probe for callers
// that only need the identifiers.
func GetSenderReceiver(b []byte) (sender []byte, receiver []byte, err error) {
	p, err := Probe(b)
	if err != nil {
		return nil, nil, err
	}
	return p.Sender, p.Receiver, nil
}

// DecodeParts fully decodes an envelope, validating part ordering and
// enforcing that sender and signature are present.
func DecodeParts(b []byte) (Parts, error) {
	if len(b) < len(Prefix) || [4]byte(b[:4]) != Prefix {
		return Parts{}, tsperr.New(tsperr.KindDecode, "missing TSP envelope prefix")
	}
	full := b
	rest := b[len(Prefix):]

	var parts Parts
	var haveSender, haveSignature bool
	state := 0 // 0=expect sender, 1=after sender, 2=after receiver, 3=after nonconfidential, 4=after ciphertext

	for len(rest) > 0 {
		tag, data, n, err := readPart(rest)
		if err != nil {
			return Parts{}, err
		}
		switch tag {
		case tagSender:
			if state != 0 {
				return Parts{}, tsperr.New(tsperr.KindDecode, "unexpected sender part ordering")
			}
			parts.Sender = data
			haveSender = true
			state = 1
		case tagReceiver:
			if state != 1 {
				return Parts{}, tsperr.New(tsperr.KindDecode, "unexpected receiver part ordering")
			}
			parts.Receiver = data
			state = 2
		case tagNonconfident:
			if state > 2 {
				return Parts{}, tsperr.New(tsperr.KindDecode, "unexpected nonconfidential part ordering")
			}
			parts.Nonconfidential = data
			state = 3
		case tagCiphertext:
			if state > 3 {
				return Parts{}, tsperr.New(tsperr.KindDecode, "unexpected ciphertext part ordering")
			}
			parts.Ciphertext = data
			state = 4
		case tagSignature:
			parts.Signature = data
			haveSignature = true
			// SignedRange covers everything up to (excluding) this part.
			consumedBeforeSig := len(full) - len(rest)
			parts.SignedRange = full[:consumedBeforeSig]
			rest = rest[n:]
			if len(rest) != 0 {
				return Parts{}, tsperr.New(tsperr.KindDecode, "trailing bytes after signature")
			}
			continue
		default:
			return Parts{}, tsperr.New(tsperr.KindDecode, "unknown envelope part tag")
		}
		rest = rest[n:]
	}

	if !haveSender {
		return Parts{}, tsperr.New(tsperr.KindDecode, "envelope missing sender part")
	}
	if !haveSignature {
		return Parts{}, tsperr.New(tsperr.KindDecode, "envelope missing signature part")
	}
	return parts, nil
}
