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

// Package tsperr holds the typed error taxonomy shared by every TSP package.
package tsperr

import (
	"errors"
	"fmt"
)

// Kind classifies a TSP error for programmatic handling.
type Kind string

const (
	KindEncode              Kind = "encode"
	KindDecode              Kind = "decode"
	KindTransport           Kind = "transport"
	KindCryptographic       Kind = "cryptographic"
	KindVerify              Kind = "verify"
	KindUnexpectedRecipient Kind = "unexpected_recipient"
	KindUnverifiedVid       Kind = "unverified_vid"
	KindMissingPrivateVid   Kind = "missing_private_vid"
	KindInvalidRoute        Kind = "invalid_route"
	KindRelationship        Kind = "relationship"
	KindUtf8                Kind = "utf8"
	KindInvalidVid          Kind = "invalid_vid"
	KindResolveVid          Kind = "resolve_vid"
	KindInternal            Kind = "internal"
)

// Error is the single error type returned by every TSP package. It carries a
// Kind for programmatic dispatch, a human-readable message, an optional
// identifier the error is about (e.g. the VID that could not be resolved),
// and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	VID     string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.VID != "" && e.Cause != nil:
		return fmt.Sprintf("tsp: %s: %s (%s): %v", e.Kind, e.Message, e.VID, e.Cause)
	case e.VID != "":
		return fmt.Sprintf("tsp: %s: %s (%s)", e.Kind, e.Message, e.VID)
	case e.Cause != nil:
		return fmt.Sprintf("tsp: %s: %s: %v", e.Kind, e.Message, e.Cause)
	default:
		return fmt.Sprintf("tsp: %s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, tsperr.New(kind, "")) style matching on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.VID == "" && t.Cause == nil {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New builds a bare Error of the given Kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given Kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ForVid builds an Error of the given Kind about a specific identifier.
func ForVid(kind Kind, message, vid string) *Error {
	return &Error{Kind: kind, Message: message, VID: vid}
}

// Of reports the Kind of err, if err is (or wraps) a *Error.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}

func UnverifiedVid(id string) *Error {
	return ForVid(KindUnverifiedVid, "identifier is not a known verified VID", id)
}

func MissingPrivateVid(id string) *Error {
	return ForVid(KindMissingPrivateVid, "identifier does not have a private VID under our control", id)
}

func InvalidRoute(reason string) *Error {
	return New(KindInvalidRoute, reason)
}

func Relationship(reason string) *Error {
	return New(KindRelationship, reason)
}

func ResolveVid(reason string) *Error {
	return New(KindResolveVid, reason)
}

var ErrUnexpectedRecipient = New(KindUnexpectedRecipient, "envelope is not addressed to this VID")
