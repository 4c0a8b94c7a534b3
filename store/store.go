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

// Package store is the heart of the system: a process-local table of
// verified and owned VIDs with per-VID relationship state, from which the
// correct send transform (direct/nested/routed) is derived and the correct
// inverse applied on receive, including in-transit forwarding and the
// relationship-formation state machine.
package store

import (
	"net/url"
	"sync"

	"github.com/trust-spanning/tsp-go/codec"
	"github.com/trust-spanning/tsp-go/hpke"
	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/keys"
	"github.com/trust-spanning/tsp-go/tsperr"
	"github.com/trust-spanning/tsp-go/vid"
)

// VidContext is the per-entry record the Store keeps for every identifier
// it knows about.
type VidContext struct {
	Vid            vid.VerifiedVid
	Private        vid.OwnedVid // nil unless this entry is one of ours
	RelationStatus RelationStatus
	Tunnel         []string // nil, or a source route of length >= 2
}

// Store is a process-local, concurrency-safe map from identifier to
// VidContext. Readers may run concurrently with each other; writers are
// exclusive. It is cheap to pass around by pointer — the map is shared.
type Store struct {
	mu       sync.RWMutex
	contexts map[string]*VidContext
	log      logger.Logger
}

// New creates an empty Store.
func New(log logger.Logger) *Store {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Store{contexts: make(map[string]*VidContext), log: log}
}

// --- Membership -------------------------------------------------------

// AddVerifiedVid registers v as a relationship, without private key
// material. If an owned entry already exists under this identifier its
// private half is preserved.
func (s *Store) AddVerifiedVid(v vid.VerifiedVid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[v.Identifier()]
	if !ok {
		s.contexts[v.Identifier()] = &VidContext{Vid: v}
		return nil
	}
	ctx.Vid = v
	return nil
}

// AddPrivateVid registers v as a VID this process controls.
func (s *Store) AddPrivateVid(v vid.OwnedVid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[v.Identifier()]
	if !ok {
		s.contexts[v.Identifier()] = &VidContext{Vid: v, Private: v}
		return nil
	}
	ctx.Vid = v
	ctx.Private = v
	return nil
}

// HasPrivateVid reports whether id is one of our owned VIDs.
func (s *Store) HasPrivateVid(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.contexts[id]
	return ok && ctx.Private != nil
}

// ListVids returns every known identifier. Order is unspecified.
func (s *Store) ListVids() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.contexts))
	for id := range s.contexts {
		out = append(out, id)
	}
	return out
}

func (s *Store) getVerifiedLocked(id string) (vid.VerifiedVid, error) {
	ctx, ok := s.contexts[id]
	if !ok {
		return nil, tsperr.UnverifiedVid(id)
	}
	return ctx.Vid, nil
}

// GetVerifiedVid resolves id to its verified view.
func (s *Store) GetVerifiedVid(id string) (vid.VerifiedVid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getVerifiedLocked(id)
}

func (s *Store) getPrivateLocked(id string) (vid.OwnedVid, error) {
	ctx, ok := s.contexts[id]
	if !ok || ctx.Private == nil {
		return nil, tsperr.MissingPrivateVid(id)
	}
	return ctx.Private, nil
}

// GetPrivateVid resolves id to its owned view, failing if we don't control it.
func (s *Store) GetPrivateVid(id string) (vid.OwnedVid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPrivateLocked(id)
}

// --- Relationship configuration ---------------------------------------

func (s *Store) modifyVid(id string, change func(*VidContext) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[id]
	if !ok {
		return tsperr.UnverifiedVid(id)
	}
	return change(ctx)
}

// SetParentForVid records the outer (publicly known) VID for a nested
// entry.
func (s *Store) SetParentForVid(id, parent string) error {
	return s.modifyVid(id, func(ctx *VidContext) error {
		m, ok := ctx.Vid.(vid.Mutable)
		if !ok {
			return tsperr.New(tsperr.KindInternal, "vid does not support mutation")
		}
		m.SetParentVid(parent)
		return nil
	})
}

// SetRelationForVid records the local/partner VID used for nested
// messaging with id.
func (s *Store) SetRelationForVid(id, relation string) error {
	return s.modifyVid(id, func(ctx *VidContext) error {
		m, ok := ctx.Vid.(vid.Mutable)
		if !ok {
			return tsperr.New(tsperr.KindInternal, "vid does not support mutation")
		}
		m.SetRelationVid(relation)
		return nil
	})
}

// SetRouteForVid records a source route to use when sending to id. A route
// of exactly one hop is invalid — it carries no intermediary.
func (s *Store) SetRouteForVid(id string, route []string) error {
	if len(route) == 1 {
		return tsperr.InvalidRoute("a route must have at least two VIDs")
	}
	return s.modifyVid(id, func(ctx *VidContext) error {
		ctx.Tunnel = route
		return nil
	})
}

// SetRelationStatusForVid overwrites the relationship status recorded for id.
func (s *Store) SetRelationStatusForVid(id string, status RelationStatus) error {
	return s.modifyVid(id, func(ctx *VidContext) error {
		ctx.RelationStatus = status
		return nil
	})
}

// RelationStatusForVid reads the relationship status recorded for id.
func (s *Store) RelationStatusForVid(id string) (RelationStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.contexts[id]
	if !ok {
		return RelationStatus{}, tsperr.UnverifiedVid(id)
	}
	return ctx.RelationStatus, nil
}

// --- Message construction (no I/O) -------------------------------------

// SealMessage is the common case: seal a plain Content payload for receiver,
// selecting direct/nested/routed transform per receiver's configuration.
func (s *Store) SealMessage(senderID, receiverID string, nonconfidential, message []byte) (*url.URL, []byte, error) {
	return s.SealMessagePayload(senderID, receiverID, nonconfidential, codec.Payload{Kind: codec.PayloadContent, Bytes: message})
}

// SealMessagePayload seals an arbitrary Payload for receiver, selecting the
// transform in priority order: routed > nested > direct. It does no I/O, so
// the read lock is held for the whole call rather than released early and
// reacquired — every VID field it touches is read at a single, consistent
// point in time.
func (s *Store) SealMessagePayload(senderID, receiverID string, nonconfidential []byte, payload codec.Payload) (*url.URL, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	senderCtx, ok := s.contexts[senderID]
	if !ok || senderCtx.Private == nil {
		return nil, nil, tsperr.MissingPrivateVid(senderID)
	}
	receiverCtx, ok := s.contexts[receiverID]
	if !ok {
		return nil, nil, tsperr.UnverifiedVid(receiverID)
	}
	sender := senderCtx.Private
	receiver := receiverCtx.Vid

	switch {
	case len(receiverCtx.Tunnel) > 0:
		return s.sealRoutedLocked(receiver, receiverCtx.Tunnel, nonconfidential, payload)
	case mustHaveParent(receiver):
		return s.sealNestedLocked(sender, receiver, nonconfidential, payload)
	default:
		b, err := hpke.Seal(sender, receiver, nonconfidential, payload)
		if err != nil {
			return nil, nil, err
		}
		return receiver.Endpoint(), b, nil
	}
}

func mustHaveParent(v vid.VerifiedVid) bool {
	_, ok := v.ParentVid()
	return ok
}

// sealNestedLocked assumes the caller already holds s.mu for reading.
func (s *Store) sealNestedLocked(sender vid.OwnedVid, receiver vid.VerifiedVid, nonconfidential []byte, payload codec.Payload) (*url.URL, []byte, error) {
	parentID, ok := receiver.ParentVid()
	if !ok {
		return nil, nil, tsperr.ResolveVid("nested receiver missing parent vid")
	}
	relationID, ok := receiver.RelationVid()
	if !ok {
		return nil, nil, tsperr.ResolveVid("nested receiver missing relation vid")
	}
	innerSender, err := s.getPrivateLocked(relationID)
	if err != nil {
		return nil, nil, err
	}
	innerBytes := sealOrSign(innerSender, receiver, payload)

	parentReceiver, err := s.getVerifiedLocked(parentID)
	if err != nil {
		return nil, nil, err
	}
	outer := codec.Payload{Kind: codec.PayloadNestedMessage, Bytes: innerBytes}
	b, err := hpke.Seal(sender, parentReceiver, nonconfidential, outer)
	if err != nil {
		return nil, nil, err
	}
	return parentReceiver.Endpoint(), b, nil
}

// sealOrSign implements the inner step of nested transform: a Content
// payload becomes a detached-signed envelope with no ciphertext, matching
// spec.md's "Inner: sign(inner_sender, receiver, message)". Control
// payloads (used by relationship plumbing over a nested link) are sealed
// normally so they stay confidential.
func sealOrSign(sender vid.OwnedVid, receiver vid.VerifiedVid, payload codec.Payload) []byte {
	if payload.Kind == codec.PayloadContent {
		return hpke.Sign(sender, receiver, payload.Bytes)
	}
	b, err := hpke.Seal(sender, receiver, nil, payload)
	if err != nil {
		// Inner sealing only fails on an unresolvable receiver key, which
		// cannot happen here since receiver was just looked up from the
		// store; surface as an empty envelope that will fail to decode
		// rather than panicking the send path.
		return nil
	}
	return b
}

// sealRoutedLocked assumes the caller already holds s.mu for reading.
func (s *Store) sealRoutedLocked(receiver vid.VerifiedVid, tunnel []string, nonconfidential []byte, payload codec.Payload) (*url.URL, []byte, error) {
	firstHopID := tunnel[0]
	firstHop, err := s.getVerifiedLocked(firstHopID)
	if err != nil {
		return nil, nil, err
	}
	firstHopRelationID, ok := firstHop.RelationVid()
	if !ok {
		return nil, nil, tsperr.ResolveVid("first hop missing relation vid")
	}
	receiverRelationID, ok := receiver.RelationVid()
	if !ok {
		return nil, nil, tsperr.ResolveVid("routed receiver missing relation vid")
	}

	innerSender, err := s.getPrivateLocked(receiverRelationID)
	if err != nil {
		return nil, nil, err
	}
	innerBytes, err := hpke.Seal(innerSender, receiver, nonconfidential, payload)
	if err != nil {
		return nil, nil, err
	}

	outerSender, err := s.getPrivateLocked(firstHopRelationID)
	if err != nil {
		return nil, nil, err
	}
	hops := make([][]byte, len(tunnel)-1)
	for i, h := range tunnel[1:] {
		hops[i] = []byte(h)
	}
	outer := codec.Payload{Kind: codec.PayloadRoutedMessage, Hops: hops, Inner: innerBytes}
	b, err := hpke.Seal(outerSender, firstHop, nil, outer)
	if err != nil {
		return nil, nil, err
	}
	return firstHop.Endpoint(), b, nil
}

// SignAnycast produces a signed, unencrypted envelope addressed by sender's
// key alone, with message carried as the authenticated non-confidential
// payload.
func (s *Store) SignAnycast(senderID string, message []byte) ([]byte, error) {
	sender, err := s.GetPrivateVid(senderID)
	if err != nil {
		return nil, err
	}
	return hpke.Sign(sender, nil, message), nil
}

// --- Forwarding ----------------------------------------------------------

// RouteMessage opens an inbound routed envelope addressed to ownerID (one
// of our owned VIDs) and re-seals it for the next hop.
func (s *Store) RouteMessage(ownerID string, raw []byte) (*url.URL, []byte, error) {
	owner, err := s.GetPrivateVid(ownerID)
	if err != nil {
		return nil, nil, err
	}
	probed, err := codec.Probe(raw)
	if err != nil {
		return nil, nil, err
	}
	sender, err := s.GetVerifiedVid(string(probed.Sender))
	if err != nil {
		return nil, nil, err
	}
	_, payload, _, err := hpke.Open(owner, sender, raw)
	if err != nil {
		return nil, nil, err
	}
	if payload.Kind != codec.PayloadRoutedMessage {
		return nil, nil, tsperr.InvalidRoute("message addressed for routing does not carry a routed payload")
	}
	if len(payload.Hops) == 0 {
		return nil, nil, tsperr.InvalidRoute("routed payload has no next hop")
	}
	return s.ForwardRoutedMessage(string(payload.Hops[0]), payload.Hops[1:], payload.Inner)
}

// ForwardRoutedMessage implements the two forwarding policies: final
// delivery (remainingHops empty) wraps opaque in a NestedMessage addressed
// to our relation; intermediary (remainingHops non-empty) re-seals a
// RoutedMessage for nextHop.
func (s *Store) ForwardRoutedMessage(nextHopID string, remainingHops [][]byte, opaque []byte) (*url.URL, []byte, error) {
	if len(remainingHops) == 0 {
		nextHopOwned, err := s.GetPrivateVid(nextHopID)
		if err != nil {
			return nil, nil, err
		}
		relationID, ok := nextHopOwned.RelationVid()
		if !ok {
			return nil, nil, tsperr.Relationship("final-delivery hop has no relation vid configured")
		}
		relationRecipient, err := s.GetVerifiedVid(relationID)
		if err != nil {
			return nil, nil, err
		}
		payload := codec.Payload{Kind: codec.PayloadNestedMessage, Bytes: opaque}
		b, err := hpke.Seal(nextHopOwned, relationRecipient, nil, payload)
		if err != nil {
			return nil, nil, err
		}
		return relationRecipient.Endpoint(), b, nil
	}

	nextHop, err := s.GetVerifiedVid(nextHopID)
	if err != nil {
		return nil, nil, err
	}
	hopSenderID, ok := nextHop.RelationVid()
	if !ok {
		return nil, nil, tsperr.ResolveVid("intermediary hop missing relation vid")
	}
	hopSender, err := s.GetPrivateVid(hopSenderID)
	if err != nil {
		return nil, nil, err
	}
	payload := codec.Payload{Kind: codec.PayloadRoutedMessage, Hops: remainingHops, Inner: opaque}
	b, err := hpke.Seal(hopSender, nextHop, nil, payload)
	if err != nil {
		return nil, nil, err
	}
	return nextHop.Endpoint(), b, nil
}

// --- Export / import ------------------------------------------------------

// Digest re-exports keys.Digest so callers of this package rarely need to
// import keys directly for thread ids.
type Digest = keys.Digest
