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

// Package tspnet is the asynchronous façade over store.Store: it adds
// transport I/O (send, subscribe) around the Store's pure in-memory
// sealing/opening logic, and owns the per-VID receive loop.
package tspnet

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/trust-spanning/tsp-go/codec"
	"github.com/trust-spanning/tsp-go/hpke"
	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/internal/metrics"
	"github.com/trust-spanning/tsp-go/keys"
	"github.com/trust-spanning/tsp-go/store"
	"github.com/trust-spanning/tsp-go/transport"
)

// Node wraps a store.Store with a transport.Dispatcher, giving every send
// and receive operation a network path. It is the thing application code
// holds onto.
type Node struct {
	Store     *store.Store
	Transport *transport.Dispatcher
	Log       logger.Logger
}

// New builds a Node around an existing store and transport dispatcher.
func New(s *store.Store, t *transport.Dispatcher, log logger.Logger) *Node {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Node{Store: s, Transport: t, Log: log}
}

// Send seals message for receiver and puts it on the wire. Every call gets
// its own correlation id, attached to ctx and therefore to every log line
// the send and its transport hop emit.
func (n *Node) Send(ctx context.Context, senderID, receiverID string, nonconfidential, message []byte) error {
	ctx, _ = withRequestID(ctx)
	log := n.Log.WithContext(ctx)

	endpoint, raw, err := n.Store.SealMessage(senderID, receiverID, nonconfidential, message)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("seal").Inc()
		log.Error("seal message", logger.String("receiver", receiverID), logger.Error(err))
		return err
	}
	metrics.EnvelopesSealed.WithLabelValues("direct").Inc()
	metrics.EnvelopeSize.Observe(float64(len(raw)))
	log.Debug("sending message", logger.String("receiver", receiverID), logger.Int("bytes", len(raw)))
	return n.Transport.Send(ctx, endpoint, raw)
}

// SendRelationshipRequest proposes a relationship with receiver and records
// our own Unidirectional(thread_id) pending state.
func (n *Node) SendRelationshipRequest(ctx context.Context, senderID, receiverID string) (keys.Digest, error) {
	sender, err := n.Store.GetPrivateVid(senderID)
	if err != nil {
		return keys.Digest{}, err
	}
	receiver, err := n.Store.GetVerifiedVid(receiverID)
	if err != nil {
		return keys.Digest{}, err
	}

	raw, threadID, err := hpke.SealAndHash(sender, receiver, nil, codec.Payload{Kind: codec.PayloadRequestRelationship})
	if err != nil {
		return keys.Digest{}, err
	}
	if err := n.Transport.Send(ctx, receiver.Endpoint(), raw); err != nil {
		return keys.Digest{}, err
	}
	if err := n.Store.SetRelationStatusForVid(receiverID, store.UnidirectionalStatus(threadID)); err != nil {
		return keys.Digest{}, err
	}
	metrics.RelationshipsRequested.WithLabelValues("proposer").Inc()
	return threadID, nil
}

// SendRelationshipAccept confirms a relationship request and promotes our
// own state for receiver to Bidirectional(threadID).
func (n *Node) SendRelationshipAccept(ctx context.Context, senderID, receiverID string, threadID keys.Digest) error {
	endpoint, raw, err := n.Store.SealMessagePayload(senderID, receiverID, nil, codec.Payload{
		Kind:     codec.PayloadAcceptRelationship,
		ThreadID: [32]byte(threadID),
	})
	if err != nil {
		return err
	}
	if err := n.Transport.Send(ctx, endpoint, raw); err != nil {
		return err
	}
	metrics.RelationshipsCompleted.Inc()
	return n.Store.SetRelationStatusForVid(receiverID, store.BidirectionalStatus(threadID))
}

// SendRelationshipCancel tears down a relationship. The thread id sent to
// the peer is the one that actually correlates the live relationship (read
// before the local state is reset), so the peer's own mismatch check in
// Store.cancelRelationship does not reject it as stale. The local
// transition to Unrelated happens before the network send, per design: a
// failed send should not leave us believing a relationship is still live.
func (n *Node) SendRelationshipCancel(ctx context.Context, senderID, receiverID string) error {
	status, err := n.Store.RelationStatusForVid(receiverID)
	if err != nil {
		return err
	}
	threadID := status.ThreadID

	if err := n.Store.SetRelationStatusForVid(receiverID, store.UnrelatedStatus()); err != nil {
		return err
	}
	endpoint, raw, err := n.Store.SealMessagePayload(senderID, receiverID, nil, codec.Payload{
		Kind:     codec.PayloadCancelRelationship,
		ThreadID: [32]byte(threadID),
	})
	if err != nil {
		return err
	}
	metrics.RelationshipsCancelled.Inc()
	return n.Transport.Send(ctx, endpoint, raw)
}

// RouteMessage opens a routed envelope addressed to one of our owned VIDs
// and forwards the re-sealed result to the next hop.
func (n *Node) RouteMessage(ctx context.Context, ownerID string, raw []byte) error {
	endpoint, out, err := n.Store.RouteMessage(ownerID, raw)
	if err != nil {
		metrics.EnvelopesRejected.WithLabelValues("decode").Inc()
		return err
	}
	metrics.RoutedForwards.WithLabelValues("intermediary").Inc()
	return n.Transport.Send(ctx, endpoint, out)
}

// ForwardRoutedMessage re-seals an opaque payload for the next hop and
// sends it, per the final-delivery/intermediary split in store.Store.
func (n *Node) ForwardRoutedMessage(ctx context.Context, nextHopID string, remainingHops [][]byte, opaque []byte) error {
	endpoint, out, err := n.Store.ForwardRoutedMessage(nextHopID, remainingHops, opaque)
	if err != nil {
		return err
	}
	metrics.RoutedHopCount.Observe(float64(len(remainingHops)))
	if len(remainingHops) == 0 {
		metrics.RoutedForwards.WithLabelValues("final_delivery").Inc()
	} else {
		metrics.RoutedForwards.WithLabelValues("intermediary").Inc()
	}
	return n.Transport.Send(ctx, endpoint, out)
}

// SendAnycast signs message once and sends it to every receiver's endpoint,
// best-effort and in order; it aggregates (rather than stops on) the first
// transport failure, per the conservative open-question resolution.
func (n *Node) SendAnycast(ctx context.Context, senderID string, receiverIDs []string, message []byte) error {
	raw, err := n.Store.SignAnycast(senderID, message)
	if err != nil {
		return err
	}
	metrics.AnycastFanout.Observe(float64(len(receiverIDs)))

	// A limit of one runs the sends one after another in receiverIDs order.
	var g errgroup.Group
	g.SetLimit(1)
	var errs []error
	for _, id := range receiverIDs {
		id := id
		g.Go(func() error {
			receiver, err := n.Store.GetVerifiedVid(id)
			if err == nil {
				err = n.Transport.Send(ctx, receiver.Endpoint(), raw)
			}
			if err != nil {
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
