// SPDX-License-Identifier: LGPL-3.0-or-later

package store

import (
	"github.com/trust-spanning/tsp-go/codec"
	"github.com/trust-spanning/tsp-go/hpke"
	"github.com/trust-spanning/tsp-go/tsperr"
)

// OpenMessage decodes an inbound envelope, unwrapping NestedMessage layers
// iteratively (never recursively — an attacker cannot grow the call stack
// by nesting envelopes) and dispatching the innermost payload.
func (s *Store) OpenMessage(raw []byte) (Received, error) {
	buf := raw

	for {
		probed, err := codec.Probe(buf)
		if err != nil {
			return Received{}, err
		}

		sender, err := s.GetVerifiedVid(string(probed.Sender))
		if err != nil {
			return Received{}, err
		}

		if probed.Kind == codec.KindSigned {
			if probed.Receiver != nil && !s.HasPrivateVid(string(probed.Receiver)) {
				return Received{}, tsperr.ErrUnexpectedRecipient
			}
			nonconfidential, err := hpke.Verify(sender, buf)
			if err != nil {
				return Received{}, err
			}
			return Received{
				Kind:        GenericMessage,
				Sender:      sender,
				Message:     nonconfidential,
				MessageKind: Signed,
			}, nil
		}

		if probed.Receiver == nil {
			return Received{}, tsperr.New(tsperr.KindDecode, "encrypted envelope missing receiver part")
		}
		owner, err := s.GetPrivateVid(string(probed.Receiver))
		if err != nil {
			return Received{}, tsperr.ErrUnexpectedRecipient
		}

		nonconfidential, payload, _, err := hpke.Open(owner, sender, buf)
		if err != nil {
			return Received{}, err
		}

		switch payload.Kind {
		case codec.PayloadContent:
			return Received{
				Kind:            GenericMessage,
				Sender:          sender,
				Nonconfidential: nonconfidential,
				Message:         payload.Bytes,
				MessageKind:     SignedAndEncrypted,
			}, nil

		case codec.PayloadNestedMessage:
			buf = payload.Bytes
			continue

		case codec.PayloadRoutedMessage:
			if len(payload.Hops) == 0 {
				return Received{}, tsperr.InvalidRoute("routed payload carries no next hop")
			}
			nextHop, err := s.GetVerifiedVid(string(payload.Hops[0]))
			if err != nil {
				return Received{}, err
			}
			return Received{
				Kind:          ForwardRequest,
				Sender:        sender,
				NextHop:       nextHop,
				Route:         payload.Hops[1:],
				OpaquePayload: payload.Inner,
			}, nil

		case codec.PayloadRequestRelationship:
			return Received{
				Kind:     RequestRelationship,
				Sender:   sender,
				ThreadID: hpke.Sha256(buf),
			}, nil

		case codec.PayloadAcceptRelationship:
			if err := s.acceptRelationship(sender.Identifier(), payload.ThreadID); err != nil {
				return Received{}, err
			}
			return Received{Kind: AcceptRelationship, Sender: sender}, nil

		case codec.PayloadCancelRelationship:
			if err := s.cancelRelationship(sender.Identifier(), payload.ThreadID); err != nil {
				return Received{}, err
			}
			return Received{Kind: CancelRelationship, Sender: sender}, nil

		default:
			return Received{}, tsperr.New(tsperr.KindDecode, "unrecognized payload kind")
		}
	}
}

func (s *Store) acceptRelationship(senderID string, threadID [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[senderID]
	if !ok {
		return tsperr.UnverifiedVid(senderID)
	}
	if ctx.RelationStatus.Kind != Unidirectional || ctx.RelationStatus.ThreadID != threadID {
		return tsperr.Relationship("received confirmation of a relationship that we did not propose")
	}
	ctx.RelationStatus = BidirectionalStatus(threadID)
	return nil
}

// cancelRelationship tears down a relationship. A cancel received while
// already Unrelated is a silent no-op: the peer may have raced a cancel
// against our own, and re-raising it as an error would turn a benign
// double-cancel into spurious failure. A cancel carrying a thread id that
// does not match the relationship we actually hold is a genuine protocol
// violation and is rejected.
func (s *Store) cancelRelationship(senderID string, threadID [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[senderID]
	if !ok {
		return tsperr.UnverifiedVid(senderID)
	}
	switch ctx.RelationStatus.Kind {
	case Unidirectional, Bidirectional:
		if ctx.RelationStatus.ThreadID != threadID {
			return tsperr.Relationship("cancel carries a thread id that does not match the relationship on file")
		}
		ctx.RelationStatus = UnrelatedStatus()
		return nil
	default:
		// Unrelated or Controlled: nothing to tear down.
		return nil
	}
}
