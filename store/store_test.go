// SPDX-License-Identifier: LGPL-3.0-or-later

package store_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trust-spanning/tsp-go/codec"
	"github.com/trust-spanning/tsp-go/hpke"
	"github.com/trust-spanning/tsp-go/keys"
	"github.com/trust-spanning/tsp-go/store"
	"github.com/trust-spanning/tsp-go/vid"
)

// sealAndHash builds a RequestRelationship envelope from sender to receiver,
// bypassing the Store (which has no public relationship-request builder —
// that lives in the async facade) so the test can exercise OpenMessage's
// dispatch directly.
func sealAndHash(t *testing.T, s *store.Store, sender, receiver vid.OwnedVid) (*url.URL, []byte, keys.Digest, error) {
	t.Helper()
	require.NoError(t, s.AddVerifiedVid(receiver))
	raw, digest, err := hpke.SealAndHash(sender, receiver, nil, codec.Payload{Kind: codec.PayloadRequestRelationship})
	return receiver.Endpoint(), raw, digest, err
}

func sealControl(t *testing.T, s *store.Store, sender, receiver vid.OwnedVid, threadID keys.Digest) ([]byte, error) {
	t.Helper()
	require.NoError(t, s.AddVerifiedVid(sender))
	return hpke.Seal(sender, receiver, nil, codec.Payload{Kind: codec.PayloadAcceptRelationship, ThreadID: [32]byte(threadID)})
}

func sealCancel(t *testing.T, s *store.Store, sender, receiver vid.OwnedVid, threadID keys.Digest) ([]byte, error) {
	t.Helper()
	require.NoError(t, s.AddVerifiedVid(sender))
	return hpke.Seal(sender, receiver, nil, codec.Payload{Kind: codec.PayloadCancelRelationship, ThreadID: [32]byte(threadID)})
}

func bind(t *testing.T, id, endpoint string) vid.OwnedVid {
	t.Helper()
	v, err := vid.Bind(id, endpoint)
	require.NoError(t, err)
	return v
}

func newPair(t *testing.T) (*store.Store, vid.OwnedVid, vid.OwnedVid) {
	t.Helper()
	alice := bind(t, "did:web:alice.example:endpoint", "https://alice.example/tsp")
	bob := bind(t, "did:web:bob.example:endpoint", "https://bob.example/tsp")

	s := store.New(nil)
	require.NoError(t, s.AddPrivateVid(alice))
	require.NoError(t, s.AddPrivateVid(bob))
	return s, alice, bob
}

// S1: direct send/receive round-trips the message and authenticates sender.
func TestDirectSendReceiveRoundTrip(t *testing.T) {
	s, alice, bob := newPair(t)

	_, raw, err := s.SealMessage(alice.Identifier(), bob.Identifier(), []byte("meta"), []byte("hello bob"))
	require.NoError(t, err)

	received, err := s.OpenMessage(raw)
	require.NoError(t, err)
	require.Equal(t, store.GenericMessage, received.Kind)
	require.Equal(t, store.SignedAndEncrypted, received.MessageKind)
	require.Equal(t, alice.Identifier(), received.Sender.Identifier())
	require.Equal(t, []byte("hello bob"), received.Message)
	require.Equal(t, []byte("meta"), received.Nonconfidential)
}

// A single flipped ciphertext byte must fail to open.
func TestTamperedCiphertextFailsToOpen(t *testing.T) {
	s, alice, bob := newPair(t)

	_, raw, err := s.SealMessage(alice.Identifier(), bob.Identifier(), nil, []byte("hello bob"))
	require.NoError(t, err)

	// The envelope ends with the signature part (1-byte tag, 4-byte length,
	// 64-byte Ed25519 signature); step back past it into the ciphertext.
	const signaturePartLen = 1 + 4 + 64
	tampered := append([]byte{}, raw...)
	tampered[len(tampered)-signaturePartLen-10] ^= 0x01

	_, err = s.OpenMessage(tampered)
	require.Error(t, err)
}

// A signature that does not verify must be rejected.
func TestTamperedSignatureFailsVerification(t *testing.T) {
	s, alice, bob := newPair(t)

	_, raw, err := s.SealMessage(alice.Identifier(), bob.Identifier(), nil, []byte("hello bob"))
	require.NoError(t, err)

	tampered := append([]byte{}, raw...)
	tampered[len(tampered)-1] ^= 0x01

	_, err = s.OpenMessage(tampered)
	require.Error(t, err)
}

// Relationship request/accept moves the proposer's status for the peer to
// Bidirectional, correlated by a thread id that is the SHA-256 of the whole
// request envelope. The status is kept on the peer's (bob's) context, which
// is the one an inbound accept from bob is checked against.
func TestRelationshipRequestAccept(t *testing.T) {
	s, alice, bob := newPair(t)

	_, raw, threadID, err := sealAndHash(t, s, alice, bob)
	require.NoError(t, err)

	received, err := s.OpenMessage(raw)
	require.NoError(t, err)
	require.Equal(t, store.RequestRelationship, received.Kind)
	require.Equal(t, threadID, received.ThreadID)

	require.NoError(t, s.SetRelationStatusForVid(bob.Identifier(), store.UnidirectionalStatus(threadID)))

	acceptRaw, err := sealControl(t, s, bob, alice, threadID)
	require.NoError(t, err)

	received, err = s.OpenMessage(acceptRaw)
	require.NoError(t, err)
	require.Equal(t, store.AcceptRelationship, received.Kind)

	status, err := s.RelationStatusForVid(bob.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Bidirectional, status.Kind)
	require.Equal(t, threadID, status.ThreadID)
}

// Accepting a relationship thread id that was never proposed must fail and
// must not mutate relationship state.
func TestAcceptUnknownThreadIsRejected(t *testing.T) {
	s, alice, bob := newPair(t)

	bogus := keys.Sha256([]byte("not a real thread"))
	acceptRaw, err := sealControl(t, s, bob, alice, bogus)
	require.NoError(t, err)

	_, err = s.OpenMessage(acceptRaw)
	require.Error(t, err)

	status, err := s.RelationStatusForVid(bob.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Unrelated, status.Kind)
}

// Cancel on an already-Unrelated relationship is a silent no-op, per design.
func TestCancelOnUnrelatedIsNoOp(t *testing.T) {
	s, alice, bob := newPair(t)

	threadID := keys.Sha256([]byte("whatever"))
	cancelRaw, err := sealCancel(t, s, bob, alice, threadID)
	require.NoError(t, err)

	received, err := s.OpenMessage(cancelRaw)
	require.NoError(t, err)
	require.Equal(t, store.CancelRelationship, received.Kind)

	status, err := s.RelationStatusForVid(bob.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Unrelated, status.Kind)
}

// A route with exactly one hop is rejected outright.
func TestSetRouteRejectsSingleHop(t *testing.T) {
	s, _, bob := newPair(t)
	err := s.SetRouteForVid(bob.Identifier(), []string{"only-one-hop"})
	require.Error(t, err)
}

// S4: nested messaging seals the outer envelope to the counterparty's
// parent vid while the inner content is sign-only, authenticated by our
// own relation-scoped identity rather than independently encrypted.
func TestNestedSendReceiveRoundTrip(t *testing.T) {
	aliceParent := bind(t, "did:web:alice.example:endpoint", "https://alice.example/tsp")
	bobParent := bind(t, "did:web:bob.example:endpoint", "https://bob.example/tsp")
	aliceNested := bind(t, "did:peer:alice-nested", "https://alice.example/tsp/nested")
	bobNested := bind(t, "did:peer:bob-nested", "https://bob.example/tsp/nested")

	s := store.New(nil)
	require.NoError(t, s.AddPrivateVid(aliceParent))
	require.NoError(t, s.AddPrivateVid(bobParent))
	require.NoError(t, s.AddPrivateVid(aliceNested))
	require.NoError(t, s.AddPrivateVid(bobNested))

	require.NoError(t, s.SetParentForVid(bobNested.Identifier(), bobParent.Identifier()))
	require.NoError(t, s.SetRelationForVid(bobNested.Identifier(), aliceNested.Identifier()))

	endpoint, raw, err := s.SealMessage(aliceParent.Identifier(), bobNested.Identifier(), []byte("meta"), []byte("hello nested bob"))
	require.NoError(t, err)
	require.Equal(t, bobParent.Endpoint().String(), endpoint.String())

	received, err := s.OpenMessage(raw)
	require.NoError(t, err)
	require.Equal(t, store.GenericMessage, received.Kind)
	require.Equal(t, store.Signed, received.MessageKind)
	require.Equal(t, aliceNested.Identifier(), received.Sender.Identifier())
	require.Equal(t, []byte("hello nested bob"), received.Message)
}

// S5: a route that hops through the receiver's own infrastructure before
// final local delivery. The intermediary step re-wraps the untouched inner
// ciphertext as a NestedMessage for the last leg, never re-encrypting it.
func TestRoutedSelfForwardingRoundTrip(t *testing.T) {
	alice := bind(t, "did:web:alice.example:endpoint", "https://alice.example/tsp")
	aliceToRelay := bind(t, "did:peer:alice-to-relay", "https://alice.example/tsp")
	aliceToBob := bind(t, "did:peer:alice-to-bob", "https://alice.example/tsp")
	relay := bind(t, "did:web:relay.example:endpoint", "https://relay.example/tsp")
	bobFinal := bind(t, "did:peer:bob-final", "https://bob.example/tsp")
	bobRelation := bind(t, "did:peer:bob-relation-final", "https://bob.example/tsp")

	aliceStore := store.New(nil)
	require.NoError(t, aliceStore.AddPrivateVid(alice))
	require.NoError(t, aliceStore.AddPrivateVid(aliceToRelay))
	require.NoError(t, aliceStore.AddPrivateVid(aliceToBob))
	require.NoError(t, aliceStore.AddVerifiedVid(relay))
	require.NoError(t, aliceStore.AddVerifiedVid(bobFinal))
	require.NoError(t, aliceStore.SetRelationForVid(relay.Identifier(), aliceToRelay.Identifier()))
	require.NoError(t, aliceStore.SetRelationForVid(bobFinal.Identifier(), aliceToBob.Identifier()))
	require.NoError(t, aliceStore.SetRouteForVid(bobFinal.Identifier(), []string{relay.Identifier(), bobFinal.Identifier()}))

	endpoint, raw, err := aliceStore.SealMessage(alice.Identifier(), bobFinal.Identifier(), []byte("meta"), []byte("hello via relay"))
	require.NoError(t, err)
	require.Equal(t, relay.Endpoint().String(), endpoint.String())

	relayStore := store.New(nil)
	require.NoError(t, relayStore.AddPrivateVid(relay))
	require.NoError(t, relayStore.AddPrivateVid(bobFinal))
	require.NoError(t, relayStore.AddPrivateVid(bobRelation))
	require.NoError(t, relayStore.AddVerifiedVid(aliceToRelay))
	require.NoError(t, relayStore.AddVerifiedVid(aliceToBob))
	require.NoError(t, relayStore.SetRelationForVid(bobFinal.Identifier(), bobRelation.Identifier()))

	finalEndpoint, forwarded, err := relayStore.RouteMessage(relay.Identifier(), raw)
	require.NoError(t, err)
	require.Equal(t, bobRelation.Endpoint().String(), finalEndpoint.String())

	received, err := relayStore.OpenMessage(forwarded)
	require.NoError(t, err)
	require.Equal(t, store.GenericMessage, received.Kind)
	require.Equal(t, store.SignedAndEncrypted, received.MessageKind)
	require.Equal(t, aliceToBob.Identifier(), received.Sender.Identifier())
	require.Equal(t, []byte("hello via relay"), received.Message)
	require.Equal(t, []byte("meta"), received.Nonconfidential)
}

// S6: a cancel that tears down a Bidirectional relationship must not be
// reversed by replaying the original (now stale) accept frame.
func TestCancelThenStaleAcceptDoesNotPromote(t *testing.T) {
	s, alice, bob := newPair(t)

	_, raw, threadID, err := sealAndHash(t, s, alice, bob)
	require.NoError(t, err)
	_, err = s.OpenMessage(raw)
	require.NoError(t, err)
	require.NoError(t, s.SetRelationStatusForVid(bob.Identifier(), store.UnidirectionalStatus(threadID)))

	acceptRaw, err := sealControl(t, s, bob, alice, threadID)
	require.NoError(t, err)

	received, err := s.OpenMessage(acceptRaw)
	require.NoError(t, err)
	require.Equal(t, store.AcceptRelationship, received.Kind)

	status, err := s.RelationStatusForVid(bob.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Bidirectional, status.Kind)

	cancelRaw, err := sealCancel(t, s, bob, alice, threadID)
	require.NoError(t, err)

	received, err = s.OpenMessage(cancelRaw)
	require.NoError(t, err)
	require.Equal(t, store.CancelRelationship, received.Kind)

	status, err = s.RelationStatusForVid(bob.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Unrelated, status.Kind)

	_, err = s.OpenMessage(acceptRaw)
	require.Error(t, err)

	status, err = s.RelationStatusForVid(bob.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Unrelated, status.Kind)
}

// A cancel carrying a thread id that does not match a live relationship is
// a protocol violation, not a no-op: it must be rejected and must not tear
// down the relationship it does not actually correlate to.
func TestCancelWithMismatchedThreadIsRejected(t *testing.T) {
	s, alice, bob := newPair(t)

	_, raw, threadID, err := sealAndHash(t, s, alice, bob)
	require.NoError(t, err)
	_, err = s.OpenMessage(raw)
	require.NoError(t, err)
	require.NoError(t, s.SetRelationStatusForVid(bob.Identifier(), store.UnidirectionalStatus(threadID)))

	acceptRaw, err := sealControl(t, s, bob, alice, threadID)
	require.NoError(t, err)
	_, err = s.OpenMessage(acceptRaw)
	require.NoError(t, err)

	bogus := keys.Sha256([]byte("wrong thread"))
	cancelRaw, err := sealCancel(t, s, bob, alice, bogus)
	require.NoError(t, err)

	_, err = s.OpenMessage(cancelRaw)
	require.Error(t, err)

	status, err := s.RelationStatusForVid(bob.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Bidirectional, status.Kind)
	require.Equal(t, threadID, status.ThreadID)
}
