// SPDX-License-Identifier: LGPL-3.0-or-later

package tspnet_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trust-spanning/tsp-go/store"
	"github.com/trust-spanning/tsp-go/transport"
	"github.com/trust-spanning/tsp-go/tspnet"
	"github.com/trust-spanning/tsp-go/vid"
)

// memTransport is an in-process Transport double: a Send to an endpoint is
// delivered directly to every channel a Subscribe call opened for that same
// endpoint string, with no real network hop.
type memTransport struct {
	mu   sync.Mutex
	subs map[string][]chan transport.Message
}

func newMemTransport() *memTransport {
	return &memTransport{subs: make(map[string][]chan transport.Message)}
}

func (m *memTransport) Send(ctx context.Context, endpoint *url.URL, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := append([]byte{}, data...)
	for _, ch := range m.subs[endpoint.String()] {
		ch <- transport.Message{Data: buf}
	}
	return nil
}

func (m *memTransport) Subscribe(ctx context.Context, endpoint *url.URL) (<-chan transport.Message, error) {
	ch := make(chan transport.Message, 16)
	m.mu.Lock()
	m.subs[endpoint.String()] = append(m.subs[endpoint.String()], ch)
	m.mu.Unlock()
	return ch, nil
}

func bindTest(t *testing.T, id, endpoint string) vid.OwnedVid {
	t.Helper()
	v, err := vid.Bind(id, endpoint)
	require.NoError(t, err)
	return v
}

func newMemDispatcher() (*transport.Dispatcher, *memTransport) {
	mem := newMemTransport()
	d := transport.NewDispatcher()
	d.Register("mem", mem)
	return d, mem
}

// Sending through one Node's Dispatcher and receiving through another's
// round-trips a direct message end to end, including the subscription
// fan-out and decode loop in Receive.
func TestNodeSendReceiveRoundTrip(t *testing.T) {
	alice := bindTest(t, "did:web:alice.example:endpoint", "mem://alice")
	bob := bindTest(t, "did:web:bob.example:endpoint", "mem://bob")

	dispatcher, _ := newMemDispatcher()

	aliceStore := store.New(nil)
	require.NoError(t, aliceStore.AddPrivateVid(alice))
	require.NoError(t, aliceStore.AddVerifiedVid(bob))

	bobStore := store.New(nil)
	require.NoError(t, bobStore.AddPrivateVid(bob))
	require.NoError(t, bobStore.AddVerifiedVid(alice))

	aliceNode := tspnet.New(aliceStore, dispatcher, nil)
	bobNode := tspnet.New(bobStore, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, stop, err := bobNode.Receive(ctx, bob.Identifier())
	require.NoError(t, err)
	defer stop()

	require.NoError(t, aliceNode.Send(ctx, alice.Identifier(), bob.Identifier(), []byte("meta"), []byte("hi bob")))

	select {
	case result := <-results:
		require.NoError(t, result.Err)
		require.Equal(t, store.GenericMessage, result.Message.Kind)
		require.Equal(t, alice.Identifier(), result.Message.Sender.Identifier())
		require.Equal(t, []byte("hi bob"), result.Message.Message)
		require.Equal(t, []byte("meta"), result.Message.Nonconfidential)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for received message")
	}
}

// A malformed frame yields an error Result without closing the channel.
func TestNodeReceiveSurfacesMalformedFrameWithoutClosing(t *testing.T) {
	bob := bindTest(t, "did:web:bob.example:endpoint", "mem://bob")

	dispatcher, mem := newMemDispatcher()

	bobStore := store.New(nil)
	require.NoError(t, bobStore.AddPrivateVid(bob))

	bobNode := tspnet.New(bobStore, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, stop, err := bobNode.Receive(ctx, bob.Identifier())
	require.NoError(t, err)
	defer stop()

	require.NoError(t, mem.Send(ctx, bob.Endpoint(), []byte("not a valid envelope")))

	select {
	case result := <-results:
		require.Error(t, result.Err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decode-error result")
	}

	// The channel is still open: a second malformed frame is reported too.
	require.NoError(t, mem.Send(ctx, bob.Endpoint(), []byte("still not an envelope")))

	select {
	case result, ok := <-results:
		require.True(t, ok)
		require.Error(t, result.Err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second decode-error result")
	}
}

// Exercises the full relationship lifecycle over the wire: request, accept,
// then cancel — verifying SendRelationshipCancel seals the peer's actual
// thread id (not a zero one), so the receiving side's mismatch check does
// not reject it and both sides land on Unrelated.
func TestNodeRelationshipRequestAcceptCancelRoundTrip(t *testing.T) {
	alice := bindTest(t, "did:web:alice.example:endpoint", "mem://alice")
	bob := bindTest(t, "did:web:bob.example:endpoint", "mem://bob")

	dispatcher, _ := newMemDispatcher()

	aliceStore := store.New(nil)
	require.NoError(t, aliceStore.AddPrivateVid(alice))
	require.NoError(t, aliceStore.AddVerifiedVid(bob))

	bobStore := store.New(nil)
	require.NoError(t, bobStore.AddPrivateVid(bob))
	require.NoError(t, bobStore.AddVerifiedVid(alice))

	aliceNode := tspnet.New(aliceStore, dispatcher, nil)
	bobNode := tspnet.New(bobStore, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bobResults, stopBob, err := bobNode.Receive(ctx, bob.Identifier())
	require.NoError(t, err)
	defer stopBob()
	aliceResults, stopAlice, err := aliceNode.Receive(ctx, alice.Identifier())
	require.NoError(t, err)
	defer stopAlice()

	threadID, err := aliceNode.SendRelationshipRequest(ctx, alice.Identifier(), bob.Identifier())
	require.NoError(t, err)

	select {
	case result := <-bobResults:
		require.NoError(t, result.Err)
		require.Equal(t, store.RequestRelationship, result.Message.Kind)
		require.Equal(t, threadID, result.Message.ThreadID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relationship request")
	}

	require.NoError(t, bobNode.SendRelationshipAccept(ctx, bob.Identifier(), alice.Identifier(), threadID))

	select {
	case result := <-aliceResults:
		require.NoError(t, result.Err)
		require.Equal(t, store.AcceptRelationship, result.Message.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relationship accept")
	}

	status, err := aliceStore.RelationStatusForVid(bob.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Bidirectional, status.Kind)
	status, err = bobStore.RelationStatusForVid(alice.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Bidirectional, status.Kind)

	require.NoError(t, aliceNode.SendRelationshipCancel(ctx, alice.Identifier(), bob.Identifier()))

	select {
	case result := <-bobResults:
		require.NoError(t, result.Err)
		require.Equal(t, store.CancelRelationship, result.Message.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relationship cancel")
	}

	status, err = aliceStore.RelationStatusForVid(bob.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Unrelated, status.Kind)
	status, err = bobStore.RelationStatusForVid(alice.Identifier())
	require.NoError(t, err)
	require.Equal(t, store.Unrelated, status.Kind)
}

// Cancelling the context returned by Receive closes the result channel.
func TestNodeReceiveCancelClosesChannel(t *testing.T) {
	bob := bindTest(t, "did:web:bob.example:endpoint", "mem://bob")

	dispatcher, _ := newMemDispatcher()

	bobStore := store.New(nil)
	require.NoError(t, bobStore.AddPrivateVid(bob))

	bobNode := tspnet.New(bobStore, dispatcher, nil)

	results, stop, err := bobNode.Receive(context.Background(), bob.Identifier())
	require.NoError(t, err)

	stop()

	select {
	case _, ok := <-results:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel to close after cancel")
	}
}
