// SPDX-License-Identifier: LGPL-3.0-or-later

package tspnet

import (
	"context"
	"strings"

	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/internal/metrics"
	"github.com/trust-spanning/tsp-go/store"
	"github.com/trust-spanning/tsp-go/transport"
	"github.com/trust-spanning/tsp-go/tsperr"
)

// receiveChannelCapacity bounds the per-subscription channel. Sends to a
// full channel block — backpressure is lossless here, unlike the demo
// intermediary's broadcast fan-out.
const receiveChannelCapacity = 16

// Result is one item yielded by a Receive subscription: either a decoded
// message or an error for a single malformed/hostile frame. A bad frame
// never terminates the subscription.
type Result struct {
	Message store.Received
	Err     error
}

// Receive subscribes to vidID's inbound transport and returns a channel of
// decoded messages. It resolves the chain of ParentVid links to find the
// outermost address actually reachable over the wire (nested VIDs have no
// transport endpoint of their own — messages addressed to them arrive at
// their parent's endpoint and are unwrapped by Store.OpenMessage as it walks
// NestedMessage layers).
//
// The returned cancel function stops the background decode task and closes
// the channel; callers should always call it, typically via defer.
func (n *Node) Receive(ctx context.Context, vidID string) (<-chan Result, context.CancelFunc, error) {
	v, err := n.Store.GetVerifiedVid(vidID)
	if err != nil {
		return nil, nil, err
	}

	outermost := v
	for {
		parentID, ok := outermost.ParentVid()
		if !ok {
			break
		}
		parent, err := n.Store.GetVerifiedVid(parentID)
		if err != nil {
			return nil, nil, err
		}
		outermost = parent
	}

	ctx, cancel := context.WithCancel(ctx)
	frames, err := n.Transport.Subscribe(ctx, outermost.Endpoint())
	if err != nil {
		cancel()
		return nil, nil, err
	}

	out := make(chan Result, receiveChannelCapacity)
	go n.decodeLoop(ctx, vidID, frames, out)

	return out, cancel, nil
}

// relationshipRejectReason classifies a KindRelationship error by its fixed
// message text into one of the two rejection reasons store/open.go produces.
func relationshipRejectReason(err error) string {
	if strings.Contains(err.Error(), "did not propose") {
		return "unknown_thread"
	}
	return "thread_mismatch"
}

func receivedKindLabel(kind store.ReceivedKind) string {
	switch kind {
	case store.GenericMessage:
		return "content"
	case store.RequestRelationship, store.AcceptRelationship, store.CancelRelationship:
		return "relationship"
	case store.ForwardRequest:
		return "routed"
	default:
		return "unknown"
	}
}

// decodeLoop runs as a background task for the lifetime of the subscription,
// calling Store.OpenMessage on each inbound frame and forwarding the result.
// A single malformed frame yields an error Result and the loop continues.
func (n *Node) decodeLoop(ctx context.Context, vidID string, frames <-chan transport.Message, out chan<- Result) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			frameCtx, _ := withRequestID(ctx)
			log := n.Log.WithContext(frameCtx)

			var result Result
			if frame.Err != nil {
				result = Result{Err: tsperr.Wrap(tsperr.KindTransport, "inbound frame", frame.Err)}
				log.Warn("inbound frame error", logger.Error(frame.Err))
			} else {
				msg, err := n.Store.OpenMessage(frame.Data)
				if err != nil {
					if tsperr.Is(err, tsperr.KindRelationship) {
						metrics.RelationshipsRejected.WithLabelValues(relationshipRejectReason(err)).Inc()
					} else {
						metrics.EnvelopesRejected.WithLabelValues("decode").Inc()
					}
					log.Warn("failed to open inbound envelope", logger.Error(err))
				} else {
					metrics.EnvelopesOpened.WithLabelValues(receivedKindLabel(msg.Kind)).Inc()
					log.Debug("opened inbound envelope", logger.String("kind", receivedKindLabel(msg.Kind)))
				}
				result = Result{Message: msg, Err: err}
			}
			metrics.ReceiveQueueDepth.WithLabelValues(vidID).Set(float64(len(out)))
			select {
			case out <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}
