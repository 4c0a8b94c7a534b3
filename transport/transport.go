// SPDX-License-Identifier: LGPL-3.0-or-later

// Package transport abstracts "send bytes to an endpoint" / "subscribe to
// an endpoint's inbound byte stream" behind a single interface. Concrete
// drivers (transport/tcp, transport/wshttp) are reference collaborators;
// the core only depends on the Transport interface below.
package transport

import (
	"context"
	"net/url"

	"github.com/trust-spanning/tsp-go/tsperr"
)

// Message is one inbound frame, or a transport-level error that occurred
// while waiting for one. A single bad frame never closes the subscription.
type Message struct {
	Data []byte
	Err  error
}

// Transport sends bytes to a URL and subscribes to a URL's inbound stream.
// A subscription is a finite-or-infinite, non-restartable sequence; closing
// the returned channel's feeding goroutine is done by cancelling ctx.
type Transport interface {
	Send(ctx context.Context, endpoint *url.URL, data []byte) error
	Subscribe(ctx context.Context, endpoint *url.URL) (<-chan Message, error)
}

// Dispatcher routes to a scheme-specific Transport by URL scheme, mirroring
// the original implementation's per-scheme module split (tcp, http, ws).
type Dispatcher struct {
	byScheme map[string]Transport
}

// NewDispatcher builds an empty Dispatcher; register drivers with Register.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{byScheme: make(map[string]Transport)}
}

// Register associates a scheme (e.g. "tcp", "http", "https", "ws", "wss")
// with a driver.
func (d *Dispatcher) Register(scheme string, t Transport) {
	d.byScheme[scheme] = t
}

func (d *Dispatcher) driverFor(endpoint *url.URL) (Transport, error) {
	t, ok := d.byScheme[endpoint.Scheme]
	if !ok {
		return nil, tsperr.New(tsperr.KindTransport, "no transport driver registered for scheme "+endpoint.Scheme)
	}
	return t, nil
}

func (d *Dispatcher) Send(ctx context.Context, endpoint *url.URL, data []byte) error {
	t, err := d.driverFor(endpoint)
	if err != nil {
		return err
	}
	return t.Send(ctx, endpoint, data)
}

func (d *Dispatcher) Subscribe(ctx context.Context, endpoint *url.URL) (<-chan Message, error) {
	t, err := d.driverFor(endpoint)
	if err != nil {
		return nil, err
	}
	return t.Subscribe(ctx, endpoint)
}
