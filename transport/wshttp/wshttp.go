// SPDX-License-Identifier: LGPL-3.0-or-later

// Package wshttp implements the transport.Transport interface for
// http(s):// endpoints (POST to send) and ws(s):// endpoints (subscribe),
// the way the teacher's pkg/agent/transport/websocket client pairs a
// gorilla/websocket connection with request/response HTTP calls.
package wshttp

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/transport"
	"github.com/trust-spanning/tsp-go/tsperr"
)

// Transport is the http(s)/ws(s) driver.
type Transport struct {
	Client *http.Client
	Log    logger.Logger
}

// New builds a wshttp.Transport with a bounded-timeout HTTP client.
func New(log logger.Logger) *Transport {
	return &Transport{
		Client: &http.Client{Timeout: 15 * time.Second},
		Log:    log,
	}
}

func (t *Transport) Send(ctx context.Context, endpoint *url.URL, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(data))
	if err != nil {
		return tsperr.Wrap(tsperr.KindTransport, "build http send request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.Client.Do(req)
	if err != nil {
		return tsperr.Wrap(tsperr.KindTransport, "http send failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return tsperr.New(tsperr.KindTransport, "http send returned non-2xx status")
	}
	return nil
}

// wsURL rewrites an http(s) endpoint to its ws(s) counterpart for the
// subscribe-side upgrade, matching spec.md's "http(s)... upgraded ws(s) to
// receive" scheme pairing.
func wsURL(endpoint *url.URL) *url.URL {
	u := *endpoint
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return &u
}

func (t *Transport) Subscribe(ctx context.Context, endpoint *url.URL) (<-chan transport.Message, error) {
	target := endpoint
	if endpoint.Scheme == "http" || endpoint.Scheme == "https" {
		target = wsURL(endpoint)
	}

	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindTransport, "dial websocket endpoint", err)
	}

	out := make(chan transport.Message, 16)
	go func() {
		defer close(out)
		defer conn.Close()
		go func() {
			<-ctx.Done()
			conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				select {
				case out <- transport.Message{Err: tsperr.Wrap(tsperr.KindTransport, "read websocket message", err)}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- transport.Message{Data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
