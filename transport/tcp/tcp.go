// SPDX-License-Identifier: LGPL-3.0-or-later

// Package tcp implements the transport.Transport interface for tcp://
// endpoints: each send is a single framed write to a fresh connection,
// and subscribe runs a length-prefix framed listener.
package tcp

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/url"

	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/transport"
	"github.com/trust-spanning/tsp-go/tsperr"
)

// Transport is the tcp:// driver.
type Transport struct {
	Log logger.Logger
}

// New builds a tcp.Transport.
func New(log logger.Logger) *Transport {
	return &Transport{Log: log}
}

func writeFrame(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *Transport) Send(ctx context.Context, endpoint *url.URL, data []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", endpoint.Host)
	if err != nil {
		return tsperr.Wrap(tsperr.KindTransport, "dial tcp endpoint", err)
	}
	defer conn.Close()
	if err := writeFrame(conn, data); err != nil {
		return tsperr.Wrap(tsperr.KindTransport, "write tcp frame", err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, endpoint *url.URL) (<-chan transport.Message, error) {
	ln, err := net.Listen("tcp", endpoint.Host)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindTransport, "listen tcp endpoint", err)
	}

	out := make(chan transport.Message, 16)
	go func() {
		defer close(out)
		defer ln.Close()
		go func() {
			<-ctx.Done()
			ln.Close()
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				out <- transport.Message{Err: tsperr.Wrap(tsperr.KindTransport, "accept tcp connection", err)}
				return
			}
			go t.handleConn(ctx, conn, out)
		}
	}()
	return out, nil
}

func (t *Transport) handleConn(ctx context.Context, conn net.Conn, out chan<- transport.Message) {
	defer conn.Close()
	for {
		data, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				select {
				case out <- transport.Message{Err: tsperr.Wrap(tsperr.KindTransport, "read tcp frame", err)}:
				case <-ctx.Done():
				}
			}
			return
		}
		select {
		case out <- transport.Message{Data: data}:
		case <-ctx.Done():
			return
		}
	}
}

