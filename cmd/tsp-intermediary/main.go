// SPDX-License-Identifier: LGPL-3.0-or-later

// Command tsp-intermediary runs a demo relay: an HTTP endpoint that accepts
// a raw envelope and either forwards it to a VID this process holds the
// private half of, or queues it for delivery over a websocket connection
// opened by a browser-side user agent.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/trust-spanning/tsp-go/codec"
	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/internal/metrics"
	"github.com/trust-spanning/tsp-go/store"
	"github.com/trust-spanning/tsp-go/transport"
	"github.com/trust-spanning/tsp-go/transport/tcp"
	"github.com/trust-spanning/tsp-go/transport/wshttp"
)

func main() {
	domain := flag.String("domain", "localhost", "domain this intermediary serves did:web identities under")
	addr := flag.String("addr", ":8420", "HTTP listen address")
	storePath := flag.String("store", "intermediary.json", "snapshot of owned VIDs this relay holds private keys for")
	metricsAddr := flag.String("metrics-addr", "", "if set, start a Prometheus /metrics server on this address")
	flag.Parse()

	log := logger.GetDefaultLogger()

	raw, err := os.ReadFile(*storePath)
	s := store.New(log)
	if err == nil {
		var snap store.Snapshot
		if jerr := json.Unmarshal(raw, &snap); jerr != nil {
			log.Fatal("decode store snapshot", logger.Error(jerr))
		}
		if ierr := s.Import(snap); ierr != nil {
			log.Fatal("import store snapshot", logger.Error(ierr))
		}
	} else if !os.IsNotExist(err) {
		log.Fatal("read store snapshot", logger.Error(err))
	}

	dispatcher := transport.NewDispatcher()
	dispatcher.Register("tcp", tcp.New(log))
	dispatcher.Register("http", wshttp.New(log))
	dispatcher.Register("https", wshttp.New(log))
	dispatcher.Register("ws", wshttp.New(log))
	dispatcher.Register("wss", wshttp.New(log))

	relay := newRelay(*domain, s, dispatcher, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/", relay.handleIndex)
	mux.HandleFunc("/new-message", relay.handleNewMessage)
	mux.HandleFunc("/receive-messages/", relay.handleWebsocket)
	if *metricsAddr != "" {
		go func() {
			if err := metrics.StartServer(*metricsAddr); err != nil {
				log.Error("metrics server stopped", logger.Error(err))
			}
		}()
	}

	log.Info("intermediary listening", logger.String("addr", *addr), logger.String("domain", *domain))
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal("intermediary server stopped", logger.Error(err))
	}
}

// relay is the demo intermediary's HTTP/websocket state: a VID store
// covering the identities it manages on behalf of connected users, plus an
// in-process fan-out for messages addressed to a user who has no private
// VID registered here and is only reachable through an open websocket.
type relay struct {
	domain     string
	store      *store.Store
	dispatcher *transport.Dispatcher
	log        logger.Logger
	broadcast  *broadcaster
	upgrader   websocket.Upgrader
}

func newRelay(domain string, s *store.Store, d *transport.Dispatcher, log logger.Logger) *relay {
	return &relay{
		domain:     domain,
		store:      s,
		dispatcher: d,
		log:        log,
		broadcast:  newBroadcaster(),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (r *relay) handleIndex(w http.ResponseWriter, req *http.Request) {
	fmt.Fprintf(w, "<h1>%s</h1>", r.domain)
}

// handleNewMessage accepts a raw envelope, reads its unencrypted sender and
// receiver fields via codec.GetSenderReceiver (no decryption, since an
// intermediary never holds the conversation's end-to-end key), and either
// forwards it onward for a receiver it knows privately or queues it for a
// websocket-connected user.
func (r *relay) handleNewMessage(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sender, receiver, err := codec.GetSenderReceiver(body)
	if err != nil || receiver == nil {
		http.Error(w, "invalid message, receiver missing", http.StatusBadRequest)
		return
	}
	receiverID := string(receiver)
	metrics.EnvelopesOpened.WithLabelValues("routed").Inc()

	if r.store.HasPrivateVid(receiverID) {
		endpoint, out, err := r.store.RouteMessage(receiverID, body)
		if err != nil {
			http.Error(w, "error routing message", http.StatusBadRequest)
			return
		}
		if err := r.dispatcher.Send(req.Context(), endpoint, out); err != nil {
			http.Error(w, "error forwarding message", http.StatusBadGateway)
			return
		}
		metrics.RoutedForwards.WithLabelValues("intermediary").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	r.log.Debug("queueing message for websocket delivery",
		logger.String("sender", string(sender)), logger.String("receiver", receiverID))
	r.broadcast.publish(receiverID, body)
	w.WriteHeader(http.StatusOK)
}

// handleWebsocket upgrades /receive-messages/<name> and streams every
// message addressed to did:web:<domain>:user:<name> until the connection
// closes.
func (r *relay) handleWebsocket(w http.ResponseWriter, req *http.Request) {
	name := strings.TrimPrefix(req.URL.Path, "/receive-messages/")
	if name == "" {
		http.Error(w, "missing user name", http.StatusBadRequest)
		return
	}
	current := fmt.Sprintf("did:web:%s:user:%s", r.domain, name)

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	messages, unsubscribe := r.broadcast.subscribe(current)
	defer unsubscribe()

	for data := range messages {
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return
		}
	}
}
