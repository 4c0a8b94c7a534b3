// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/trust-spanning/tsp-go/config"
	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/store"
	"github.com/trust-spanning/tsp-go/transport"
	"github.com/trust-spanning/tsp-go/transport/tcp"
	"github.com/trust-spanning/tsp-go/transport/wshttp"
	"github.com/trust-spanning/tsp-go/tspnet"
	"github.com/trust-spanning/tsp-go/vid/resolver"
)

// loadStore reads a snapshot file (the format written by `tsp bind`) into a
// fresh Store. A missing file yields an empty store, so `tsp send` can be
// pointed at an identity that only exists as verified peers so far.
func loadStore(log logger.Logger, path string) (*store.Store, error) {
	s := store.New(log)
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vid store %s: %w", path, err)
	}
	var snap store.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode vid store %s: %w", path, err)
	}
	if err := s.Import(snap); err != nil {
		return nil, fmt.Errorf("import vid store %s: %w", path, err)
	}
	return s, nil
}

// saveStore writes the store's full exportable state back to path.
func saveStore(s *store.Store, path string) error {
	raw, err := json.MarshalIndent(s.Export(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode vid store: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// newDispatcher registers every transport driver a CLI command might need.
func newDispatcher(log logger.Logger) *transport.Dispatcher {
	d := transport.NewDispatcher()
	t := tcp.New(log)
	w := wshttp.New(log)
	d.Register("tcp", t)
	d.Register("http", w)
	d.Register("https", w)
	d.Register("ws", w)
	d.Register("wss", w)
	return d
}

// newResolver builds the did:web/did:peer resolver used to look up
// identifiers not already present in the local store.
func newResolver(log logger.Logger) *resolver.SchemeResolver {
	return resolver.NewSchemeResolver(resolver.NewWebResolver(log))
}

// newNode assembles a tspnet.Node from a loaded Config, resolving
// Config.Peers into the store as verified VIDs it doesn't already know.
func newNode(cfg *config.Config, log logger.Logger) (*tspnet.Node, error) {
	s, err := loadStore(log, cfg.Identity.OwnedVidPath)
	if err != nil {
		return nil, err
	}

	res := newResolver(log)
	for _, peer := range cfg.Peers {
		if _, err := s.GetVerifiedVid(peer.Vid); err == nil {
			continue
		}
		v, err := res.Resolve(peer.Vid)
		if err != nil {
			return nil, fmt.Errorf("resolve peer %s: %w", peer.Vid, err)
		}
		if err := s.AddVerifiedVid(v); err != nil {
			return nil, err
		}
	}

	return tspnet.New(s, newDispatcher(log), log), nil
}
