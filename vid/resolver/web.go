// SPDX-License-Identifier: LGPL-3.0-or-later

// Package resolver provides concrete VID resolvers (did:web over HTTPS,
// did:peer:2 by pure decoding) implementing the vid.Resolver interface. The
// core only depends on that interface; these are reference collaborators.
package resolver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/keys"
	"github.com/trust-spanning/tsp-go/tsperr"
	"github.com/trust-spanning/tsp-go/vid"
)

// didDocument is the subset of a did:web document TSP cares about.
type didDocument struct {
	VerificationKey string `json:"verificationKeyBase58"`
	EncryptionKey   string `json:"encryptionKeyBase58"`
	Service         []struct {
		Type            string `json:"type"`
		ServiceEndpoint string `json:"serviceEndpoint"`
	} `json:"service"`
}

// WebResolver resolves did:web:<host>[:<path>...] identifiers by fetching
// https://<host>/[<path>/.../]did.json.
type WebResolver struct {
	Client *http.Client
	Log    logger.Logger
}

// NewWebResolver builds a WebResolver with a bounded-timeout HTTP client.
func NewWebResolver(log logger.Logger) *WebResolver {
	return &WebResolver{
		Client: &http.Client{Timeout: 10 * time.Second},
		Log:    log,
	}
}

func (r *WebResolver) Resolve(identifier string) (vid.VerifiedVid, error) {
	if !strings.HasPrefix(identifier, "did:web:") {
		return nil, tsperr.ForVid(tsperr.KindInvalidVid, "not a did:web identifier", identifier)
	}
	rest := strings.TrimPrefix(identifier, "did:web:")
	segments := strings.Split(rest, ":")
	host := segments[0]
	docURL := fmt.Sprintf("https://%s/", host)
	if len(segments) > 1 {
		docURL += strings.Join(segments[1:], "/") + "/"
	}
	docURL += "did.json"

	if r.Log != nil {
		r.Log.Debug("resolving did:web", logger.String("identifier", identifier), logger.String("url", docURL))
	}

	resp, err := r.Client.Get(docURL)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindResolveVid, "fetch did:web document", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, tsperr.ForVid(tsperr.KindResolveVid, fmt.Sprintf("did:web document fetch returned %d", resp.StatusCode), identifier)
	}

	var doc didDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, tsperr.Wrap(tsperr.KindResolveVid, "decode did:web document", err)
	}

	verifying, err := decodeKeyBase58(doc.VerificationKey)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindResolveVid, "decode verification key", err)
	}
	encryption, err := decodeKeyBase58AsEncryption(doc.EncryptionKey)
	if err != nil {
		return nil, tsperr.Wrap(tsperr.KindResolveVid, "decode encryption key", err)
	}

	var endpoint string
	for _, svc := range doc.Service {
		if svc.Type == "tsp" {
			endpoint = svc.ServiceEndpoint
			break
		}
	}
	if endpoint == "" {
		return nil, tsperr.ForVid(tsperr.KindResolveVid, "did:web document missing tsp service endpoint", identifier)
	}

	return vid.NewVerifiedVid(identifier, endpoint, verifying, encryption, "", "")
}

func decodeKeyBase58(s string) (keys.SigningPublicKey, error) {
	var out keys.SigningPublicKey
	raw, err := base58Decode(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("expected 32-byte key, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func decodeKeyBase58AsEncryption(s string) (keys.EncryptionPublicKey, error) {
	var out keys.EncryptionPublicKey
	raw, err := base58Decode(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("expected 32-byte key, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
