// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/store"
	"github.com/trust-spanning/tsp-go/vid"
)

var (
	bindIdentifier string
	bindEndpoint   string
	bindNested     bool
	bindRelation   string
	bindOut        string
)

var bindCmd = &cobra.Command{
	Use:   "bind",
	Short: "Generate a fresh owned VID and store it to a file",
	Long: `bind generates a new Ed25519 signing keypair and X25519 encryption
keypair and writes an owned VID snapshot to --out.

Two forms are supported:
  tsp bind --id did:web:example.com:user:alice --endpoint tcp://0.0.0.0:8420 --out alice.json
  tsp bind --nested --endpoint tcp://0.0.0.0:8420 --relation did:web:example.com:user:alice --out nested.json

The nested form self-encodes the new keys as a did:peer:2 identifier and is
used for a conversation-scoped identity that hides the durable parent VID.`,
	RunE: runBind,
}

func init() {
	rootCmd.AddCommand(bindCmd)

	bindCmd.Flags().StringVar(&bindIdentifier, "id", "", "identifier for the new VID (required unless --nested)")
	bindCmd.Flags().StringVar(&bindEndpoint, "endpoint", "", "transport endpoint URL this VID is reachable at")
	bindCmd.Flags().BoolVar(&bindNested, "nested", false, "derive a did:peer:2 nested identifier instead")
	bindCmd.Flags().StringVar(&bindRelation, "relation", "", "relation VID recorded on a nested identity")
	bindCmd.Flags().StringVar(&bindOut, "out", "vid.json", "output snapshot file path")
}

func runBind(cmd *cobra.Command, args []string) error {
	if bindEndpoint == "" {
		return fmt.Errorf("--endpoint is required")
	}

	var owned vid.OwnedVid
	var err error
	if bindNested {
		owned, err = vid.CreateNestedVid(bindEndpoint, bindRelation)
	} else {
		if bindIdentifier == "" {
			return fmt.Errorf("--id is required unless --nested is set")
		}
		owned, err = vid.Bind(bindIdentifier, bindEndpoint)
	}
	if err != nil {
		return fmt.Errorf("generate vid: %w", err)
	}

	log := logger.GetDefaultLogger()
	s := store.New(log)
	if err := s.AddPrivateVid(owned); err != nil {
		return fmt.Errorf("register vid: %w", err)
	}
	if err := saveStore(s, bindOut); err != nil {
		return err
	}

	fmt.Printf("bound %s, wrote %s\n", owned.Identifier(), bindOut)
	return nil
}
