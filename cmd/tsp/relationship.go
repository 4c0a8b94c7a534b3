// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/keys"
	"github.com/trust-spanning/tsp-go/tspnet"
)

var (
	relStorePath string
	relFrom      string
	relTo        string
	relThreadHex string
)

var relationshipCmd = &cobra.Command{
	Use:   "relationship",
	Short: "Drive the relationship-formation control sub-protocol",
}

var relationshipRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Propose a relationship and print the resulting thread id",
	RunE:  runRelationshipRequest,
}

var relationshipAcceptCmd = &cobra.Command{
	Use:   "accept",
	Short: "Accept a pending relationship request by thread id",
	RunE:  runRelationshipAccept,
}

var relationshipCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel an existing or pending relationship",
	RunE:  runRelationshipCancel,
}

func init() {
	rootCmd.AddCommand(relationshipCmd)
	relationshipCmd.AddCommand(relationshipRequestCmd, relationshipAcceptCmd, relationshipCancelCmd)

	for _, c := range []*cobra.Command{relationshipRequestCmd, relationshipAcceptCmd, relationshipCancelCmd} {
		c.Flags().StringVar(&relStorePath, "store", "vid.json", "owned VID snapshot file")
		c.Flags().StringVar(&relFrom, "from", "", "proposer/acceptor identifier, must be an owned VID in --store")
		c.Flags().StringVar(&relTo, "to", "", "counterparty identifier")
	}
	relationshipAcceptCmd.Flags().StringVar(&relThreadHex, "thread", "", "hex-encoded thread id from the request")
}

func runRelationshipRequest(cmd *cobra.Command, args []string) error {
	if relFrom == "" || relTo == "" {
		return fmt.Errorf("--from and --to are required")
	}
	log := logger.GetDefaultLogger()
	s, err := loadStore(log, relStorePath)
	if err != nil {
		return err
	}
	node := tspnet.New(s, newDispatcher(log), log)
	threadID, err := node.SendRelationshipRequest(context.Background(), relFrom, relTo)
	if err != nil {
		return fmt.Errorf("request relationship: %w", err)
	}
	fmt.Printf("requested relationship %s -> %s, thread %x\n", relFrom, relTo, threadID)
	return saveStore(s, relStorePath)
}

func runRelationshipAccept(cmd *cobra.Command, args []string) error {
	if relFrom == "" || relTo == "" || relThreadHex == "" {
		return fmt.Errorf("--from, --to and --thread are required")
	}
	raw, err := hex.DecodeString(relThreadHex)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("--thread must be a 32-byte hex string")
	}
	var threadID keys.Digest
	copy(threadID[:], raw)

	log := logger.GetDefaultLogger()
	s, err := loadStore(log, relStorePath)
	if err != nil {
		return err
	}
	node := tspnet.New(s, newDispatcher(log), log)
	if err := node.SendRelationshipAccept(context.Background(), relFrom, relTo, threadID); err != nil {
		return fmt.Errorf("accept relationship: %w", err)
	}
	fmt.Printf("accepted relationship %s -> %s\n", relFrom, relTo)
	return saveStore(s, relStorePath)
}

func runRelationshipCancel(cmd *cobra.Command, args []string) error {
	if relFrom == "" || relTo == "" {
		return fmt.Errorf("--from and --to are required")
	}
	log := logger.GetDefaultLogger()
	s, err := loadStore(log, relStorePath)
	if err != nil {
		return err
	}
	node := tspnet.New(s, newDispatcher(log), log)
	if err := node.SendRelationshipCancel(context.Background(), relFrom, relTo); err != nil {
		return fmt.Errorf("cancel relationship: %w", err)
	}
	fmt.Printf("cancelled relationship %s -> %s\n", relFrom, relTo)
	return saveStore(s, relStorePath)
}
