// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trust-spanning/tsp-go/internal/logger"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <identifier>",
	Short: "Resolve a did:web or did:peer identifier to its VID capabilities",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	log := logger.GetDefaultLogger()
	v, err := newResolver(log).Resolve(args[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[0], err)
	}

	fmt.Printf("identifier:      %s\n", v.Identifier())
	fmt.Printf("endpoint:        %s\n", v.Endpoint())
	fmt.Printf("verifying key:   %x\n", v.VerifyingKey())
	fmt.Printf("encryption key:  %x\n", v.EncryptionKey())
	if parent, ok := v.ParentVid(); ok {
		fmt.Printf("parent vid:      %s\n", parent)
	}
	if relation, ok := v.RelationVid(); ok {
		fmt.Printf("relation vid:    %s\n", relation)
	}
	return nil
}
