// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tsp",
	Short: "Trust Spanning Protocol command line tool",
	Long: `tsp binds, resolves and sends Trust Spanning Protocol messages
between Verified Identifiers (VIDs).

This tool supports:
- Binding new owned VIDs to a transport endpoint
- Resolving did:web and did:peer identifiers
- Sending messages (direct, or nested when the stored receiver names a parent VID)
- Driving the relationship-formation handshake
- Running a long-lived receive loop`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	// Commands are registered in their respective files:
	// - bind.go: bindCmd
	// - resolve.go: resolveCmd
	// - send.go: sendCmd
	// - relationship.go: relationshipCmd (request/accept/cancel)
	// - listen.go: listenCmd
}
