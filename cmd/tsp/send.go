// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/tspnet"
)

var (
	sendStorePath       string
	sendFrom            string
	sendTo              string
	sendMessage         string
	sendNonconfidential string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a direct TSP message",
	Long: `send seals message for --to and puts it on the wire. If --to is not
already known to the local store, it is resolved first (did:web or
did:peer) and the resulting verified VID is added before sending.`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendStorePath, "store", "vid.json", "owned VID snapshot file")
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "sender identifier, must be an owned VID in --store")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "receiver identifier")
	sendCmd.Flags().StringVar(&sendMessage, "message", "", "confidential message body")
	sendCmd.Flags().StringVar(&sendNonconfidential, "nonconfidential", "", "nonconfidential (outer, unencrypted) payload")
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendFrom == "" || sendTo == "" {
		return fmt.Errorf("--from and --to are required")
	}

	log := logger.GetDefaultLogger()
	s, err := loadStore(log, sendStorePath)
	if err != nil {
		return err
	}

	if _, err := s.GetVerifiedVid(sendTo); err != nil {
		v, rerr := newResolver(log).Resolve(sendTo)
		if rerr != nil {
			return fmt.Errorf("resolve receiver %s: %w", sendTo, rerr)
		}
		if err := s.AddVerifiedVid(v); err != nil {
			return err
		}
	}

	node := tspnet.New(s, newDispatcher(log), log)
	ctx := context.Background()
	if err := node.Send(ctx, sendFrom, sendTo, []byte(sendNonconfidential), []byte(sendMessage)); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	fmt.Printf("sent message from %s to %s\n", sendFrom, sendTo)
	return saveStore(s, sendStorePath)
}
