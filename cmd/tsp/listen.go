// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/trust-spanning/tsp-go/config"
	"github.com/trust-spanning/tsp-go/health"
	"github.com/trust-spanning/tsp-go/internal/logger"
	"github.com/trust-spanning/tsp-go/internal/metrics"
	"github.com/trust-spanning/tsp-go/store"
	"github.com/trust-spanning/tsp-go/tspnet"
)

var (
	listenConfigDir string
	listenVid       string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run a receive loop for one owned VID until interrupted",
	Long: `listen loads a node from a layered config directory (see
config.Load) and subscribes to --vid's inbound transport, logging every
decoded message, relationship control frame and routed forward until the
process is interrupted. If Config.Metrics.Enabled, it also starts a
Prometheus /metrics server; if Config.Health.Enabled, it starts a
liveness/readiness server on Config.Health.Addr.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVar(&listenConfigDir, "config-dir", "config", "layered config directory")
	listenCmd.Flags().StringVar(&listenVid, "vid", "", "owned VID identifier to receive on (default: the bound vid in Identity.OwnedVidPath)")
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: listenConfigDir})
	if err != nil {
		return err
	}

	log := logger.GetDefaultLogger()
	node, err := newNode(cfg, log)
	if err != nil {
		return err
	}

	vidID := listenVid
	if vidID == "" {
		for _, id := range node.Store.ListVids() {
			if node.Store.HasPrivateVid(id) {
				vidID = id
				break
			}
		}
	}
	if vidID == "" {
		return fmt.Errorf("no owned VID found: pass --vid or configure identity.owned_vid_path")
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Addr); err != nil {
				log.Error("metrics server stopped", logger.Error(err))
			}
		}()
	}

	if cfg.Health.Enabled {
		checker := health.NewHealthChecker(cfg.Health.Timeout)
		checker.SetLogger(log)
		checker.RegisterCheck("store", health.StoreHealthCheck(node.Store.ListVids))
		go func() {
			if err := health.StartServer(cfg.Health.Addr, cfg.Health.Path, checker); err != nil {
				log.Error("health server stopped", logger.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, cancel, err := node.Receive(ctx, vidID)
	if err != nil {
		return err
	}
	defer cancel()

	log.Info("listening", logger.String("vid", vidID))
	for result := range results {
		logReceived(log, result)
	}
	return nil
}

func logReceived(log logger.Logger, result tspnet.Result) {
	if result.Err != nil {
		log.Warn("failed to decode inbound frame", logger.Error(result.Err))
		return
	}

	msg := result.Message
	switch msg.Kind {
	case store.GenericMessage:
		log.Info("received message",
			logger.String("sender", msg.Sender.Identifier()),
			logger.Int("bytes", len(msg.Message)))
	case store.RequestRelationship:
		log.Info("received relationship request",
			logger.String("sender", msg.Sender.Identifier()),
			logger.String("thread", msg.ThreadID.String()))
	case store.AcceptRelationship:
		log.Info("received relationship accept", logger.String("sender", msg.Sender.Identifier()))
	case store.CancelRelationship:
		log.Info("received relationship cancel", logger.String("sender", msg.Sender.Identifier()))
	case store.ForwardRequest:
		log.Info("received routed forward request",
			logger.String("next_hop", msg.NextHop.Identifier()),
			logger.Int("remaining_hops", len(msg.Route)))
	}
}
