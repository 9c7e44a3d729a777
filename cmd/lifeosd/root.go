// Package cli wires the cobra commands for the lifeosd binary.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/lifeos/lifeosd/internal/config"
	"github.com/lifeos/lifeosd/internal/logging"
	"github.com/lifeos/lifeosd/internal/server"
	"github.com/lifeos/lifeosd/internal/svc"
)

// ServerConfig is set by SetupRootCmd before any command runs.
var ServerConfig *config.Config

// SetupRootCmd builds the command tree with the given config.
func SetupRootCmd(c *config.Config) *cobra.Command {
	ServerConfig = c

	rootCmd := &cobra.Command{
		Use:   "lifeosd",
		Short: "Personal assistant chat orchestrator",
		Long:  "lifeosd routes chat requests across model tiers, runs the tool loop, and persists conversations.",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}

	rootCmd.AddCommand(serveCmd)
	return rootCmd
}

func runServe() {
	c := *ServerConfig

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal: %v - shutting down...\n", sig)
		cancel()
	}()

	svcCtx, err := svc.NewServiceContext(c)
	if err != nil {
		fmt.Printf("Error: failed to initialize service: %v\n", err)
		os.Exit(1)
	}
	defer svcCtx.Close()

	stopMaintenance := startMaintenance(c, svcCtx)
	defer stopMaintenance()

	if err := server.Run(ctx, c, server.ServerOptions{SvcCtx: svcCtx}); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// startMaintenance schedules the nightly store upkeep: purge messages that
// carry no content and fold the WAL back into the main database file.
func startMaintenance(c config.Config, svcCtx *svc.ServiceContext) func() {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(c.Maintenance.Cron, func() {
		purged, err := svcCtx.Conversations.PurgeEmptyMessages()
		if err != nil {
			logging.Errorf("[Maintenance] purge failed: %v", err)
		} else if purged > 0 {
			logging.Infof("[Maintenance] purged %d empty messages", purged)
		}
		if err := svcCtx.Store.Checkpoint(); err != nil {
			logging.Errorf("[Maintenance] wal checkpoint failed: %v", err)
		}
	})
	if err != nil {
		logging.Warnf("[Maintenance] invalid cron schedule %q, maintenance disabled: %v", c.Maintenance.Cron, err)
		return func() {}
	}

	scheduler.Start()
	return func() { scheduler.Stop() }
}
