package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"auraconnect/internal/broadcast"
	"auraconnect/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the broadcast relay (default command)",
	RunE:  runService,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runService(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appID, err := cfg.ParsedAppID()
	if err != nil {
		return err
	}

	svc, cleanup, err := newService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	defer svc.Close()

	bridge := broadcast.NewBridge(svc, logging.Component(logger, "bridge"))
	source := broadcast.NewMQTTSource(cfg.MQTT, cfg.Broadcast.TopicPrefix, logging.Component(logger, "mqtt"))
	if err := source.Start(ctx, bridge); err != nil {
		return err
	}
	defer source.Close()

	// The worker must be gone before svc.Close shuts the providers down.
	workerCtx, stopWorker := context.WithCancel(ctx)
	go bridge.Run(workerCtx)
	defer func() {
		stopWorker()
		<-bridge.Done()
	}()

	half := cfg.Startup.SettleDelay / 2
	if err := sleep(ctx, half); err != nil {
		return nil
	}
	logger.Info("initializing auraconnect")
	if err := sleep(ctx, cfg.Startup.SettleDelay-half); err != nil {
		return nil
	}

	if err := bridge.WaitConnected(ctx, cfg.Broadcast.ConnectTimeout); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("waiting for broadcast: %w", err)
	}

	if err := svc.Initialize(ctx); err != nil {
		return err
	}
	if err := source.Init(ctx, appID); err != nil {
		return fmt.Errorf("announcing to broadcast: %w", err)
	}

	logger.Info("auraconnect started", "providers", len(svc.Providers()))
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
