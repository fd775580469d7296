package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"auraconnect/internal/aura"
)

var devicesTimeout time.Duration

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Discover devices once and print the provider tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), devicesTimeout)
		defer cancel()

		svc, cleanup, err := newService(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		defer svc.Close()

		if err := svc.Initialize(ctx); err != nil {
			return err
		}
		printSnapshot(cmd, svc.Snapshot())
		return nil
	},
}

func init() {
	devicesCmd.Flags().DurationVar(&devicesTimeout, "timeout", time.Minute, "overall discovery timeout")
	rootCmd.AddCommand(devicesCmd)
}

func printSnapshot(cmd *cobra.Command, providers []aura.ProviderSnapshot) {
	for _, p := range providers {
		state := "active"
		if !p.Active {
			state = "unavailable"
		}
		printf(cmd, "%s (%s)\n", p.Name, state)
		for _, d := range p.Devices {
			printf(cmd, "  %s: %d light(s)", d.Name, len(d.Lights))
			for _, c := range d.Lights {
				printf(cmd, " %s", c)
			}
			printf(cmd, "\n")
		}
	}
}
