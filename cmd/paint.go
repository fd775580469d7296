package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"auraconnect/internal/lights"
)

var paintTimeout time.Duration

var paintCmd = &cobra.Command{
	Use:   "paint <color>...",
	Short: "Paint one palette across every device and exit",
	Long: `Paint discovers devices, distributes the given colours round-robin over
every light zone and exits. Colours are hex, either #rrggbb or #rgb.

Example:
  auraconnect paint '#ff0000' '#00ff00' '#0000ff'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		palette, err := parsePalette(args)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), paintTimeout)
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
		if err := svc.DistributeColors(ctx, palette); err != nil {
			return err
		}
		printSnapshot(cmd, svc.Snapshot())
		return nil
	},
}

func init() {
	paintCmd.Flags().DurationVar(&paintTimeout, "timeout", time.Minute, "overall timeout")
	rootCmd.AddCommand(paintCmd)
}

func parsePalette(args []string) ([]lights.Color, error) {
	palette := make([]lights.Color, 0, len(args))
	for _, a := range args {
		c, err := lights.ParseColor(a)
		if err != nil {
			return nil, err
		}
		palette = append(palette, c)
	}
	return palette, nil
}
