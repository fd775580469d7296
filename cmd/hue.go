package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"auraconnect/internal/discovery"
	"auraconnect/internal/lights"
	"auraconnect/internal/store"
)

var hueCmd = &cobra.Command{
	Use:   "hue",
	Short: "Find and pair Philips Hue bridges",
}

var hueDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List Hue bridges on the local network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		bridges := discovery.NewScanner(logger).HueBridges(ctx)
		if len(bridges) == 0 {
			printf(cmd, "no Hue bridges found\n")
			return nil
		}
		for _, b := range bridges {
			printf(cmd, "%s\t%s\n", b.IP, b.Name)
		}
		return nil
	},
}

var hueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List paired Hue bridges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		for _, b := range st.HueBridges() {
			printf(cmd, "%s\t%s\n", b.IP, b.ID)
		}
		return nil
	},
}

var hueForgetCmd = &cobra.Command{
	Use:   "forget <ip>",
	Short: "Remove a paired Hue bridge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		return st.RemoveHueBridge(args[0])
	},
}

var huePairCmd = &cobra.Command{
	Use:   "pair <ip>",
	Short: "Pair with the bridge at <ip>; press its link button first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ip := args[0]
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		username, err := lights.PairHueBridge(ctx, ip)
		if err != nil {
			return fmt.Errorf("pairing %s: %w", ip, err)
		}
		if err := st.UpsertHueBridge(store.HueBridge{ID: uuid.NewString(), IP: ip, Username: username}); err != nil {
			return fmt.Errorf("paired but failed to save: %w", err)
		}
		printf(cmd, "paired with %s, saved to %s\n", ip, st.Path())
		return nil
	},
}

func init() {
	hueCmd.AddCommand(hueDiscoverCmd, hueListCmd, hueForgetCmd, huePairCmd)
	rootCmd.AddCommand(hueCmd)
}
