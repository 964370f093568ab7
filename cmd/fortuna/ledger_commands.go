package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fortuna/internal/queue"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Work ledger maintenance",
	}

	ledgerCmd.AddCommand(newLedgerClearCommand(ctx))
	ledgerCmd.AddCommand(newLedgerRemoveCommand(ctx))

	return ledgerCmd
}

func newLedgerClearCommand(ctx *commandContext) *cobra.Command {
	var completedOnly bool
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete works from the ledger",
		Long: `Clear deletes ledger rows only; exported bundles stay on disk. Without
flags every work is removed. --completed and --failed narrow the sweep to one
terminal status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if completedOnly && failedOnly {
				return errors.New("choose one of --completed or --failed")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open work ledger: %w", err)
			}
			defer store.Close()

			var removed int64
			what := "works"
			switch {
			case completedOnly:
				removed, err = store.ClearCompleted(cmd.Context())
				what = "completed works"
			case failedOnly:
				removed, err = store.ClearFailed(cmd.Context())
				what = "failed works"
			default:
				removed, err = store.Clear(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("clear ledger: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s from the ledger\n", removed, what)
			return nil
		},
	}

	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Only delete completed works")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only delete failed works")
	return cmd
}

func newLedgerRemoveCommand(ctx *commandContext) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "remove <work-key>",
		Short: "Delete one work from a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open work ledger: %w", err)
			}
			defer store.Close()

			resolved := strings.TrimSpace(runID)
			if resolved == "" {
				resolved, err = store.LatestRunID(cmd.Context())
				if err != nil {
					return fmt.Errorf("resolve latest run: %w", err)
				}
			}
			if resolved == "" {
				return errors.New("the ledger is empty")
			}

			key := strings.TrimSpace(args[0])
			item, err := store.FindByWorkKey(cmd.Context(), resolved, key)
			if err != nil {
				return fmt.Errorf("find work: %w", err)
			}
			if item == nil {
				return fmt.Errorf("run %s has no work %q", resolved, key)
			}
			removed, err := store.Remove(cmd.Context(), item.ID)
			if err != nil {
				return fmt.Errorf("remove work: %w", err)
			}
			if !removed {
				return fmt.Errorf("work %q was already removed", key)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from run %s\n", key, resolved)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run identifier (defaults to the latest run)")
	return cmd
}
