package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fortuna/internal/preflight"
	"fortuna/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var statusFilter string
	var withChecks bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-work ledger status for a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if withChecks {
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, result := range preflight.RunAll(cmd.Context(), cfg) {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
				fmt.Fprintln(out)
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
				fmt.Fprintln(out, "The ledger is empty; run `fortuna run` to process texts.")
				return nil
			}

			var only []queue.Status
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				parsed, ok := queue.ParseStatus(trimmed)
				if !ok {
					return fmt.Errorf("unknown status %q (known: %s)", trimmed, knownStatuses())
				}
				only = append(only, parsed)
			}

			items, err := store.ListRun(cmd.Context(), resolved, only...)
			if err != nil {
				return fmt.Errorf("list run works: %w", err)
			}
			if len(items) == 0 {
				if len(only) > 0 {
					return fmt.Errorf("run %s has no %s works", resolved, only[0])
				}
				return fmt.Errorf("run %s has no works", resolved)
			}

			for _, line := range renderSectionHeader("Run "+resolved, colorize) {
				fmt.Fprintln(out, line)
			}
			var completed, failed, active int
			for _, item := range items {
				fmt.Fprintln(out, renderStatusLine(item.DisplayTitle(), workStatusKind(item.Status), workStatusMessage(item), colorize))
				if !item.IsTerminal() {
					active++
					continue
				}
				if item.Status == queue.StatusCompleted {
					completed++
				} else {
					failed++
				}
			}
			fmt.Fprintf(out, "\n%d works: %d completed, %d failed, %d in flight\n",
				len(items), completed, failed, active)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run identifier (defaults to the latest run)")
	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show works with this status (e.g. failed)")
	cmd.Flags().BoolVar(&withChecks, "checks", false, "Run preflight checks before showing the ledger")
	return cmd
}

func knownStatuses() string {
	statuses := queue.AllStatuses()
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

func workStatusKind(status queue.Status) statusKind {
	switch status {
	case queue.StatusCompleted:
		return statusOK
	case queue.StatusFailed:
		return statusError
	case queue.StatusPending:
		return statusInfo
	default:
		return statusActive
	}
}

// workStatusMessage picks the most useful single line for a work: the failure
// reason, a completion summary, or the in-flight progress message.
func workStatusMessage(item *queue.Item) string {
	switch item.Status {
	case queue.StatusFailed:
		if item.ErrorMessage != "" {
			return item.ErrorMessage
		}
		return string(item.Status)
	case queue.StatusCompleted:
		message := fmt.Sprintf("%d sentences", item.SentenceCount)
		if item.UltimateFortune != nil {
			message += fmt.Sprintf(", fortune %+.2f", *item.UltimateFortune)
		}
		return message
	default:
		if item.ProgressMessage != "" {
			return item.ProgressMessage
		}
		return string(item.Status)
	}
}
