package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fortuna/internal/config"
	"fortuna/internal/runner"
)

type runFlags struct {
	minWords       int
	rollingWindows string
	savgol         string
	macroWindow    int
	outputDir      string
	workers        int
	batchSize      int
	logLevel       string
	resume         string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <text-file>...",
		Short: "Segment, score, and rank a corpus of texts",
		Long: `Run drives every input text through the full pipeline: sentences are
segmented and filtered, scored by the configured classifier, smoothed into
volatility and cumulative fortune curves, and exported as JSON bundles. Once
every work settles, the corpus is ranked green-to-red by ultimate fortune and
the master bundle is written alongside the per-work artifacts.

A failing work never aborts the run; it is marked failed on the ledger and the
remaining works continue. The command exits non-zero when no work completes.

With --resume, an earlier run is finished instead of a new one started: no
inputs are accepted, the run's failed works are requeued, and the ranking is
rewritten once everything settles.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(flags.resume) != "" {
				if len(args) > 0 {
					return errors.New("input files cannot be combined with --resume")
				}
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyRunOverrides(cfg, cmd, flags); err != nil {
				return err
			}

			report, err := runner.Run(cmd.Context(), cfg, args, runner.Options{
				LogLevel:    flags.logLevel,
				ResumeRunID: flags.resume,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s finished in %s: %d completed, %d failed, %d skipped\n",
				report.RunID, report.Duration.Round(10*time.Millisecond), report.Processed, report.Failed, report.Skipped)
			fmt.Fprintf(out, "Ranking written to %s\n", report.MasterPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&flags.minWords, "min-words", 0, "Retain only sentences with more than this many words")
	cmd.Flags().StringVar(&flags.rollingWindows, "rolling-windows", "", "Comma-separated rolling mean windows (e.g. 20,100)")
	cmd.Flags().StringVar(&flags.savgol, "savgol", "", "Comma-separated Savitzky-Golay window:degree pairs (e.g. 51:3,201:3)")
	cmd.Flags().IntVar(&flags.macroWindow, "macro-window", 0, "Savitzky-Golay window for the macro fortune arc")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Directory artifact bundles are written to")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Number of pipeline workers")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "Sentences per classifier request")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level for the run (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.resume, "resume", "", "Finish an earlier run by id instead of starting a new one")

	return cmd
}

// applyRunOverrides layers explicitly set flags over the loaded configuration
// and re-validates the result, so a bad flag value fails before any work is
// enqueued.
func applyRunOverrides(cfg *config.Config, cmd *cobra.Command, flags *runFlags) error {
	set := cmd.Flags()
	if set.Changed("min-words") {
		cfg.Analysis.MinWords = flags.minWords
	}
	if set.Changed("rolling-windows") {
		windows, err := parseWindowList(flags.rollingWindows)
		if err != nil {
			return fmt.Errorf("--rolling-windows: %w", err)
		}
		cfg.Analysis.RollingWindows = windows
	}
	if set.Changed("savgol") {
		pairs, err := parseSavGolList(flags.savgol)
		if err != nil {
			return fmt.Errorf("--savgol: %w", err)
		}
		cfg.Analysis.SavGol = pairs
	}
	if set.Changed("macro-window") {
		cfg.Analysis.MacroWindow = flags.macroWindow
	}
	if set.Changed("output-dir") {
		expanded, err := config.ExpandPath(strings.TrimSpace(flags.outputDir))
		if err != nil {
			return fmt.Errorf("--output-dir: %w", err)
		}
		cfg.Paths.OutputDir = expanded
	}
	if set.Changed("workers") {
		cfg.Workflow.Workers = flags.workers
	}
	if set.Changed("batch-size") {
		cfg.Scoring.BatchSize = flags.batchSize
	}
	return cfg.Validate()
}

// parseWindowList parses a comma-separated list of window lengths.
func parseWindowList(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	windows := make([]int, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		window, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid window %q", trimmed)
		}
		windows = append(windows, window)
	}
	if len(windows) == 0 {
		return nil, errors.New("at least one window is required")
	}
	return windows, nil
}

// parseSavGolList parses comma-separated window:degree pairs. An empty value
// yields no pairs, which disables the volatility smoothing curves.
func parseSavGolList(value string) ([]config.SavGol, error) {
	parts := strings.Split(value, ",")
	pairs := make([]config.SavGol, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		windowText, degreeText, found := strings.Cut(trimmed, ":")
		if !found {
			return nil, fmt.Errorf("invalid pair %q (expected window:degree)", trimmed)
		}
		window, err := strconv.Atoi(strings.TrimSpace(windowText))
		if err != nil {
			return nil, fmt.Errorf("invalid window in %q", trimmed)
		}
		degree, err := strconv.Atoi(strings.TrimSpace(degreeText))
		if err != nil {
			return nil, fmt.Errorf("invalid degree in %q", trimmed)
		}
		pairs = append(pairs, config.SavGol{Window: window, Degree: degree})
	}
	return pairs, nil
}
