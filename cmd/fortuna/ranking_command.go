package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fortuna/internal/config"
	"fortuna/internal/export"
)

func newRankingCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "ranking",
		Short: "Show the green-to-red corpus ranking from the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			dir := cfg.Paths.OutputDir
			if trimmed := strings.TrimSpace(outputDir); trimmed != "" {
				expanded, err := config.ExpandPath(trimmed)
				if err != nil {
					return fmt.Errorf("--output-dir: %w", err)
				}
				dir = expanded
			}

			master, err := export.ReadMaster(dir)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("no ranking found in %s; run `fortuna run` first", dir)
				}
				return fmt.Errorf("read ranking: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, master)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s: %d works, generated %s\n",
				master.RunID, master.WorkCount, master.GeneratedAt.Local().Format("2006-01-02 15:04:05"))

			rows := make([][]string, 0, len(master.Works))
			for _, work := range master.Works {
				rows = append(rows, []string{
					strconv.Itoa(work.Rank),
					work.Title,
					strconv.Itoa(work.SentenceCount),
					fmt.Sprintf("%+.3f", work.UltimateFortune),
					work.Color,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Rank", "Title", "Sentences", "Fortune", "Color"},
				rows,
				0, 2, 3,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory containing the ranking bundle")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the ranking as JSON")
	return cmd
}
