package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chatalign/internal/align"
	"chatalign/internal/history"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var flags alignFlags
	var workers int

	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Align every .cha transcript in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := flags.apply(base)
			if err != nil {
				return err
			}
			reqs, err := align.DiscoverPairs(args[0])
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				return fmt.Errorf("no .cha transcripts in %s", args[0])
			}
			runner, err := ctx.newRunner(cfg)
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = cfg.Batch.Workers
			}

			outcomes := runner.AlignBatch(cmd.Context(), reqs, workers)
			if flags.jsonOutput {
				if err := writeJSON(cmd, outcomes); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderBatchTable(outcomes))
			}

			failed := 0
			for _, o := range outcomes {
				if o.Status != history.StatusSucceeded {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d transcripts did not align", failed, len(outcomes))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent alignments (default from config)")
	return cmd
}

func renderBatchTable(outcomes []align.Outcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			filepath.Base(o.Request.TranscriptPath),
			string(o.Status),
			strconv.Itoa(o.Result.Relabeled),
			strconv.Itoa(len(o.Result.Warnings)),
			strings.Join(o.Result.Added, ","),
			truncate(o.Error, 60),
		})
	}
	return renderTable(
		[]string{"Transcript", "Status", "Relabeled", "Warnings", "Added", "Error"},
		rows,
		2, 3,
	)
}
