package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chatalign/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent alignment runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			store, err := ctx.historyStore()
			if err != nil {
				return err
			}
			runs, err := store.ListRuns(cmd.Context(), limit, filter...)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []*history.Run{}
				}
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRunsTable(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show runs with these statuses")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its overlap diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.historyStore()
			if err != nil {
				return err
			}
			run, err := store.GetRun(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				if errors.Is(err, history.ErrAmbiguousID) {
					return fmt.Errorf("run id %q matches several runs; give more characters", args[0])
				}
				return err
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			diags, err := store.Diagnostics(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if jsonOutput {
				if diags == nil {
					diags = []history.Diagnostic{}
				}
				return writeJSON(cmd, map[string]any{"run": run, "diagnostics": diags})
			}
			printRun(cmd.OutOrStdout(), run, diags)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished runs older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.Logging.RetentionDays
			}
			if days <= 0 {
				return errors.New("retention is disabled; pass --days")
			}
			store, err := ctx.historyStore()
			if err != nil {
				return err
			}
			removed, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs older than %d days\n", removed, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Age in days (default logging.retention_days)")
	return cmd
}

func parseStatuses(values []string) ([]history.Status, error) {
	var out []history.Status
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		found := false
		for _, status := range history.AllStatuses {
			if string(status) == value {
				out = append(out, status)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown status %q", value)
		}
	}
	return out, nil
}

func renderRunsTable(runs []*history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(run.Status),
			filepath.Base(run.TranscriptPath),
			strconv.Itoa(run.Relabeled),
			strconv.Itoa(run.Warnings),
			formatDuration(run.Duration()),
		})
	}
	return renderTable(
		[]string{"ID", "Started", "Status", "Transcript", "Relabeled", "Warnings", "Duration"},
		rows,
		4, 5, 6,
	)
}

func printRun(out io.Writer, run *history.Run, diags []history.Diagnostic) {
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "  %-12s %s\n", label+":", value)
		}
	}
	fmt.Fprintf(out, "Run %s\n", run.ID)
	field("Status", string(run.Status))
	field("Transcript", run.TranscriptPath)
	field("Audio", run.AudioPath)
	field("Turns file", run.TurnsPath)
	field("Source", run.Source)
	field("Output", run.OutputPath)
	field("Started", run.StartedAt.Local().Format(time.RFC3339))
	field("Duration", formatDuration(run.Duration()))
	if run.Status == history.StatusSucceeded {
		field("Utterances", strconv.Itoa(run.Utterances))
		field("Turns", strconv.Itoa(run.Turns))
		field("Relabeled", strconv.Itoa(run.Relabeled))
		field("Added", strings.Join(run.Added, ", "))
	}
	field("Error", run.ErrorMessage)

	if len(diags) == 0 {
		return
	}
	fmt.Fprintln(out)
	rows := make([][]string, 0, len(diags))
	for _, d := range diags {
		who := d.Speaker
		if d.Chosen != "" {
			who = d.Chosen
		}
		if len(d.Candidates) > 0 {
			who += " (" + strings.Join(d.Candidates, "/") + ")"
		}
		text := d.Text
		if text == "" && len(d.Texts) > 0 {
			text = strings.Join(d.Texts, " | ")
		}
		rows = append(rows, []string{
			strconv.Itoa(int(d.Pass)),
			string(d.Kind),
			strconv.Itoa(d.Index),
			formatSeconds(d.Start) + "-" + formatSeconds(d.End),
			who,
			truncate(text, 50),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Pass", "Kind", "Index", "Span", "Speaker", "Text"},
		rows,
		0, 2,
	))
}
