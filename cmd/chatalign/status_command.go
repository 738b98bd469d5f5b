package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chatalign/internal/config"
	"chatalign/internal/deps"
	"chatalign/internal/history"
	"chatalign/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, external tools and run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			problems := 0

			lines := renderSectionHeader("Configuration", colorize)
			configMsg := ctx.configPath
			if !ctx.configSeen {
				configMsg += " (not found, using defaults)"
			}
			lines = append(lines,
				renderStatusLine("Config", statusInfo, configMsg, colorize),
				renderStatusLine("Diarization", statusInfo, diarizationSummary(cfg), colorize),
				renderStatusLine("Tie-break", statusInfo, cfg.Align.TieBreak, colorize),
				renderStatusLine("Turn pass", statusInfo, turnPassSummary(cfg), colorize),
			)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			statuses := preflight.CheckSystemDeps(cfg)
			for _, status := range statuses {
				kind, msg := statusOK, status.Command
				if !status.Available {
					kind, msg = statusError, status.Detail
					if status.Optional {
						kind = statusWarn
						msg += " (not needed for this source)"
					}
				}
				lines = append(lines, renderStatusLine(status.Name, kind, msg, colorize))
			}
			problems += len(deps.Missing(statuses))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			checkCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			for _, result := range preflight.RunAll(checkCtx, cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					problems++
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("History", colorize)...)
			lines = append(lines, historyStatusLine(cmd.Context(), ctx, colorize))

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			if problems > 0 {
				return fmt.Errorf("%d status checks failed", problems)
			}
			return nil
		},
	}
}

func diarizationSummary(cfg *config.Config) string {
	switch cfg.Diarization.Source {
	case config.SourceCommand:
		return fmt.Sprintf("command %s (%s)", cfg.Diarization.Command, cfg.Diarization.Model)
	case config.SourceService:
		return "service " + cfg.Diarization.ServiceURL
	default:
		return "turns files"
	}
}

func turnPassSummary(cfg *config.Config) string {
	switch {
	case !cfg.Align.TurnPass:
		return "off"
	case cfg.Align.TurnPassWrites:
		return "writes labels"
	default:
		return "diagnostic only"
	}
}

func historyStatusLine(ctx context.Context, c *commandContext, colorize bool) string {
	store, err := c.historyStore()
	if err != nil {
		return renderStatusLine("Runs", statusWarn, err.Error(), colorize)
	}
	counts, err := store.StatusCounts(ctx)
	if err != nil {
		return renderStatusLine("Runs", statusWarn, err.Error(), colorize)
	}
	parts := make([]string, 0, len(history.AllStatuses))
	for _, status := range history.AllStatuses {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if len(parts) == 0 {
		return renderStatusLine("Runs", statusInfo, "none recorded", colorize)
	}
	return renderStatusLine("Runs", statusInfo, strings.Join(parts, ", "), colorize)
}
