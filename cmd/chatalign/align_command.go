package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chatalign/internal/align"
	"chatalign/internal/config"
	"chatalign/internal/timeline"
)

// alignFlags are the per-invocation overrides of the [align] config section.
type alignFlags struct {
	tieBreak       string
	noTurnPass     bool
	turnPassWrites bool
	skipUntimed    bool
	overwrite      bool
	noBackup       bool
	corpus         string
	source         string
	jsonOutput     bool
}

func (f *alignFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tieBreak, "tie-break", "", "Ambiguous utterance policy: none or longest_overlap")
	cmd.Flags().BoolVar(&f.noTurnPass, "no-turn-pass", false, "Skip the turn-centric diagnostic pass")
	cmd.Flags().BoolVar(&f.turnPassWrites, "turn-pass-writes", false, "Let the turn pass relabel utterances")
	cmd.Flags().BoolVar(&f.skipUntimed, "skip-untimed", false, "Leave utterances without time marks untouched")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "Replace an existing _fixed.cha output")
	cmd.Flags().BoolVar(&f.noBackup, "no-backup", false, "Do not keep a .bak copy of replaced output")
	cmd.Flags().StringVar(&f.corpus, "corpus", "", "Corpus name recorded for added participants")
	cmd.Flags().StringVar(&f.source, "source", "", "Diarization source: file, command or service")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output as JSON")
}

// apply returns a copy of cfg with the flags layered on top.
func (f *alignFlags) apply(cfg *config.Config) (*config.Config, error) {
	out := *cfg
	if f.tieBreak != "" {
		if _, err := timeline.ParseTieBreak(f.tieBreak); err != nil {
			return nil, err
		}
		out.Align.TieBreak = f.tieBreak
	}
	if f.noTurnPass {
		out.Align.TurnPass = false
	}
	if f.turnPassWrites {
		out.Align.TurnPassWrites = true
	}
	if f.skipUntimed {
		out.Align.SkipUntimed = true
	}
	if f.overwrite {
		out.Align.Overwrite = true
	}
	if f.noBackup {
		out.Align.Backup = false
	}
	if f.corpus != "" {
		out.Align.Corpus = f.corpus
	}
	if f.source != "" {
		switch f.source {
		case config.SourceFile, config.SourceCommand, config.SourceService:
			out.Diarization.Source = f.source
		default:
			return nil, fmt.Errorf("unknown diarization source %q", f.source)
		}
	}
	return &out, nil
}

func (c *commandContext) newRunner(cfg *config.Config) (*align.Runner, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := c.historyStore()
	if err != nil {
		return nil, err
	}
	return align.NewRunner(cfg, logger, store), nil
}

func newAlignCommand(ctx *commandContext) *cobra.Command {
	var flags alignFlags
	var turnsPath, outputPath string

	cmd := &cobra.Command{
		Use:   "align <transcript.cha> [audio]",
		Short: "Relabel one transcript and write <name>_fixed.cha",
		Args:  cobra.RangeArgs(1, 2),
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
			runner, err := ctx.newRunner(cfg)
			if err != nil {
				return err
			}

			req := align.Request{TranscriptPath: args[0], TurnsPath: turnsPath, OutputPath: outputPath}
			if len(args) > 1 {
				req.AudioPath = args[1]
			}
			out, runErr := runner.AlignFile(cmd.Context(), req)
			if flags.jsonOutput {
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
				return runErr
			}
			if runErr != nil {
				return runErr
			}
			printOutcome(cmd.OutOrStdout(), out)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&turnsPath, "turns", "", "Diarization turns file (json, rttm or yaml)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (default <name>_fixed.cha)")
	return cmd
}

func printOutcome(out io.Writer, o align.Outcome) {
	fmt.Fprintf(out, "Aligned %s -> %s\n", filepath.Base(o.Request.TranscriptPath), o.OutputPath)
	utterances := fmt.Sprintf("%d", o.Utterances)
	if o.Untimed > 0 {
		utterances += fmt.Sprintf(" (%d untimed skipped)", o.Untimed)
	}
	fmt.Fprintf(out, "  %-12s %s\n", "Utterances:", utterances)
	fmt.Fprintf(out, "  %-12s %d (%s)\n", "Turns:", o.Turns, o.Source)
	fmt.Fprintf(out, "  %-12s %d\n", "Relabeled:", o.Result.Relabeled)
	if len(o.Result.Added) > 0 {
		fmt.Fprintf(out, "  %-12s %s\n", "Added:", strings.Join(o.Result.Added, ", "))
	}
	if o.BackupPath != "" {
		fmt.Fprintf(out, "  %-12s %s\n", "Backup:", o.BackupPath)
	}
	fmt.Fprintf(out, "  %-12s %d\n", "Warnings:", len(o.Result.Warnings))
	for _, w := range o.Result.Warnings {
		fmt.Fprintf(out, "    - %s\n", w.String())
	}
	fmt.Fprintf(out, "  %-12s %s\n", "Run:", shortID(o.RunID))
}
