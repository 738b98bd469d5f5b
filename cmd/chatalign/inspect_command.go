package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chatalign/internal/chat"
	"chatalign/internal/diarization"
	"chatalign/internal/language"
	"chatalign/internal/services"
	"chatalign/internal/timeline"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var turnsPath string

	cmd := &cobra.Command{
		Use:   "inspect <transcript.cha>",
		Short: "Show a transcript's participants and preview alignment against its turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			transcript, err := chat.ParseFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printTranscript(out, args[0], transcript, cfg.Align.DefaultLanguage)

			if turnsPath == "" {
				found, err := diarization.FindSidecar(args[0])
				if errors.Is(err, services.ErrNotFound) {
					fmt.Fprintln(out, "\nNo turns file found next to the transcript (use --turns)")
					return nil
				}
				if err != nil {
					return err
				}
				turnsPath = found
			}
			turns, err := diarization.LoadFile(turnsPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			printTurns(out, turnsPath, turns)

			tieBreak, err := timeline.ParseTieBreak(cfg.Align.TieBreak)
			if err != nil {
				return err
			}
			utterances, _ := transcript.Timed()
			preview := make([]*timeline.Utterance, len(utterances))
			for i, u := range utterances {
				preview[i] = u.Clone()
			}
			registry := timeline.NewRegistry()
			for _, p := range transcript.Registry.Participants() {
				registry.Put(p)
			}
			result, err := timeline.Align(turns, preview, registry, timeline.Options{
				TurnPass:       cfg.Align.TurnPass,
				TurnPassWrites: cfg.Align.TurnPassWrites,
				TieBreak:       tieBreak,
				Language:       language.Primary(transcript.Languages, cfg.Align.DefaultLanguage),
				Corpus:         cfg.Align.Corpus,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			printPreview(out, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&turnsPath, "turns", "", "Diarization turns file (default: sidecar next to the transcript)")
	return cmd
}

func printTranscript(out io.Writer, path string, t *chat.Transcript, fallback string) {
	timed, untimed := t.Timed()
	fmt.Fprintf(out, "Transcript: %s\n", path)
	langs := make([]string, 0, len(t.Languages))
	for _, code := range language.NormalizeList(t.Languages) {
		langs = append(langs, fmt.Sprintf("%s (%s)", code, language.DisplayName(code)))
	}
	if len(langs) == 0 {
		langs = append(langs, fmt.Sprintf("%s (default)", fallback))
	}
	fmt.Fprintf(out, "  %-12s %s\n", "Languages:", strings.Join(langs, ", "))
	fmt.Fprintf(out, "  %-12s %d (%d untimed)\n", "Utterances:", len(t.Utterances), len(untimed))
	if len(timed) > 0 {
		start, end := math.Inf(1), math.Inf(-1)
		for _, u := range timed {
			start = math.Min(start, u.Start)
			end = math.Max(end, u.End)
		}
		fmt.Fprintf(out, "  %-12s %s - %s\n", "Span:", formatSeconds(start), formatSeconds(end))
	}

	counts := t.UtteranceCounts()
	rows := make([][]string, 0, t.Registry.Len())
	for _, p := range t.Registry.Participants() {
		rows = append(rows, []string{p.Code, p.Name, p.Role, p.Language, strconv.Itoa(counts[timeline.NormalizeCode(p.Code)])})
	}
	var undeclared []string
	for code := range counts {
		if !t.Registry.Has(code) {
			undeclared = append(undeclared, code)
		}
	}
	sort.Strings(undeclared)
	for _, code := range undeclared {
		rows = append(rows, []string{code, "", "(undeclared)", "", strconv.Itoa(counts[code])})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Code", "Name", "Role", "Language", "Utterances"},
		rows,
		4,
	))
}

func printTurns(out io.Writer, path string, turns []timeline.Turn) {
	fmt.Fprintf(out, "Turns: %d from %s\n", len(turns), path)
	type speakerStats struct {
		turns   int
		seconds float64
	}
	stats := make(map[string]*speakerStats)
	for _, t := range turns {
		s := stats[t.Speaker]
		if s == nil {
			s = &speakerStats{}
			stats[t.Speaker] = s
		}
		s.turns++
		s.seconds += t.End - t.Start
	}
	speakers := make([]string, 0, len(stats))
	for speaker := range stats {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)
	rows := make([][]string, 0, len(speakers))
	for _, speaker := range speakers {
		rows = append(rows, []string{speaker, strconv.Itoa(stats[speaker].turns), formatSeconds(stats[speaker].seconds)})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Speaker", "Turns", "Seconds"},
		rows,
		1, 2,
	))
}

func printPreview(out io.Writer, result timeline.Result) {
	fmt.Fprintln(out, "Preview (nothing written):")
	fmt.Fprintf(out, "  %-12s %d\n", "Relabeled:", result.Relabeled)
	if len(result.Added) > 0 {
		fmt.Fprintf(out, "  %-12s %s\n", "Added:", strings.Join(result.Added, ", "))
	}
	summary := result.Summary()
	kinds := make([]string, 0, len(summary))
	for kind := range summary {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(out, "  %-24s %d\n", kind+":", summary[timeline.WarningKind(kind)])
	}
}
