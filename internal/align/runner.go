package align

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatalign/internal/chat"
	"chatalign/internal/config"
	"chatalign/internal/diarization"
	"chatalign/internal/fileutil"
	"chatalign/internal/history"
	"chatalign/internal/language"
	"chatalign/internal/logging"
	"chatalign/internal/media"
	"chatalign/internal/services"
	"chatalign/internal/timeline"
)

// Request names the inputs of one alignment. AudioPath may be empty when
// turns come from a file; OutputPath defaults to the _fixed.cha sibling.
type Request struct {
	TranscriptPath string `json:"transcript"`
	AudioPath      string `json:"audio,omitempty"`
	TurnsPath      string `json:"turns,omitempty"`
	OutputPath     string `json:"output,omitempty"`
}

// Outcome reports what AlignFile did.
type Outcome struct {
	RunID      string          `json:"run_id"`
	Request    Request         `json:"request"`
	OutputPath string          `json:"output_path,omitempty"`
	BackupPath string          `json:"backup_path,omitempty"`
	Source     string          `json:"source,omitempty"`
	Status     history.Status  `json:"status"`
	Utterances int             `json:"utterances"`
	Untimed    int             `json:"untimed"`
	Turns      int             `json:"turns"`
	Result     timeline.Result `json:"result"`
	Duration   time.Duration   `json:"duration"`
	Error      string          `json:"error,omitempty"`
	Err        error           `json:"-"`
}

// SourceFactory builds the turn source for a request's explicit turns path.
type SourceFactory func(turnsPath string) (diarization.Source, error)

// Runner aligns transcripts against diarization turns and records each run.
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *history.Store
	sources   SourceFactory
	converter *media.Converter
}

// Option configures optional Runner behavior.
type Option func(*Runner)

// WithSourceFactory replaces the config-driven turn source selection.
func WithSourceFactory(factory SourceFactory) Option {
	return func(r *Runner) {
		r.sources = factory
	}
}

// WithConverter replaces the ffmpeg converter used for non-WAV audio.
func WithConverter(conv *media.Converter) Option {
	return func(r *Runner) {
		r.converter = conv
	}
}

// NewRunner creates a runner. store may be nil to skip run history.
func NewRunner(cfg *config.Config, logger *slog.Logger, store *history.Store, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{cfg: cfg, logger: logger, store: store}
	r.sources = func(turnsPath string) (diarization.Source, error) {
		return diarization.NewSource(cfg, turnsPath, r.logger)
	}
	r.converter = media.NewConverter(cfg.FFmpegBinary(), cfg.Paths.WorkDir)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AlignFile relabels one transcript and writes the result. Input problems
// are returned as errors and recorded with status invalid; overlap
// ambiguities are only reported in the outcome.
func (r *Runner) AlignFile(ctx context.Context, req Request) (Outcome, error) {
	started := time.Now()
	out := Outcome{RunID: uuid.NewString(), Request: req}
	if strings.TrimSpace(req.TranscriptPath) == "" {
		err := services.Wrap(services.ErrValidation, "align", "request", "transcript path required", nil)
		out.finish(err, started)
		return out, err
	}
	out.OutputPath = req.OutputPath
	if out.OutputPath == "" {
		out.OutputPath = chat.FixedPath(req.TranscriptPath)
	}

	ctx = services.WithRunID(ctx, out.RunID)
	ctx = services.WithTranscript(ctx, req.TranscriptPath)
	base, closeRunLog := r.runLogger(out.RunID)
	defer closeRunLog()
	logger := logging.WithContext(ctx, logging.NewComponentLogger(base, "align"))

	if r.store != nil {
		run := &history.Run{
			ID:             out.RunID,
			TranscriptPath: req.TranscriptPath,
			AudioPath:      req.AudioPath,
			TurnsPath:      req.TurnsPath,
			Source:         r.cfg.Diarization.Source,
			StartedAt:      started,
		}
		if err := r.store.BeginRun(ctx, run); err != nil {
			logging.WarnWithContext(logger, "run history unavailable", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions or delete history.db"),
				logging.String(logging.FieldImpact, "run is not recorded in history"),
			)
		}
	}

	logger.Info("alignment started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("audio", req.AudioPath),
		logging.String("turns", req.TurnsPath),
		logging.String("output", out.OutputPath),
	)

	err := r.align(ctx, logger, req, &out)
	out.finish(err, started)
	r.record(ctx, logger, &out)

	if err != nil {
		attrs := []logging.Attr{
			logging.String("status", string(out.Status)),
			logging.Error(err),
		}
		if out.Status == history.StatusInvalid {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "fix the transcript or turns file and rerun"))
		}
		logging.ErrorWithContext(logger, "alignment failed", "run_failed", attrs...)
		return out, err
	}
	logger.Info("alignment complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("utterances", out.Utterances),
		logging.Int("turns", out.Turns),
		logging.Int("relabeled", out.Result.Relabeled),
		logging.Int("warnings", len(out.Result.Warnings)),
		logging.Strings("added", out.Result.Added),
		logging.Duration("elapsed", out.Duration),
	)
	return out, nil
}

func (o *Outcome) finish(err error, started time.Time) {
	o.Duration = time.Since(started)
	o.Err = err
	o.Status = services.RunStatus(err)
	if err != nil {
		o.Error = err.Error()
	}
}

func (r *Runner) align(ctx context.Context, logger *slog.Logger, req Request, out *Outcome) error {
	if !r.cfg.Align.Overwrite {
		if _, err := os.Stat(out.OutputPath); err == nil {
			return services.Wrap(services.ErrValidation, "align", "output",
				fmt.Sprintf("%s already exists (set align.overwrite or pass --overwrite)", out.OutputPath), nil)
		}
	}

	transcript, err := chat.ParseFile(req.TranscriptPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "align", "transcript", req.TranscriptPath, err)
		}
		return fmt.Errorf("parse transcript: %w", err)
	}
	lang := language.Primary(transcript.Languages, r.cfg.Align.DefaultLanguage)
	ctx = diarization.WithLanguage(ctx, language.ToISO2(lang))

	turns, err := r.loadTurns(ctx, logger, req, out)
	if err != nil {
		return err
	}
	out.Turns = len(turns)

	utterances := transcript.Utterances
	positions := identity(len(utterances))
	if r.cfg.Align.SkipUntimed {
		var untimed []int
		utterances, untimed = transcript.Timed()
		out.Untimed = len(untimed)
		if len(untimed) > 0 {
			positions = timedPositions(len(transcript.Utterances), untimed)
			logging.WarnWithContext(logger, "untimed utterances skipped", "untimed_skipped",
				logging.Int("count", len(untimed)),
				logging.Any("indexes", untimed),
				logging.String(logging.FieldErrorHint, "add time marks to align these lines"),
				logging.String(logging.FieldImpact, "skipped utterances keep their speaker"),
			)
		}
	}
	out.Utterances = len(utterances)

	tieBreak, err := timeline.ParseTieBreak(r.cfg.Align.TieBreak)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "align", "tie_break", "", err)
	}
	opts := timeline.Options{
		TurnPass:       r.cfg.Align.TurnPass,
		TurnPassWrites: r.cfg.Align.TurnPassWrites,
		TieBreak:       tieBreak,
		Language:       lang,
		Corpus:         r.cfg.Align.Corpus,
	}
	result, err := timeline.Align(turns, utterances, transcript.Registry, opts)
	if err != nil {
		return fmt.Errorf("align %s: %w", req.TranscriptPath, err)
	}
	if len(utterances) < len(transcript.Utterances) {
		result.Added = append(result.Added,
			timeline.MergeParticipants(transcript.Utterances, transcript.Registry, lang, r.cfg.Align.Corpus)...)
	}
	remapUtteranceIndexes(result.Warnings, positions)
	out.Result = result
	logWarnings(logger, result.Warnings)

	return r.writeOutput(ctx, logger, transcript, out)
}

func (r *Runner) loadTurns(ctx context.Context, logger *slog.Logger, req Request, out *Outcome) ([]timeline.Turn, error) {
	src, err := r.sources(req.TurnsPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "align", "source", "", err)
	}
	out.Source = src.Name()

	audio := req.AudioPath
	if diarization.NeedsAudio(src) {
		if strings.TrimSpace(audio) == "" {
			return nil, services.Wrap(services.ErrValidation, "align", "audio",
				fmt.Sprintf("diarization source %s needs an audio file", src.Name()), nil)
		}
		prepared, converted, err := r.converter.Prepare(ctx, audio)
		if err != nil {
			return nil, err
		}
		if converted {
			logger.Debug("audio converted", logging.String("source", audio), logging.String("wav", prepared))
			defer os.Remove(prepared)
		}
		audio = prepared
	} else if audio == "" {
		// file sources look for a sidecar next to the transcript
		audio = req.TranscriptPath
	}

	turns, err := src.Turns(ctx, audio)
	if err != nil {
		return nil, err
	}
	logger.Debug("turns loaded",
		logging.String("source", src.Name()),
		logging.Int("turns", len(turns)),
	)
	return turns, nil
}

func (r *Runner) writeOutput(ctx context.Context, logger *slog.Logger, transcript *chat.Transcript, out *Outcome) error {
	lock, err := fileutil.AcquireLock(ctx, out.OutputPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "align", "lock", out.OutputPath, err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Debug("output lock release failed", logging.Error(err))
		}
	}()

	if r.cfg.Align.Backup {
		backup, err := fileutil.Backup(out.OutputPath)
		if err != nil {
			return services.Wrap(services.ErrTransient, "align", "backup", out.OutputPath, err)
		}
		out.BackupPath = backup
	}
	if err := fileutil.WriteFileAtomic(out.OutputPath, 0o644, func(w io.Writer) error {
		return chat.Write(w, transcript)
	}); err != nil {
		return services.Wrap(services.ErrTransient, "align", "write", out.OutputPath, err)
	}
	return nil
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, out *Outcome) {
	if r.store == nil {
		return
	}
	// history writes must land even when the run itself was cancelled
	ctx = context.WithoutCancel(ctx)
	var err error
	if out.Err == nil {
		if err = r.store.RecordDiagnostics(ctx, out.RunID, out.Result.Warnings); err == nil {
			err = r.store.FinishRun(ctx, out.RunID, history.Summary{
				OutputPath: out.OutputPath,
				Utterances: out.Utterances,
				Turns:      out.Turns,
				Relabeled:  out.Result.Relabeled,
				Warnings:   len(out.Result.Warnings),
				Added:      out.Result.Added,
			})
		}
	} else {
		err = r.store.FailRun(ctx, out.RunID, out.Status, out.Err)
	}
	if err != nil {
		logging.WarnWithContext(logger, "run history update failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "history shows a stale status for this run"),
		)
	}
}

// runLogger tees the base logger into a per-run JSON log when a log
// directory is configured.
func (r *Runner) runLogger(runID string) (*slog.Logger, func()) {
	if r.cfg.Paths.LogDir == "" {
		return r.logger, func() {}
	}
	handler, closer, err := logging.OpenRunLog(logging.RunLogPath(r.cfg.Paths.LogDir, runID), r.cfg.Logging.Level)
	if err != nil {
		r.logger.Warn("run log unavailable",
			logging.String(logging.FieldEventType, "run_log_failed"),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run details only appear in the main log"),
		)
		return r.logger, func() {}
	}
	return logging.TeeLogger(r.logger, handler), func() { _ = closer.Close() }
}

func logWarnings(logger *slog.Logger, warnings []timeline.OverlapWarning) {
	for _, w := range warnings {
		impact := "speaker left unchanged"
		if w.Kind == timeline.KindTieBroken {
			impact = "speaker chosen by tie-break"
		} else if w.Pass == timeline.PassTurn {
			impact = "diagnostic only"
		}
		logging.WarnWithContext(logger, w.String(), "overlap_"+string(w.Kind),
			logging.String("kind", string(w.Kind)),
			logging.Int("pass", int(w.Pass)),
			logging.Int("index", w.Index),
			logging.Float64("start", w.Start),
			logging.Float64("end", w.End),
			logging.Strings("candidates", w.Candidates),
			logging.String(logging.FieldErrorHint, "review this line by hand"),
			logging.String(logging.FieldImpact, impact),
		)
	}
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// timedPositions maps indexes into the timed subset back to transcript
// positions.
func timedPositions(total int, untimed []int) []int {
	skip := make(map[int]struct{}, len(untimed))
	for _, i := range untimed {
		skip[i] = struct{}{}
	}
	out := make([]int, 0, total-len(untimed))
	for i := 0; i < total; i++ {
		if _, ok := skip[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

func remapUtteranceIndexes(warnings []timeline.OverlapWarning, positions []int) {
	for i := range warnings {
		if warnings[i].Pass != timeline.PassUtterance {
			continue
		}
		if idx := warnings[i].Index; idx >= 0 && idx < len(positions) {
			warnings[i].Index = positions[idx]
		}
	}
}
