package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const runColumns = "id, transcript_path, audio_path, turns_path, output_path, source, status, utterances, turns, relabeled, warnings, added_json, error_message, started_at, finished_at"

// ErrAmbiguousID is returned when a run ID prefix matches more than one run.
var ErrAmbiguousID = errors.New("ambiguous run id")

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		audio       sql.NullString
		turnsPath   sql.NullString
		output      sql.NullString
		source      sql.NullString
		status      string
		added       sql.NullString
		errMsg      sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.TranscriptPath,
		&audio,
		&turnsPath,
		&output,
		&source,
		&status,
		&run.Utterances,
		&run.Turns,
		&run.Relabeled,
		&run.Warnings,
		&added,
		&errMsg,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.AudioPath = audio.String
	run.TurnsPath = turnsPath.String
	run.OutputPath = output.String
	run.Source = source.String
	run.Status = Status(status)
	run.Added = decodeList(added)
	run.ErrorMessage = errMsg.String
	run.StartedAt = parseTimeString(startedRaw)
	if finishedRaw.Valid {
		finished := parseTimeString(finishedRaw.String)
		if !finished.IsZero() {
			run.FinishedAt = &finished
		}
	}
	return &run, nil
}

// BeginRun inserts run in the running state. An empty ID is replaced with a
// fresh UUID and a zero StartedAt with the current time.
func (s *Store) BeginRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("begin run: nil run")
	}
	if strings.TrimSpace(run.TranscriptPath) == "" {
		return errors.New("begin run: transcript path required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = StatusRunning
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, transcript_path, audio_path, turns_path, source, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.TranscriptPath,
		nullableString(run.AudioPath),
		nullableString(run.TurnsPath),
		nullableString(run.Source),
		string(run.Status),
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun marks a run succeeded and records its counters.
func (s *Store) FinishRun(ctx context.Context, id string, summary Summary) error {
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, output_path = ?, utterances = ?, turns = ?, relabeled = ?,
		 warnings = ?, added_json = ?, error_message = NULL, finished_at = ? WHERE id = ?`,
		string(StatusSucceeded),
		nullableString(summary.OutputPath),
		summary.Utterances,
		summary.Turns,
		summary.Relabeled,
		summary.Warnings,
		encodeList(summary.Added),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, id)
}

// FailRun marks a run with a terminal non-success status.
func (s *Store) FailRun(ctx context.Context, id string, status Status, cause error) error {
	if status == StatusRunning || status == StatusSucceeded || status == "" {
		status = StatusFailed
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(status),
		nullableString(message),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// GetRun returns the run with the given ID or unique ID prefix. A missing
// run yields nil with no error.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(id), id)
	if err != nil {
		return nil, fmt.Errorf("get run by prefix: %w", err)
	}
	defer rows.Close()
	var matches []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousID, id)
	}
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run. Status filters are optional.
func (s *Store) ListRuns(ctx context.Context, limit int, statuses ...Status) ([]*Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// StatusCounts returns the number of runs per status.
func (s *Store) StatusCounts(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// Prune deletes finished runs that started before cutoff together with
// their diagnostics. Running entries are kept.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	// foreign_keys is a per-connection pragma, so diagnostics are removed explicitly.
	if _, err := s.exec(ctx,
		`DELETE FROM diagnostics WHERE run_id IN (SELECT id FROM runs WHERE status != ? AND started_at < ?)`,
		string(StatusRunning),
		formatTime(cutoff),
	); err != nil {
		return 0, fmt.Errorf("prune diagnostics: %w", err)
	}
	res, err := s.exec(ctx,
		`DELETE FROM runs WHERE status != ? AND started_at < ?`,
		string(StatusRunning),
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
