package history

import (
	"context"
	"database/sql"
	"fmt"

	"chatalign/internal/timeline"
)

// RecordDiagnostics stores the warnings of a run in order.
func (s *Store) RecordDiagnostics(ctx context.Context, runID string, warnings []timeline.OverlapWarning) error {
	if len(warnings) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin diagnostics tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO diagnostics (run_id, kind, pass, record_index, start_seconds, end_seconds,
			 speaker, text, candidates_json, texts_json, chosen)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare diagnostic insert: %w", err)
		}
		defer stmt.Close()

		for _, w := range warnings {
			if _, err := stmt.ExecContext(ctx,
				runID,
				string(w.Kind),
				int(w.Pass),
				w.Index,
				w.Start,
				w.End,
				nullableString(w.Speaker),
				nullableString(w.Text),
				encodeList(w.Candidates),
				encodeList(w.Texts),
				nullableString(w.Chosen),
			); err != nil {
				return fmt.Errorf("insert diagnostic: %w", err)
			}
		}
		return tx.Commit()
	})
}

// Diagnostics returns the stored warnings of a run in insertion order.
func (s *Store) Diagnostics(ctx context.Context, runID string) ([]Diagnostic, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, pass, record_index, start_seconds, end_seconds, speaker, text,
		 candidates_json, texts_json, chosen
		 FROM diagnostics WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var (
			d          Diagnostic
			kind       string
			pass       int
			speaker    sql.NullString
			text       sql.NullString
			candidates sql.NullString
			texts      sql.NullString
			chosen     sql.NullString
		)
		if err := rows.Scan(&kind, &pass, &d.Index, &d.Start, &d.End, &speaker, &text, &candidates, &texts, &chosen); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Kind = timeline.WarningKind(kind)
		d.Pass = timeline.Pass(pass)
		d.Speaker = speaker.String
		d.Text = text.String
		d.Candidates = decodeList(candidates)
		d.Texts = decodeList(texts)
		d.Chosen = chosen.String
		out = append(out, d)
	}
	return out, rows.Err()
}
