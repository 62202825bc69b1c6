package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/mntn/internal/log"
)

const runColumns = `id, kind, profile, layer, dry_run, done, skipped, failed, warnings, started_at, finished_at`

// RunRepository reads and writes runs.
type RunRepository struct {
	db *sql.DB
}

// Record inserts run and its items in one transaction. An empty ID is
// filled with a new UUID.
func (r *RunRepository) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Profile, nullable(run.Layer), run.DryRun,
		run.Done, run.Skipped, run.Failed, run.Warnings,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, it := range run.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_items (run_id, item_id, status, layer, source, target, note, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, it.ItemID, it.Status, nullable(it.Layer), nullable(it.Source),
			nullable(it.Target), nullable(it.Note), nullable(it.Error),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run item %s: %w", it.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	log.Debug(log.CatHistory, "recorded run", "id", run.ID, "kind", run.Kind, "items", len(run.Items))
	return nil
}

// List returns the most recent runs, newest first, without items. kind
// filters when non-empty; limit <= 0 means no limit.
func (r *RunRepository) List(ctx context.Context, kind Kind, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one run with its items. id may be a unique prefix.
func (r *RunRepository) Get(ctx context.Context, id string) (Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return Run{}, fmt.Errorf("failed to find run: %w", err)
	}
	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return Run{}, fmt.Errorf("failed to scan run: %w", err)
		}
		matches = append(matches, run)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 2:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", id)
	}

	run := matches[0]
	items, err := r.items(ctx, run.ID)
	if err != nil {
		return Run{}, err
	}
	run.Items = items
	return run, nil
}

func (r *RunRepository) items(ctx context.Context, runID string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, status, layer, source, target, note, error FROM run_items WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []Item
	for rows.Next() {
		var it Item
		var layer, source, target, note, errText sql.NullString
		if err := rows.Scan(&it.ItemID, &it.Status, &layer, &source, &target, &note, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run item: %w", err)
		}
		it.Layer, it.Source, it.Target, it.Note, it.Error = layer.String, source.String, target.String, note.String, errText.String
		items = append(items, it)
	}
	return items, rows.Err()
}

// Prune deletes runs that started before cutoff and returns how many were
// removed. Items go with them through the foreign key cascade.
func (r *RunRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	return n, nil
}

func scanRun(scanner interface{ Scan(...any) error }) (Run, error) {
	var (
		run      Run
		kind     string
		layer    sql.NullString
		started  int64
		finished int64
	)
	err := scanner.Scan(&run.ID, &kind, &run.Profile, &layer, &run.DryRun,
		&run.Done, &run.Skipped, &run.Failed, &run.Warnings, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	run.Kind = Kind(kind)
	run.Layer = layer.String
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)
	return run, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
