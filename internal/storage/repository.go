// Package storage owns the durable ledger: a SQLite repository behind the
// Ledger interface, plus the backup queue consumed by the sheets worker.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"grana/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps compare lexicographically.
// All timestamps are stored in UTC.
const timeLayout = "2006-01-02 15:04:05.000"

type SQLiteRepository struct {
	db *sql.DB
}

var _ Ledger = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const entryColumns = "id, created_at, user_id, chat_id, raw_text, amount_cents, currency, category, description, confidence, kind"

func scanEntry(row interface{ Scan(...any) error }) (core.Entry, error) {
	var e core.Entry
	var createdAt string
	err := row.Scan(&e.ID, &createdAt, &e.UserID, &e.ChatID, &e.RawText,
		&e.Amount.Cents, &e.Currency, &e.Category, &e.Description, &e.Confidence, &e.Kind)
	if err != nil {
		return core.Entry{}, err
	}
	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return core.Entry{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	e.CreatedAt = ts.UTC()
	return e, nil
}

// Insert appends a confirmed entry. The write is a single statement, so it
// either lands whole or not at all.
func (r *SQLiteRepository) Insert(ctx context.Context, e core.Entry) (int64, error) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (created_at, user_id, chat_id, raw_text, amount_cents, currency, category, description, confidence, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		createdAt.UTC().Format(timeLayout), e.UserID, e.ChatID, e.RawText,
		e.Amount.Cents, e.Currency, e.Category, e.Description, e.Confidence, string(e.Kind))
	if err != nil {
		return 0, fmt.Errorf("%w: insert entry: %v", ErrWriteFailed, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %v", ErrWriteFailed, err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"entry_id", id,
		"user_id", e.UserID,
		"kind", e.Kind,
		"category", e.Category,
		"amount_cents", e.Amount.Cents)

	return id, nil
}

// GetEntry retrieves a single entry by id, regardless of owner. Used by the
// backup worker.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (*core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &e, nil
}

func (r *SQLiteRepository) LastEntry(ctx context.Context, userID int64) (*core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1", userID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("last entry: %w", err)
	}
	return &e, nil
}

// DeleteEntry removes an entry only when it belongs to userID.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM entries WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Entry deleted", "entry_id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) ListRecent(ctx context.Context, userID int64, kind core.Kind, limit int) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE user_id = ? AND kind = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		userID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumRange totals one kind over [start, end). The sum happens in SQL over
// integer cents, so it stays exact.
func (r *SQLiteRepository) SumRange(ctx context.Context, userID int64, kind core.Kind, start, end time.Time) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM entries
		WHERE user_id = ? AND kind = ? AND created_at >= ? AND created_at < ?`,
		userID, string(kind),
		start.UTC().Format(timeLayout), end.UTC().Format(timeLayout)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum range: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// CategoryTotals groups one kind by category over [start, end).
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64, kind core.Kind, start, end time.Time) ([]CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents), COUNT(*)
		FROM entries
		WHERE user_id = ? AND kind = ? AND created_at >= ? AND created_at < ?
		GROUP BY category
		ORDER BY SUM(amount_cents) DESC, category`,
		userID, string(kind),
		start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Category, &t.Total.Cents, &t.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// DailyTotals buckets by calendar day in start's location. Bucketing happens
// here rather than in SQL because the stored timestamps are UTC and day
// boundaries are local.
func (r *SQLiteRepository) DailyTotals(ctx context.Context, userID int64, kind core.Kind, start, end time.Time) ([]DayTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT created_at, amount_cents
		FROM entries
		WHERE user_id = ? AND kind = ? AND created_at >= ? AND created_at < ?`,
		userID, string(kind),
		start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	loc := start.Location()
	byDay := make(map[time.Time]int64)
	for rows.Next() {
		var createdAt string
		var cents int64
		if err := rows.Scan(&createdAt, &cents); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		ts, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		day := core.DateOnly(ts.UTC().In(loc))
		byDay[day] += cents
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totals := make([]DayTotal, 0, len(byDay))
	for day, cents := range byDay {
		totals = append(totals, DayTotal{Date: day, Total: core.Money{Cents: cents}})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Date.Before(totals[j].Date) })
	return totals, nil
}

// WeeklyTotals buckets both kinds by Monday-start week in start's location.
func (r *SQLiteRepository) WeeklyTotals(ctx context.Context, userID int64, start, end time.Time) ([]WeekTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT created_at, amount_cents, kind
		FROM entries
		WHERE user_id = ? AND created_at >= ? AND created_at < ?`,
		userID, start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("weekly totals: %w", err)
	}
	defer rows.Close()

	loc := start.Location()
	type pair struct{ expense, income int64 }
	byWeek := make(map[time.Time]*pair)
	for rows.Next() {
		var createdAt, kind string
		var cents int64
		if err := rows.Scan(&createdAt, &cents, &kind); err != nil {
			return nil, fmt.Errorf("scan weekly total: %w", err)
		}
		ts, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		weekStart, _ := core.WeekRange(ts.UTC().In(loc))
		p := byWeek[weekStart]
		if p == nil {
			p = &pair{}
			byWeek[weekStart] = p
		}
		if core.Kind(kind) == core.KindIncome {
			p.income += cents
		} else {
			p.expense += cents
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totals := make([]WeekTotal, 0, len(byWeek))
	for weekStart, p := range byWeek {
		totals = append(totals, WeekTotal{
			WeekStart: weekStart,
			Expense:   core.Money{Cents: p.expense},
			Income:    core.Money{Cents: p.income},
		})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].WeekStart.Before(totals[j].WeekStart) })
	return totals, nil
}

// ActiveUsers enumerates distinct users; the chat id is the one from the
// user's most recent entry that carried one, zero when none ever did.
func (r *SQLiteRepository) ActiveUsers(ctx context.Context) ([]core.ActiveUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.user_id,
		       COALESCE((
		           SELECT e2.chat_id FROM entries e2
		           WHERE e2.user_id = e.user_id AND e2.chat_id <> 0
		           ORDER BY e2.created_at DESC, e2.id DESC
		           LIMIT 1
		       ), 0)
		FROM entries e
		GROUP BY e.user_id
		ORDER BY e.user_id`)
	if err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	defer rows.Close()

	var users []core.ActiveUser
	for rows.Next() {
		var u core.ActiveUser
		if err := rows.Scan(&u.UserID, &u.ChatID); err != nil {
			return nil, fmt.Errorf("scan active user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// PendingBackup returns entries not yet mirrored to the backup sheet,
// oldest first.
func (r *SQLiteRepository) PendingBackup(ctx context.Context, limit int) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE backup_status = ? ORDER BY id LIMIT ?",
		BackupPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pending backup: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkBackedUp marks an entry as successfully mirrored.
func (r *SQLiteRepository) MarkBackedUp(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE entries SET backup_status = ? WHERE id = ?", BackupDone, id); err != nil {
		return fmt.Errorf("mark backed up: %w", err)
	}
	return nil
}

// MarkBackupError marks an entry as having failed to mirror.
func (r *SQLiteRepository) MarkBackupError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE entries SET backup_status = ? WHERE id = ?", BackupError, id); err != nil {
		return fmt.Errorf("mark backup error: %w", err)
	}
	return nil
}
