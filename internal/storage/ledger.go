package storage

import (
	"context"
	"errors"
	"time"

	"grana/internal/core"
)

var (
	// ErrNotFound means no entry matched (wrong id, wrong owner, or empty
	// ledger).
	ErrNotFound = errors.New("entry not found")

	// ErrWriteFailed wraps insert failures so callers can surface "the save
	// did not happen" without caring about driver details.
	ErrWriteFailed = errors.New("write failed")
)

// Backup states for the sheets mirror queue.
const (
	BackupPending = "pending"
	BackupDone    = "done"
	BackupError   = "error"
)

type (
	// DayTotal is one day's total for one kind, bucketed by local calendar
	// day.
	DayTotal struct {
		Date  time.Time
		Total core.Money
	}

	// WeekTotal pairs expense and income totals for one Monday-start week.
	WeekTotal struct {
		WeekStart time.Time
		Expense   core.Money
		Income    core.Money
	}

	// CategoryTotal is one category's total and record count within a
	// period, for report breakdowns.
	CategoryTotal struct {
		Category string
		Total    core.Money
		Count    int
	}
)

// Ledger is the durable append-only store of confirmed entries. Reads are
// point-in-time and may run concurrently with inserts.
type Ledger interface {
	// Insert appends a confirmed entry and returns its id. Never partially
	// writes.
	Insert(ctx context.Context, e core.Entry) (int64, error)

	// LastEntry returns the caller's most recent entry.
	LastEntry(ctx context.Context, userID int64) (*core.Entry, error)

	// DeleteEntry removes an entry, scoped to its owner: deleting someone
	// else's record is ErrNotFound, not an error class of its own.
	DeleteEntry(ctx context.Context, userID, id int64) error

	// ListRecent returns the user's entries of one kind, most recent first.
	ListRecent(ctx context.Context, userID int64, kind core.Kind, limit int) ([]core.Entry, error)

	// SumRange totals one kind over [start, end).
	SumRange(ctx context.Context, userID int64, kind core.Kind, start, end time.Time) (core.Money, error)

	// CategoryTotals breaks one kind down by category over [start, end),
	// largest total first.
	CategoryTotals(ctx context.Context, userID int64, kind core.Kind, start, end time.Time) ([]CategoryTotal, error)

	// DailyTotals buckets one kind by calendar day over [start, end), in
	// start's location. Days with no records are absent; zero-filling is
	// the report engine's job.
	DailyTotals(ctx context.Context, userID int64, kind core.Kind, start, end time.Time) ([]DayTotal, error)

	// WeeklyTotals buckets both kinds by Monday-start week over [start,
	// end), in start's location.
	WeeklyTotals(ctx context.Context, userID int64, start, end time.Time) ([]WeekTotal, error)

	// ActiveUsers enumerates distinct users with their last known chat id.
	// Users who never wrote from a deliverable chat come back with ChatID
	// zero and are skipped by the scheduled fan-out.
	ActiveUsers(ctx context.Context) ([]core.ActiveUser, error)
}
