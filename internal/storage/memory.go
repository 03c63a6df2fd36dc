package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"grana/internal/core"
)

// MemoryLedger is an in-memory Ledger used by tests and local runs without a
// database file. Semantics mirror the SQLite repository.
type MemoryLedger struct {
	mu      sync.Mutex
	nextID  int64
	entries []memoryEntry
}

type memoryEntry struct {
	core.Entry
	backupStatus string
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{nextID: 1}
}

func (m *MemoryLedger) Insert(_ context.Context, e core.Entry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.nextID
	m.nextID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, memoryEntry{Entry: e, backupStatus: BackupPending})
	return e.ID, nil
}

func (m *MemoryLedger) GetEntry(_ context.Context, id int64) (*core.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].ID == id {
			e := m.entries[i].Entry
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryLedger) LastEntry(_ context.Context, userID int64) (*core.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var last *core.Entry
	for i := range m.entries {
		e := m.entries[i].Entry
		if e.UserID != userID {
			continue
		}
		if last == nil || e.CreatedAt.After(last.CreatedAt) ||
			(e.CreatedAt.Equal(last.CreatedAt) && e.ID > last.ID) {
			cp := e
			last = &cp
		}
	}
	if last == nil {
		return nil, ErrNotFound
	}
	return last, nil
}

func (m *MemoryLedger) DeleteEntry(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].ID == id && m.entries[i].UserID == userID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryLedger) ListRecent(_ context.Context, userID int64, kind core.Kind, limit int) ([]core.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.Entry
	for i := range m.entries {
		e := m.entries[i].Entry
		if e.UserID == userID && e.Kind == kind {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryLedger) SumRange(_ context.Context, userID int64, kind core.Kind, start, end time.Time) (core.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cents int64
	for i := range m.entries {
		e := m.entries[i].Entry
		if e.UserID == userID && e.Kind == kind && inRange(e.CreatedAt, start, end) {
			cents += e.Amount.Cents
		}
	}
	return core.Money{Cents: cents}, nil
}

func (m *MemoryLedger) CategoryTotals(_ context.Context, userID int64, kind core.Kind, start, end time.Time) ([]CategoryTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byCat := make(map[string]*CategoryTotal)
	for i := range m.entries {
		e := m.entries[i].Entry
		if e.UserID != userID || e.Kind != kind || !inRange(e.CreatedAt, start, end) {
			continue
		}
		t := byCat[e.Category]
		if t == nil {
			t = &CategoryTotal{Category: e.Category}
			byCat[e.Category] = t
		}
		t.Total = t.Total.Add(e.Amount)
		t.Count++
	}

	totals := make([]CategoryTotal, 0, len(byCat))
	for _, t := range byCat {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total.Cents != totals[j].Total.Cents {
			return totals[i].Total.Cents > totals[j].Total.Cents
		}
		return totals[i].Category < totals[j].Category
	})
	return totals, nil
}

func (m *MemoryLedger) DailyTotals(_ context.Context, userID int64, kind core.Kind, start, end time.Time) ([]DayTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loc := start.Location()
	byDay := make(map[time.Time]int64)
	for i := range m.entries {
		e := m.entries[i].Entry
		if e.UserID == userID && e.Kind == kind && inRange(e.CreatedAt, start, end) {
			byDay[core.DateOnly(e.CreatedAt.In(loc))] += e.Amount.Cents
		}
	}

	totals := make([]DayTotal, 0, len(byDay))
	for day, cents := range byDay {
		totals = append(totals, DayTotal{Date: day, Total: core.Money{Cents: cents}})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Date.Before(totals[j].Date) })
	return totals, nil
}

func (m *MemoryLedger) WeeklyTotals(_ context.Context, userID int64, start, end time.Time) ([]WeekTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loc := start.Location()
	type pair struct{ expense, income int64 }
	byWeek := make(map[time.Time]*pair)
	for i := range m.entries {
		e := m.entries[i].Entry
		if e.UserID != userID || !inRange(e.CreatedAt, start, end) {
			continue
		}
		weekStart, _ := core.WeekRange(e.CreatedAt.In(loc))
		p := byWeek[weekStart]
		if p == nil {
			p = &pair{}
			byWeek[weekStart] = p
		}
		if e.Kind == core.KindIncome {
			p.income += e.Amount.Cents
		} else {
			p.expense += e.Amount.Cents
		}
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

func (m *MemoryLedger) ActiveUsers(_ context.Context) ([]core.ActiveUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chatByUser := make(map[int64]int64)
	lastSeen := make(map[int64]time.Time)
	for i := range m.entries {
		e := m.entries[i].Entry
		if _, ok := chatByUser[e.UserID]; !ok {
			chatByUser[e.UserID] = 0
		}
		if e.ChatID != 0 && !e.CreatedAt.Before(lastSeen[e.UserID]) {
			chatByUser[e.UserID] = e.ChatID
			lastSeen[e.UserID] = e.CreatedAt
		}
	}

	users := make([]core.ActiveUser, 0, len(chatByUser))
	for userID, chatID := range chatByUser {
		users = append(users, core.ActiveUser{UserID: userID, ChatID: chatID})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users, nil
}

func (m *MemoryLedger) PendingBackup(_ context.Context, limit int) ([]core.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.Entry
	for i := range m.entries {
		if m.entries[i].backupStatus == BackupPending {
			out = append(out, m.entries[i].Entry)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryLedger) MarkBackedUp(_ context.Context, id int64) error {
	return m.setBackupStatus(id, BackupDone)
}

func (m *MemoryLedger) MarkBackupError(_ context.Context, id int64) error {
	return m.setBackupStatus(id, BackupError)
}

func (m *MemoryLedger) setBackupStatus(id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].backupStatus = status
			return nil
		}
	}
	return ErrNotFound
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
