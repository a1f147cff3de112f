package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/ledger"
	"habibeat/backend/internal/reconcile"
)

var october = domain.Period{Year: 2026, Month: time.October}

type recordingPersister struct {
	mu      sync.Mutex
	entries []domain.StockEntry
	err     error
	delay   func(domain.StockEntry) time.Duration
}

func (p *recordingPersister) UpsertEntry(_ context.Context, entry domain.StockEntry) error {
	if p.delay != nil {
		time.Sleep(p.delay(entry))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
	return p.err
}

func (p *recordingPersister) saved() []domain.StockEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.StockEntry(nil), p.entries...)
}

type fixture struct {
	store     *ledger.Store
	marks     *reconcile.Watermarks
	persister *recordingPersister
	coord     *Coordinator
	now       time.Time
}

func newFixture(t *testing.T, persister *recordingPersister, clearAfter time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		store:     ledger.NewStore(october),
		marks:     reconcile.NewWatermarks(),
		persister: persister,
		now:       time.Date(2026, time.October, 14, 8, 30, 0, 123456789, time.UTC),
	}
	f.coord = New(f.store, f.marks, persister, Options{
		Clock:            func() time.Time { return f.now },
		StatusClearAfter: clearAfter,
	})
	return f
}

func edit(t *testing.T, field domain.Field, raw string) domain.Edit {
	t.Helper()
	e, err := domain.NewEdit(field, raw)
	require.NoError(t, err)
	return e
}

var staff = &domain.Actor{Username: "sari", Role: domain.RoleStaff}

func TestSubmitRequiresActor(t *testing.T) {
	f := newFixture(t, &recordingPersister{}, 0)

	_, err := f.coord.Submit(Request{
		Period: october,
		Slot:   domain.Slot{Section: domain.SectionGudang, Day: 3, ProductID: "p1"},
		Edit:   edit(t, domain.FieldStockIn, "4"),
	})

	assert.ErrorIs(t, err, ErrNoActor)
	_, entries, version := f.store.Snapshot()
	assert.Zero(t, entries.Len())
	assert.Zero(t, version)
	assert.Empty(t, f.persister.saved())
}

func TestSubmitRejectsArchivedMonth(t *testing.T) {
	f := newFixture(t, &recordingPersister{}, 0)
	september := october.Previous()
	f.store.ReplaceAll(september, nil)

	_, err := f.coord.Submit(Request{
		Period: september,
		Slot:   domain.Slot{Section: domain.SectionGudang, Day: 3, ProductID: "p1"},
		Actor:  staff,
		Edit:   edit(t, domain.FieldStockIn, "4"),
	})

	assert.ErrorIs(t, err, ErrArchived)
	f.coord.Wait()
	assert.Empty(t, f.persister.saved())
}

func TestSubmitPersistsMergedRow(t *testing.T) {
	f := newFixture(t, &recordingPersister{}, time.Hour)
	slot := domain.Slot{Section: domain.SectionBooth, Day: 5, ProductID: "p1"}

	_, err := f.coord.Submit(Request{Period: october, Slot: slot, Actor: staff, Edit: edit(t, domain.FieldStockIn, "10")})
	require.NoError(t, err)
	entry, err := f.coord.Submit(Request{Period: october, Slot: slot, Actor: staff, Edit: edit(t, domain.FieldDescription, "restock")})
	require.NoError(t, err)
	f.coord.Wait()

	assert.True(t, entry.StockIn.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "restock", entry.Description)
	assert.Equal(t, "sari", entry.LastModifiedBy)
	assert.Equal(t, f.now.Truncate(time.Microsecond), entry.LastModifiedAt)

	saved := f.persister.saved()
	require.Len(t, saved, 2)
	assert.Equal(t, entry, saved[1])
	assert.Equal(t, StatusSuccess, f.coord.Statuses().Get(StatusKey{Slot: slot, Field: domain.FieldDescription}))
}

func TestSubmitSeedsDayOneWithCarryOver(t *testing.T) {
	f := newFixture(t, &recordingPersister{}, 0)
	slot := domain.Slot{Section: domain.SectionGudang, Day: 1, ProductID: "p1"}

	entry, err := f.coord.Submit(Request{
		Period:    october,
		Slot:      slot,
		Actor:     staff,
		Edit:      edit(t, domain.FieldStockOut, "2"),
		CarryOver: decimal.NewFromInt(12),
	})
	require.NoError(t, err)
	assert.True(t, entry.OpeningStock.Equal(decimal.NewFromInt(12)))

	other := domain.Slot{Section: domain.SectionGudang, Day: 1, ProductID: "p2"}
	entry, err = f.coord.Submit(Request{
		Period:    october,
		Slot:      other,
		Actor:     staff,
		Edit:      edit(t, domain.FieldOpeningStock, "3"),
		CarryOver: decimal.NewFromInt(12),
	})
	require.NoError(t, err)
	assert.True(t, entry.OpeningStock.Equal(decimal.NewFromInt(3)))
	f.coord.Wait()
}

func TestFailedPersistKeepsLocalEditAndStaysInError(t *testing.T) {
	f := newFixture(t, &recordingPersister{err: errors.New("connection reset")}, 10*time.Millisecond)
	slot := domain.Slot{Section: domain.SectionGudang, Day: 2, ProductID: "p1"}

	_, err := f.coord.Submit(Request{Period: october, Slot: slot, Actor: staff, Edit: edit(t, domain.FieldStockIn, "7")})
	require.NoError(t, err)
	f.coord.Wait()

	key := StatusKey{Slot: slot, Field: domain.FieldStockIn}
	assert.Equal(t, StatusError, f.coord.Statuses().Get(key))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StatusError, f.coord.Statuses().Get(key))

	_, entries, _ := f.store.Snapshot()
	got, ok := entries.Lookup(slot)
	require.True(t, ok)
	assert.True(t, got.StockIn.Equal(decimal.NewFromInt(7)))
}

func TestSuccessStatusClearsToIdle(t *testing.T) {
	var mu sync.Mutex
	var seen []Status
	f := newFixture(t, &recordingPersister{}, 0)
	f.coord = New(f.store, f.marks, f.persister, Options{
		Clock:            func() time.Time { return f.now },
		StatusClearAfter: 20 * time.Millisecond,
		Observer: func(_ StatusKey, status Status) {
			mu.Lock()
			seen = append(seen, status)
			mu.Unlock()
		},
	})
	slot := domain.Slot{Section: domain.SectionGudang, Day: 2, ProductID: "p1"}
	key := StatusKey{Slot: slot, Field: domain.FieldStockOut}

	_, err := f.coord.Submit(Request{Period: october, Slot: slot, Actor: staff, Edit: edit(t, domain.FieldStockOut, "1")})
	require.NoError(t, err)
	f.coord.Wait()

	assert.Eventually(t, func() bool {
		return f.coord.Statuses().Get(key) == StatusIdle
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusSaving, StatusSuccess, StatusIdle}, seen)
	assert.Empty(t, f.coord.Statuses().Snapshot())
}

func TestOwnEchoIsDiscarded(t *testing.T) {
	f := newFixture(t, &recordingPersister{}, time.Hour)
	merger := reconcile.NewMerger(f.store, f.marks)
	slot := domain.Slot{Section: domain.SectionBooth, Day: 9, ProductID: "p1"}

	entry, err := f.coord.Submit(Request{Period: october, Slot: slot, Actor: staff, Edit: edit(t, domain.FieldStockIn, "5")})
	require.NoError(t, err)
	f.coord.Wait()
	_, _, before := f.store.Snapshot()

	assert.Equal(t, reconcile.Stale, merger.Merge(domain.EntryChange{Entry: entry}))
	_, _, after := f.store.Snapshot()
	assert.Equal(t, before, after)
}

func TestRapidEditsPersistInSubmissionOrder(t *testing.T) {
	persister := &recordingPersister{}
	// The first write is the slowest; chaining must still keep it first.
	persister.delay = func(entry domain.StockEntry) time.Duration {
		if entry.StockIn.Equal(decimal.NewFromInt(1)) {
			return 30 * time.Millisecond
		}
		return 0
	}
	f := newFixture(t, persister, time.Hour)
	slot := domain.Slot{Section: domain.SectionGudang, Day: 6, ProductID: "p1"}

	for _, raw := range []string{"1", "2", "3"} {
		f.now = f.now.Add(time.Millisecond)
		_, err := f.coord.Submit(Request{Period: october, Slot: slot, Actor: staff, Edit: edit(t, domain.FieldStockIn, raw)})
		require.NoError(t, err)
	}
	f.coord.Wait()

	saved := persister.saved()
	require.Len(t, saved, 3)
	for i, want := range []int64{1, 2, 3} {
		assert.True(t, saved[i].StockIn.Equal(decimal.NewFromInt(want)), "write %d", i)
	}
	assert.Equal(t, StatusSuccess, f.coord.Statuses().Get(StatusKey{Slot: slot, Field: domain.FieldStockIn}))
}

func TestSupersededResultDoesNotOverwriteStatus(t *testing.T) {
	board := NewStatusBoard(time.Hour, nil)
	key := StatusKey{Slot: domain.Slot{Section: domain.SectionGudang, Day: 1, ProductID: "p1"}, Field: domain.FieldStockIn}

	first := board.begin(key)
	second := board.begin(key)
	board.finish(key, first, errors.New("timeout"))
	assert.Equal(t, StatusSaving, board.Get(key))

	board.finish(key, second, nil)
	assert.Equal(t, StatusSuccess, board.Get(key))

	board.Reset()
	assert.Equal(t, StatusIdle, board.Get(key))
}
