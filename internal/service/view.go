package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/editor"
	"habibeat/backend/internal/ledger"
	"habibeat/backend/internal/reconcile"
	"habibeat/backend/internal/store"
)

// Snapshot is what a client renders: the active day of the active section.
type Snapshot struct {
	Period       domain.Period            `json:"period"`
	Section      domain.Section           `json:"section"`
	Day          int                      `json:"day"`
	Days         int                      `json:"days"`
	Archived     bool                     `json:"archived"`
	Rows         []domain.CalculatedStock `json:"rows"`
	Totals       ledger.Totals            `json:"totals"`
	LastActivity *ledger.Activity         `json:"last_activity,omitempty"`
	Statuses     map[string]editor.Status `json:"statuses"`
}

// View is one actor's working state: the viewed month with its entries, watermarks,
// field statuses and selection. Edits, merges and navigation are serialized by mu.
type View struct {
	mu sync.Mutex

	actor   domain.Actor
	svc     *Service
	clock   func() time.Time
	entries *ledger.Store
	marks   *reconcile.Watermarks
	merger  *reconcile.Merger
	coord   *editor.Coordinator
	section domain.Section
	day     int
	closing domain.Closing

	sheet        *ledger.Sheet
	sheetEntries uint64
	sheetCatalog uint64
}

func newView(svc *Service, actor domain.Actor) *View {
	now := svc.clock()
	entries := ledger.NewStore(domain.PeriodOf(now))
	marks := reconcile.NewWatermarks()
	return &View{
		actor:   actor,
		svc:     svc,
		clock:   svc.clock,
		entries: entries,
		marks:   marks,
		merger:  reconcile.NewMerger(entries, marks),
		coord: editor.New(entries, marks, svc.persister, editor.Options{
			Clock:            svc.clock,
			PersistTimeout:   svc.opts.PersistTimeout,
			StatusClearAfter: svc.opts.StatusClearAfter,
		}),
		section: domain.SectionGudang,
		day:     now.Day(),
		closing: domain.Closing{},
	}
}

func (v *View) Actor() domain.Actor {
	return v.actor
}

// Navigate loads period into the view. Months after the current calendar month are
// refused. A failed fetch leaves the month empty rather than failing. Moving to
// another month selects day 1.
func (v *View) Navigate(ctx context.Context, period domain.Period) error {
	if !period.Valid() {
		return ErrInvalidPeriod
	}
	if period.After(domain.PeriodOf(v.clock())) {
		return ErrFutureMonth
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	rows, err := v.svc.repo.ListEntries(ctx, period)
	if err != nil {
		log.Warn().Err(err).Str("period", period.String()).Str("user", v.actor.Username).Msg("fetch failed, showing empty month")
		rows = nil
	}
	closing := v.svc.resolver.Resolve(ctx, period)

	if period != v.entries.Period() {
		v.day = 1
	}
	v.entries.ReplaceAll(period, ledger.Organize(rows))
	v.marks.Load(rows)
	v.coord.Statuses().Reset()
	v.closing = closing
	v.sheet = nil
	return nil
}

// SelectDay picks the active day. Days after today in the current month are refused.
func (v *View) SelectDay(day int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	period := v.entries.Period()
	if day < 1 || day > period.Days() {
		return domain.ErrInvalidDay
	}
	now := v.clock()
	if period == domain.PeriodOf(now) && day > now.Day() {
		return ErrFutureDay
	}
	v.day = day
	return nil
}

func (v *View) SelectSection(section domain.Section) error {
	if _, err := domain.ParseSection(string(section)); err != nil {
		return err
	}
	v.mu.Lock()
	v.section = section
	v.mu.Unlock()
	return nil
}

// Submit edits one field of productID on the active section and day. The persist
// continues in the background; ctx only bounds the product lookup.
func (v *View) Submit(ctx context.Context, productID string, field domain.Field, raw string) (domain.StockEntry, error) {
	edit, err := domain.NewEdit(field, raw)
	if err != nil {
		return domain.StockEntry{}, err
	}
	if _, ok := v.svc.product(productID); !ok {
		// Products created on another instance are only known after a reload.
		if err := v.svc.RefreshProducts(ctx); err != nil {
			return domain.StockEntry{}, err
		}
		if _, ok := v.svc.product(productID); !ok {
			return domain.StockEntry{}, store.ErrNotFound
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	carry, _ := v.closing.Lookup(v.section, productID)
	actor := v.actor
	return v.coord.Submit(editor.Request{
		Period:    v.entries.Period(),
		Slot:      domain.Slot{Section: v.section, Day: v.day, ProductID: productID},
		Actor:     &actor,
		Edit:      edit,
		CarryOver: carry,
	})
}

// Receive merges one feed notification.
func (v *View) Receive(change domain.EntryChange) reconcile.Outcome {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.merger.Merge(change)
}

func (v *View) Statuses() map[string]editor.Status {
	return v.coord.Statuses().Snapshot()
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	period, entries, version := v.entries.Snapshot()
	products, catalogVersion := v.svc.catalog()
	if v.sheet == nil || v.sheetEntries != version || v.sheetCatalog != catalogVersion {
		sheet := ledger.Calculate(period, products, entries, v.closing)
		v.sheet = &sheet
		v.sheetEntries = version
		v.sheetCatalog = catalogVersion
	}

	rows := v.sheet.Rows(v.section, v.day)
	if rows == nil {
		rows = []domain.CalculatedStock{}
	}
	return Snapshot{
		Period:       period,
		Section:      v.section,
		Day:          v.day,
		Days:         period.Days(),
		Archived:     period.Archived(v.clock()),
		Rows:         rows,
		Totals:       ledger.Summarize(rows),
		LastActivity: ledger.LastActivity(rows),
		Statuses:     v.coord.Statuses().Snapshot(),
	}
}

// Wait blocks until the view's in-flight persists finish.
func (v *View) Wait() {
	v.coord.Wait()
}
