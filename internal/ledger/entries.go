package ledger

import (
	"errors"
	"sync"
	"time"

	"habibeat/backend/internal/domain"
)

var (
	ErrPeriodMismatch    = errors.New("entry belongs to a different period than the store")
	ErrMissingProvenance = errors.New("write must carry actor and timestamp")
)

// Entries is the sparse section -> day -> product mapping of one month. Values are never
// mutated in place: With copies the path to the replaced leaf and shares the rest.
type Entries map[domain.Section]map[int]map[string]domain.StockEntry

// Organize groups fetched rows. Rows without a section are filed under gudang.
func Organize(rows []domain.StockEntry) Entries {
	organized := make(Entries, len(domain.Sections))
	for _, row := range rows {
		if row.Section == "" {
			row.Section = domain.SectionGudang
		}
		if _, err := domain.ParseSection(string(row.Section)); err != nil {
			continue
		}
		if row.Day < 1 || row.Day > MaxDays {
			continue
		}
		days := organized[row.Section]
		if days == nil {
			days = make(map[int]map[string]domain.StockEntry)
			organized[row.Section] = days
		}
		products := days[row.Day]
		if products == nil {
			products = make(map[string]domain.StockEntry)
			days[row.Day] = products
		}
		products[row.ProductID] = row
	}
	return organized
}

func (e Entries) Lookup(slot domain.Slot) (domain.StockEntry, bool) {
	entry, ok := e[slot.Section][slot.Day][slot.ProductID]
	return entry, ok
}

// Get is the single default-on-absence accessor: a missing entry reads as zero
// movement with no opening override. The bool reports whether the slot has a row.
func (e Entries) Get(slot domain.Slot) (domain.StockEntry, bool) {
	if entry, ok := e.Lookup(slot); ok {
		return entry, true
	}
	return domain.StockEntry{ProductID: slot.ProductID, Section: slot.Section, Day: slot.Day}, false
}

func (e Entries) With(entry domain.StockEntry) Entries {
	next := make(Entries, len(e)+1)
	for section, days := range e {
		next[section] = days
	}

	days := make(map[int]map[string]domain.StockEntry, len(e[entry.Section])+1)
	for day, products := range e[entry.Section] {
		days[day] = products
	}

	products := make(map[string]domain.StockEntry, len(days[entry.Day])+1)
	for id, existing := range days[entry.Day] {
		products[id] = existing
	}
	products[entry.ProductID] = entry

	days[entry.Day] = products
	next[entry.Section] = days
	return next
}

func (e Entries) Len() int {
	total := 0
	for _, days := range e {
		for _, products := range days {
			total += len(products)
		}
	}
	return total
}

// Store holds the Entries of exactly one period. Every mutation bumps Version so
// projections can tell when to recompute.
type Store struct {
	mu      sync.RWMutex
	period  domain.Period
	entries Entries
	version uint64
}

func NewStore(period domain.Period) *Store {
	return &Store{period: period, entries: Entries{}}
}

func (s *Store) Snapshot() (domain.Period, Entries, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.period, s.entries, s.version
}

func (s *Store) Period() domain.Period {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.period
}

// ReplaceAll swaps in a freshly fetched month. Nothing from the previous period survives.
func (s *Store) ReplaceAll(period domain.Period, entries Entries) {
	if entries == nil {
		entries = Entries{}
	}
	s.mu.Lock()
	s.period = period
	s.entries = entries
	s.version++
	s.mu.Unlock()
}

// UpsertField merges edit over the existing entry, or over base when the slot is empty,
// and stamps provenance.
func (s *Store) UpsertField(period domain.Period, slot domain.Slot, edit domain.Edit, actor string, at time.Time, base domain.StockEntry) (domain.StockEntry, error) {
	if actor == "" || at.IsZero() {
		return domain.StockEntry{}, ErrMissingProvenance
	}
	if slot.Day < 1 || slot.Day > MaxDays {
		return domain.StockEntry{}, domain.ErrInvalidDay
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if period != s.period {
		return domain.StockEntry{}, ErrPeriodMismatch
	}

	current, ok := s.entries.Lookup(slot)
	if !ok {
		current = base
	}
	current.ProductID = slot.ProductID
	current.Section = slot.Section
	current.Day = slot.Day
	current.Year = period.Year
	current.Month = period.Month

	updated := edit.Apply(current)
	updated.LastModifiedBy = actor
	updated.LastModifiedAt = at

	s.entries = s.entries.With(updated)
	s.version++
	return updated, nil
}

// Put replaces one leaf wholesale.
func (s *Store) Put(entry domain.StockEntry) error {
	if entry.Day < 1 || entry.Day > MaxDays {
		return domain.ErrInvalidDay
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Period() != s.period {
		return ErrPeriodMismatch
	}
	s.entries = s.entries.With(entry)
	s.version++
	return nil
}
