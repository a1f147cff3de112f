package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"habibeat/backend/internal/cache"
	"habibeat/backend/internal/domain"
)

// PreviousMonthSource yields every row of a month, highest day first.
type PreviousMonthSource interface {
	ListEntriesByDayDesc(ctx context.Context, period domain.Period) ([]domain.StockEntry, error)
}

// ResolveClosing picks, per section and product, the entry with the highest day and
// closes it as its own openingStock + stockIn - stockOut. It does not chain through
// the days of the month; only the last recorded day counts.
func ResolveClosing(rows []domain.StockEntry) domain.Closing {
	closing := make(domain.Closing, len(domain.Sections))
	latest := make(map[domain.Section]map[string]int)

	for _, row := range rows {
		section := row.Section
		if section == "" {
			section = domain.SectionGudang
		}
		seen, ok := latest[section][row.ProductID]
		if ok && seen >= row.Day {
			continue
		}
		if latest[section] == nil {
			latest[section] = make(map[string]int)
		}
		latest[section][row.ProductID] = row.Day
		closing.Set(section, row.ProductID, row.OpeningStock.Add(row.StockIn).Sub(row.StockOut))
	}

	return closing
}

type CarryOverResolver struct {
	source   PreviousMonthSource
	cache    cache.ClosingCache
	cacheTTL time.Duration
}

func NewCarryOverResolver(source PreviousMonthSource, closingCache cache.ClosingCache, cacheTTL time.Duration) *CarryOverResolver {
	if closingCache == nil {
		closingCache = cache.NoopClosingCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CarryOverResolver{source: source, cache: closingCache, cacheTTL: cacheTTL}
}

// Resolve returns the closings that carry into target. A failed or empty fetch yields
// an empty mapping; missing carry-over is never an error.
func (r *CarryOverResolver) Resolve(ctx context.Context, target domain.Period) domain.Closing {
	previous := target.Previous()

	if cached, ok, err := r.cache.Get(ctx, previous); err == nil && ok {
		return cached
	} else if err != nil {
		log.Warn().Err(err).Str("period", previous.String()).Msg("carry-over cache read failed")
	}

	rows, err := r.source.ListEntriesByDayDesc(ctx, previous)
	if err != nil {
		log.Warn().Err(err).Str("period", previous.String()).Msg("carry-over unavailable, defaulting to zero")
		return domain.Closing{}
	}
	if len(rows) == 0 {
		return domain.Closing{}
	}

	closing := ResolveClosing(rows)
	if err := r.cache.Set(ctx, previous, closing, r.cacheTTL); err != nil {
		log.Warn().Err(err).Str("period", previous.String()).Msg("carry-over cache write failed")
	}
	return closing
}
