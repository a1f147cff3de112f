package ledger

import (
	"github.com/shopspring/decimal"

	"habibeat/backend/internal/domain"
)

// MaxDays is how many days a Sheet always covers. Rows past the real month length
// are computed but carry no meaning.
const MaxDays = 31

// Sheet is the derived daily ledger of both sections of one period.
type Sheet struct {
	Period   domain.Period
	sections map[domain.Section][][]domain.CalculatedStock
}

// Rows returns the calculated rows of one day, one per product in master-list order.
func (s Sheet) Rows(section domain.Section, day int) []domain.CalculatedStock {
	days, ok := s.sections[section]
	if !ok || day < 1 || day > len(days) {
		return nil
	}
	return days[day-1]
}

// Calculate threads each product's balance through days 1..MaxDays, per section.
// Day 1 opens at the entered openingStock when it is non-zero, else at the
// carry-over, else at zero. Every later day opens at the previous day's end.
func Calculate(period domain.Period, products []domain.Product, entries Entries, closing domain.Closing) Sheet {
	sheet := Sheet{
		Period:   period,
		sections: make(map[domain.Section][][]domain.CalculatedStock, len(domain.Sections)),
	}

	for _, section := range domain.Sections {
		balances := make(map[string]decimal.Decimal, len(products))
		days := make([][]domain.CalculatedStock, MaxDays)

		for day := 1; day <= MaxDays; day++ {
			rows := make([]domain.CalculatedStock, 0, len(products))
			for _, product := range products {
				slot := domain.Slot{Section: section, Day: day, ProductID: product.ID}
				entry, recorded := entries.Get(slot)

				initial := balances[product.ID]
				if day == 1 {
					initial = openingBalance(entry, closing, section, product.ID)
				}
				end := initial.Add(entry.StockIn).Sub(entry.StockOut)
				balances[product.ID] = end

				row := domain.CalculatedStock{
					ProductID:    product.ID,
					Name:         product.Name,
					Unit:         product.Unit,
					Section:      section,
					Day:          day,
					InitialStock: initial,
					StockIn:      entry.StockIn,
					StockOut:     entry.StockOut,
					EndStock:     end,
					UnitPrice:    product.UnitPrice,
					Description:  entry.Description,
				}
				if recorded {
					row.LastModifiedBy = entry.LastModifiedBy
					if !entry.LastModifiedAt.IsZero() {
						at := entry.LastModifiedAt
						row.LastModifiedAt = &at
					}
				}
				rows = append(rows, row)
			}
			days[day-1] = rows
		}
		sheet.sections[section] = days
	}

	return sheet
}

func openingBalance(entry domain.StockEntry, closing domain.Closing, section domain.Section, productID string) decimal.Decimal {
	if !entry.OpeningStock.IsZero() {
		return entry.OpeningStock
	}
	if carried, ok := closing.Lookup(section, productID); ok {
		return carried
	}
	return decimal.Zero
}
