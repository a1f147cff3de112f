package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"habibeat/backend/internal/catalog"
	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/ledger"
	"habibeat/backend/internal/service"
	"habibeat/backend/internal/store"
)

type openFunc func(ctx context.Context) (store.Repository, func() error, error)

func register(c *subcommands.Commander, open openFunc, out io.Writer) {
	c.Register(&carryOverCmd{open: open, out: out}, "ledger")
	c.Register(&sheetCmd{open: open, out: out}, "ledger")
	c.Register(&importCmd{open: open, out: out}, "products")
}

// periodFlags holds -year and -month, defaulting to the current month.
type periodFlags struct {
	year  int
	month int
}

func (p *periodFlags) set(f *flag.FlagSet) {
	now := time.Now()
	f.IntVar(&p.year, "year", now.Year(), "Year of the month")
	f.IntVar(&p.month, "month", int(now.Month()), "Month number, 1-12")
}

func (p *periodFlags) period() (domain.Period, error) {
	period := domain.Period{Year: p.year, Month: time.Month(p.month)}
	if !period.Valid() {
		return domain.Period{}, service.ErrInvalidPeriod
	}
	return period, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

type carryOverCmd struct {
	open openFunc
	out  io.Writer
	periodFlags
}

func (*carryOverCmd) Name() string     { return "carryover" }
func (*carryOverCmd) Synopsis() string { return "print the closing balances that open a month" }
func (*carryOverCmd) Usage() string {
	return `ledgerctl carryover [-year <yyyy>] [-month <m>]

  Prints, per section and product, the balance carried into the given month from the
  last recorded day of the month before it.
`
}

func (c *carryOverCmd) SetFlags(f *flag.FlagSet) { c.periodFlags.set(f) }

func (c *carryOverCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := c.period()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	repo, closeRepo, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeRepo()

	closing := ledger.NewCarryOverResolver(repo, nil, 0).Resolve(ctx, period)
	if err := writeJSON(c.out, map[string]any{
		"period":  period.String(),
		"from":    period.Previous().String(),
		"closing": closing,
	}); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type sheetCmd struct {
	open    openFunc
	out     io.Writer
	section string
	day     int
	periodFlags
}

func (*sheetCmd) Name() string     { return "sheet" }
func (*sheetCmd) Synopsis() string { return "print the calculated ledger of one day" }
func (*sheetCmd) Usage() string {
	return `ledgerctl sheet [-year <yyyy>] [-month <m>] [-section gudang|booth] [-day <d>]

  Prints every product's calculated row for one day of one section, with totals.
`
}

func (c *sheetCmd) SetFlags(f *flag.FlagSet) {
	c.periodFlags.set(f)
	f.StringVar(&c.section, "section", string(domain.SectionGudang), "Section: gudang or booth")
	f.IntVar(&c.day, "day", 1, "Day of the month")
}

func (c *sheetCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := c.period()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	section, err := domain.ParseSection(c.section)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if c.day < 1 || c.day > period.Days() {
		fmt.Fprintf(os.Stderr, "Error: %v\n", domain.ErrInvalidDay)
		return subcommands.ExitUsageError
	}

	repo, closeRepo, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeRepo()

	products, err := repo.ListProducts(ctx)
	if err != nil {
		return fail(err)
	}
	rows, err := repo.ListEntries(ctx, period)
	if err != nil {
		return fail(err)
	}
	closing := ledger.NewCarryOverResolver(repo, nil, 0).Resolve(ctx, period)

	sheet := ledger.Calculate(period, products, ledger.Organize(rows), closing)
	dayRows := sheet.Rows(section, c.day)
	if err := writeJSON(c.out, map[string]any{
		"period":        period.String(),
		"section":       section,
		"day":           c.day,
		"rows":          dayRows,
		"totals":        ledger.Summarize(dayRows),
		"last_activity": ledger.LastActivity(dayRows),
	}); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type importCmd struct {
	open     openFunc
	out      io.Writer
	file     string
	defaults bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "add products from a CSV file or the default list" }
func (*importCmd) Usage() string {
	return `ledgerctl import (-file <products.csv> | -defaults)

  Creates one product per CSV row (name,unit or name;unit, optional header) at a zero
  unit price, or the built-in default product list.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "CSV file of name,unit rows")
	f.BoolVar(&c.defaults, "defaults", false, "Import the default product list")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if (c.file == "") == !c.defaults {
		fmt.Fprintln(os.Stderr, "Error: exactly one of -file or -defaults is required")
		return subcommands.ExitUsageError
	}

	items := catalog.Defaults
	if c.file != "" {
		fh, err := os.Open(c.file)
		if err != nil {
			return fail(err)
		}
		items, err = catalog.ParseCSV(fh)
		fh.Close()
		if err != nil {
			return fail(err)
		}
	}

	repo, closeRepo, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeRepo()

	svc := service.New(repo, nil, nil, service.Options{})
	adminCtx := service.WithActor(ctx, domain.Actor{Username: "ledgerctl", Role: domain.RoleAdmin})
	// A partial import still reports how many rows made it in.
	created, err := svc.ImportProducts(adminCtx, items)
	if werr := writeJSON(c.out, map[string]any{"created": created, "requested": len(items)}); werr != nil {
		return fail(werr)
	}
	if err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}
