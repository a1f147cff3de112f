// Command ledgerctl inspects and maintains the stock ledger from the command line.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"habibeat/backend/internal/config"
	"habibeat/backend/internal/logger"
	"habibeat/backend/internal/store"
	"habibeat/backend/internal/store/memory"
	pgstore "habibeat/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	register(commander, func(ctx context.Context) (store.Repository, func() error, error) {
		return openRepository(ctx, cfg)
	}, os.Stdout)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// openRepository connects to DATABASE_URL. Without one the seeded in-memory store is
// used, which only makes sense for trying the commands out.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		return memory.NewSeeded(), func() error { return nil }, nil
	}
	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
