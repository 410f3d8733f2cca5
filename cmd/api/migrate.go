package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/atharvakonge/papertrade/internal/db"
	"github.com/google/subcommands"
)

type migrateCmd struct {
	envFlag
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending database migrations and exit" }
func (*migrateCmd) Usage() string {
	return `migrate [-env <file>]
`
}

func (m *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.envFile, "env", ".env", "Optional .env file to load before reading the environment.")
}

func (m *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := m.load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	database, err := db.Open(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println("migrations applied")
	return subcommands.ExitSuccess
}
