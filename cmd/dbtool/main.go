// Command dbtool manages the SnailMail schema and demo data.
//
//	dbtool migrate up|down|status
//	dbtool migrate create -dir internal/database/migrations NAME
//	dbtool seed [-file seed.sql]
//	dbtool reset -yes
//	dbtool verify
//	dbtool ping
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/Spycrab06/snailmail/internal/config"
	"github.com/Spycrab06/snailmail/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := runSubcommand(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSubcommand(ctx context.Context, name string, args []string) error {
	switch name {
	case "migrate":
		return runMigrate(ctx, args)
	case "seed":
		return runSeed(ctx, args)
	case "reset":
		return runReset(ctx, args)
	case "verify":
		return withDB(ctx, runVerify)
	case "ping":
		return withDB(ctx, runPing)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return errors.Errorf("unknown command %q", name)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: dbtool <command> [flags]

Commands:
  migrate up|down|status    apply, roll back or list schema migrations
  migrate create NAME       write a new SQL migration file (-dir)
  seed                      load demo data (-file to override the built-in script)
  reset -yes                drop every table in the database
  verify                    print row counts and sample people
  ping                      check connectivity and print server info`)
}

func withDB(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	cfg, err := config.LoadDB()
	if err != nil {
		return err
	}
	pool, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool.DB)
}

func runMigrate(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	dir := cmd.String("dir", "internal/database/migrations", "Directory for new migration files")
	if len(args) == 0 {
		return errors.New("migrate needs up, down, status or create")
	}
	action := args[0]
	if err := cmd.Parse(args[1:]); err != nil {
		return err
	}

	switch action {
	case "up":
		return withDB(ctx, database.MigrateUp)
	case "down":
		return withDB(ctx, database.MigrateDown)
	case "status":
		return withDB(ctx, database.MigrateStatus)
	case "create":
		if cmd.NArg() != 1 {
			return errors.New("migrate create needs exactly one NAME")
		}
		return database.CreateMigration(*dir, cmd.Arg(0))
	default:
		return errors.Errorf("unknown migrate action %q", action)
	}
}

func runSeed(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("seed", flag.ExitOnError)
	file := cmd.String("file", "", "SQL script to run instead of the built-in demo data")
	if err := cmd.Parse(args); err != nil {
		return err
	}

	script := database.DefaultSeed()
	if *file != "" {
		b, err := os.ReadFile(*file)
		if err != nil {
			return errors.Wrap(err, "read seed file")
		}
		script = string(b)
	}

	return withDB(ctx, func(ctx context.Context, db *sql.DB) error {
		failed := 0
		for i, r := range database.Seed(ctx, db, script) {
			if r.Err != nil {
				failed++
				fmt.Printf("statement %d failed: %v\n", i+1, r.Err)
				continue
			}
			fmt.Printf("statement %d ok\n", i+1)
		}
		if failed > 0 {
			return errors.Errorf("%d seed statement(s) failed", failed)
		}
		return nil
	})
}

func runReset(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("reset", flag.ExitOnError)
	yes := cmd.Bool("yes", false, "Confirm dropping every table")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return errors.New("reset drops every table; rerun with -yes to confirm")
	}
	return withDB(ctx, func(ctx context.Context, db *sql.DB) error {
		dropped, err := database.Reset(ctx, db)
		for _, t := range dropped {
			fmt.Printf("dropped %s\n", t)
		}
		return err
	})
}

func runVerify(ctx context.Context, db *sql.DB) error {
	rep, err := database.Verify(ctx, db)
	if err != nil {
		return err
	}
	fmt.Println("Tables:")
	for _, t := range rep.Tables {
		fmt.Printf("  %-20s %d rows\n", t.Name, t.Rows)
	}
	fmt.Println("Customers:")
	for _, p := range rep.Customers {
		fmt.Printf("  %s\n", p)
	}
	fmt.Println("Employees:")
	for _, p := range rep.Employees {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func runPing(ctx context.Context, db *sql.DB) error {
	info, err := database.Info(ctx, db)
	if err != nil {
		return err
	}
	fmt.Printf("connected to %q (MySQL %s), %d table(s)\n", info.Database, info.Version, len(info.Tables))
	for _, t := range info.Tables {
		fmt.Printf("  %s\n", t)
	}
	return nil
}
