// Package main provides a CLI tool for database migrations and the admin roster.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Arrogantx/slapper/internal/config"
	"github.com/Arrogantx/slapper/internal/storage"
	"github.com/Arrogantx/slapper/internal/types"
)

const (
	postgresMigrations   = "migrations/postgres"
	clickhouseMigrations = "migrations/clickhouse"
)

func main() {
	app := &cli.App{
		Name:  "migrate",
		Usage: "manage AvaxSlap schemas and admins",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "postgres migrations directory",
				Value: postgresMigrations,
			},
		},
		Commands: []*cli.Command{
			commandUp(),
			commandDown(),
			commandVersion(),
			commandForce(),
			commandClickHouse(),
			commandArchiveStats(),
			commandAdmin(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func postgresURL() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return storage.PostgresURL(&cfg.Database.Postgres), nil
}

func commandUp() *cli.Command {
	return &cli.Command{
		Name:  "up",
		Usage: "apply all pending Postgres migrations",
		Action: func(c *cli.Context) error {
			databaseURL, err := postgresURL()
			if err != nil {
				return err
			}
			log.Println("Running Postgres migrations...")
			if err := storage.RunMigrations(databaseURL, c.String("path")); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Println("Postgres migrations completed successfully")
			return nil
		},
	}
}

func commandDown() *cli.Command {
	return &cli.Command{
		Name:  "down",
		Usage: "roll back Postgres migrations",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "steps", Usage: "number of migrations to roll back", Value: 1},
		},
		Action: func(c *cli.Context) error {
			steps := c.Int("steps")
			if steps < 1 {
				return fmt.Errorf("steps must be at least 1")
			}
			databaseURL, err := postgresURL()
			if err != nil {
				return err
			}
			log.Printf("Rolling back %d Postgres migration(s)...", steps)
			if err := storage.RollbackMigrations(databaseURL, c.String("path"), steps); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			log.Println("Rollback completed successfully")
			return nil
		},
	}
}

func commandVersion() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the current Postgres schema version",
		Action: func(c *cli.Context) error {
			databaseURL, err := postgresURL()
			if err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(databaseURL, c.String("path"))
			if err != nil {
				return fmt.Errorf("failed to read version: %w", err)
			}
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
			return nil
		},
	}
}

func commandForce() *cli.Command {
	return &cli.Command{
		Name:  "force",
		Usage: "mark the schema as a version without running migrations",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "version", Required: true},
		},
		Action: func(c *cli.Context) error {
			databaseURL, err := postgresURL()
			if err != nil {
				return err
			}
			if err := storage.ForceMigrationVersion(databaseURL, c.String("path"), c.Int("version")); err != nil {
				return fmt.Errorf("force failed: %w", err)
			}
			log.Printf("Schema forced to version %d", c.Int("version"))
			return nil
		},
	}
}

func commandClickHouse() *cli.Command {
	return &cli.Command{
		Name:  "clickhouse",
		Usage: "create the ClickHouse event archive tables",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Value: clickhouseMigrations},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if _, err := os.Stat(c.String("path")); os.IsNotExist(err) {
				return fmt.Errorf("migrations directory %q not found", c.String("path"))
			}

			db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
			if err != nil {
				return fmt.Errorf("failed to connect to ClickHouse: %w", err)
			}
			defer db.Close()

			log.Println("Running ClickHouse migrations...")
			applied, err := storage.RunClickHouseMigrations(c.Context, db, c.String("path"))
			if err != nil {
				return fmt.Errorf("clickhouse migration failed: %w", err)
			}
			log.Printf("ClickHouse migrations completed successfully (%d applied)", len(applied))
			return nil
		},
	}
}

func commandArchiveStats() *cli.Command {
	return &cli.Command{
		Name:  "archive-stats",
		Usage: "count archived change events per table",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "since", Usage: "look-back window", Value: 24 * time.Hour},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
			if err != nil {
				return fmt.Errorf("failed to connect to ClickHouse: %w", err)
			}
			defer db.Close()

			counts, err := storage.NewEventArchive(db).CountSince(c.Context, time.Now().Add(-c.Duration("since")))
			if err != nil {
				return err
			}
			tables := make([]string, 0, len(counts))
			for table := range counts {
				tables = append(tables, table)
			}
			sort.Strings(tables)
			for _, table := range tables {
				fmt.Printf("%-20s %d\n", table, counts[table])
			}
			return nil
		},
	}
}

func commandAdmin() *cli.Command {
	withRoster := func(fn func(ctx context.Context, roster *storage.AdminRosterRepository, c *cli.Context) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
			if err != nil {
				return fmt.Errorf("failed to connect to Postgres: %w", err)
			}
			defer db.Close()
			return fn(c.Context, storage.NewAdminRosterRepository(db), c)
		}
	}

	walletArg := func(c *cli.Context) (types.WalletAddress, error) {
		if c.NArg() != 1 {
			return "", fmt.Errorf("expected exactly one wallet address")
		}
		return types.ParseWalletAddress(c.Args().First())
	}

	return &cli.Command{
		Name:  "admin",
		Usage: "manage the admin roster",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				ArgsUsage: "<wallet>",
				Action: withRoster(func(ctx context.Context, roster *storage.AdminRosterRepository, c *cli.Context) error {
					wallet, err := walletArg(c)
					if err != nil {
						return err
					}
					if err := roster.Add(ctx, wallet); err != nil {
						return err
					}
					log.Printf("Added admin %s", wallet)
					return nil
				}),
			},
			{
				Name:      "remove",
				ArgsUsage: "<wallet>",
				Action: withRoster(func(ctx context.Context, roster *storage.AdminRosterRepository, c *cli.Context) error {
					wallet, err := walletArg(c)
					if err != nil {
						return err
					}
					removed, err := roster.Remove(ctx, wallet)
					if err != nil {
						return err
					}
					if !removed {
						return fmt.Errorf("%s is not an admin", wallet)
					}
					log.Printf("Removed admin %s", wallet)
					return nil
				}),
			},
			{
				Name: "list",
				Action: withRoster(func(ctx context.Context, roster *storage.AdminRosterRepository, _ *cli.Context) error {
					admins, err := roster.List(ctx)
					if err != nil {
						return err
					}
					for _, wallet := range admins {
						fmt.Println(wallet)
					}
					return nil
				}),
			},
		},
	}
}
