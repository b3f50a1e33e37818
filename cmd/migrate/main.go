package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	migrate "github.com/goliatone/go-schema-migrate"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: migrate [flags] <command>

Commands:
  upgrade     apply pending migrations (up to -to when given)
  downgrade   revert applied migrations (down to -to when given)
  status      list migrations with their applied state

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		uri        = flag.String("uri", "", "database connection URI (defaults to configuration)")
		database   = flag.String("db", "", "database name (defaults to configuration)")
		dir        = flag.String("migrations", "migrations", "directory holding migration JSON files")
		policy     = flag.String("policy", "", "document policy: strict or replace")
		target     = flag.String("to", "", "target migration name")
		logEnabled = flag.Bool("log", true, "enable structured logging")
		logLevel   = flag.String("log-level", "info", "log level: trace, debug, info, warn, error, fatal")
	)
	flag.Usage = usage
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		usage()
		os.Exit(2)
	}

	migrations, err := loadMigrations(*dir)
	if err != nil {
		log.Fatalf("load migrations: %v", err)
	}
	if len(migrations) == 0 {
		log.Fatalf("no migrations found under %q", *dir)
	}

	cfg := migrate.DefaultConfig()
	if *uri != "" {
		cfg.Store.URI = *uri
	}
	if *database != "" {
		cfg.Store.Database = *database
	}
	if *policy != "" {
		cfg.Policy = *policy
	}
	cfg.Features.Logger = *logEnabled
	cfg.Logging.Level = *logLevel

	engine, err := migrate.New(cfg, migrations)
	if err != nil {
		log.Fatalf("initialise engine: %v", err)
	}

	ctx := context.Background()
	if err := engine.Connect(ctx); err != nil {
		log.Fatalf("connect to %s: %v", cfg.Store.URI, err)
	}

	switch command {
	case "upgrade":
		if err := engine.Upgrade(ctx, *target); err != nil {
			log.Fatalf("upgrade: %v", err)
		}
	case "downgrade":
		if err := engine.Downgrade(ctx, *target); err != nil {
			log.Fatalf("downgrade: %v", err)
		}
	case "status":
		statuses, err := engine.Status(ctx)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Printf("%-40s %s\n", s.Name, state)
		}
	default:
		usage()
		os.Exit(2)
	}
}

// migrationFile is the on-disk shape of a single migration. The name defaults
// to the file name without extension when omitted.
type migrationFile struct {
	Name         string           `json:"name,omitempty"`
	Dependencies []string         `json:"dependencies,omitempty"`
	Actions      []migrate.Record `json:"actions"`
}

func loadMigrations(dir string) ([]*migrate.Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var migrations []*migrate.Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var file migrationFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		name := file.Name
		if name == "" {
			name = strings.TrimSuffix(entry.Name(), ".json")
		}
		migrations = append(migrations, &migrate.Migration{
			Name:         name,
			Dependencies: file.Dependencies,
			Actions:      file.Actions,
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Name < migrations[j].Name })
	return migrations, nil
}
