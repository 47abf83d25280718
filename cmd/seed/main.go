// Command seed creates the base database schema. It refuses to touch a
// database that already contains tables, so it can never clobber live data.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"rhyolite-backend/internal/repository/sqlite"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		return fmt.Errorf("DATABASE_PATH must be set; refusing to guess a database location")
	}

	ctx := context.Background()

	repo, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	tables, err := repo.UserTables(ctx)
	if err != nil {
		return err
	}
	if len(tables) > 0 {
		return fmt.Errorf("database %s already contains tables (%s); refusing to seed",
			dbPath, strings.Join(tables, ", "))
	}

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	tables, err = repo.UserTables(ctx)
	if err != nil {
		return err
	}
	log.Printf("seeded %s with tables: %s", dbPath, strings.Join(tables, ", "))
	return nil
}
