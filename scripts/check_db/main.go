package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"b-resto/internal/config"
	"b-resto/internal/database"
)

// Connects with the server's DB_* settings, applies the schema and reports
// the row counts the storefront depends on.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logger, "check-db")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	var dbName string
	if err := pool.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		fmt.Fprintf(os.Stderr, "QueryRow failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully connected to database: %s\n", dbName)

	if err := database.Migrate(ctx, pool, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Schema migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Schema is up to date")

	for _, table := range []string{"menu_items", "orders"} {
		var count int
		if err := pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&count); err != nil {
			fmt.Fprintf(os.Stderr, "Count on %s failed: %v\n", table, err)
			os.Exit(1)
		}
		fmt.Printf("  %-10s %d rows\n", table, count)
	}
}
