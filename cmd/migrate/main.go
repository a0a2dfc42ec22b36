package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/ignite/email-validator/internal/pkg/logger"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if listOnly {
		if err := listTables(ctx, db, os.Stdout); err != nil {
			logger.Error("listing tables failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ok, failed, err := applyMigrations(ctx, db, dir, os.Stdout)
	if err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "ok", ok, "errors", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// listTables prints the tables owned by the validation service.
func listTables(ctx context.Context, db *sql.DB, w io.Writer) error {
	rows, err := db.QueryContext(ctx, `SELECT tablename FROM pg_tables
		WHERE schemaname = 'public' AND tablename IN ('known_valid_emails', 'validation_results')
		ORDER BY tablename`)
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		fmt.Fprintln(w, " ", t)
		n++
	}
	fmt.Fprintf(w, "Total: %d tables\n", n)
	return rows.Err()
}

// applyMigrations runs every .sql file in dir, in name order, each in its
// own transaction. A failing file is rolled back and counted; later files
// still run.
func applyMigrations(ctx context.Context, db *sql.DB, dir string, w io.Writer) (ok, failed int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		path := filepath.Join(dir, f)
		data, err := os.ReadFile(path)
		if err != nil {
			return ok, failed, fmt.Errorf("read %s: %w", path, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Fprintf(w, "  %s ... ", f)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			fmt.Fprintf(w, "BEGIN ERROR: %v\n", err)
			failed++
			continue
		}
		if _, err := tx.ExecContext(ctx, content); err != nil {
			tx.Rollback()
			fmt.Fprintf(w, "ERROR: %v\n", err)
			failed++
			continue
		}
		if err := tx.Commit(); err != nil {
			fmt.Fprintf(w, "COMMIT ERROR: %v\n", err)
			failed++
			continue
		}
		fmt.Fprintln(w, "OK")
		ok++
	}
	return ok, failed, nil
}
