package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"restaurant_pos/pkg/utils"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// InitDB opens the connection pool and applies the schema file when one is given.
func InitDB(ctx context.Context, connStr, schemaPath string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	utils.LogInfo("Successfully connected to the database")

	if err := applySchema(ctx, db, schemaPath); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// applySchema reads and executes the schema file.
func applySchema(ctx context.Context, db *sql.DB, schemaPath string) error {
	if schemaPath == "" {
		utils.LogDebug("No schema path provided, skipping schema application")
		return nil
	}
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("could not read schema file %s: %w", schemaPath, err)
	}

	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("could not execute schema script: %w", err)
	}
	utils.LogInfo("Database schema applied successfully")
	return nil
}
