package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sikbang/recipe-harvester/internal/crawler"
)

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path      string `mapstructure:"path" yaml:"path"`
	EnableWAL bool   `mapstructure:"enable_wal" yaml:"enable_wal"`
}

// SQLiteBackend persists rows into a single SQLite file. It is the
// single-machine alternative to the CSV files when the dataset outgrows
// whole-file rewrites.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (creating if needed) the database and its schema.
func NewSQLiteBackend(cfg SQLiteConfig) (*SQLiteBackend, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite supports a single writer; the merger serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if cfg.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS recipes (
		recipe_id INTEGER PRIMARY KEY,
		recipe_index INTEGER NOT NULL,
		dish_type TEXT NOT NULL,
		situation TEXT NOT NULL,
		ingredient TEXT NOT NULL,
		method TEXT NOT NULL,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		views TEXT,
		author TEXT,
		servings TEXT,
		cook_time TEXT,
		difficulty TEXT,
		ingredients TEXT,
		intro TEXT,
		steps TEXT,
		hashtags TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_recipes_title ON recipes(title);

	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recipe_id INTEGER NOT NULL,
		recipe_index INTEGER NOT NULL,
		author TEXT,
		date TEXT,
		time TEXT,
		stars INTEGER,
		body TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_recipe ON reviews(recipe_id);
	`
	_, err := db.Exec(schema)
	return err
}

// AppendRecipes inserts the rows inside one transaction.
func (b *SQLiteBackend) AppendRecipes(ctx context.Context, recipes []crawler.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recipes (
			recipe_id, recipe_index,
			dish_type, situation, ingredient, method,
			title, url, views, author,
			servings, cook_time, difficulty,
			ingredients, intro, steps, hashtags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recipes {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Index,
			r.DishType, r.Situation, r.Ingredient, r.Method,
			r.Title, r.URL, r.Views, r.Author,
			r.Servings, r.CookTime, r.Difficulty,
			strings.Join(r.Ingredients, listSeparator),
			r.Intro,
			strings.Join(r.Steps, listSeparator),
			strings.Join(r.Hashtags, listSeparator),
		); err != nil {
			return fmt.Errorf("insert recipe %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// AppendReviews inserts the rows inside one transaction.
func (b *SQLiteBackend) AppendReviews(ctx context.Context, reviews []crawler.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reviews (recipe_id, recipe_index, author, date, time, stars, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rv := range reviews {
		if _, err := stmt.ExecContext(ctx,
			rv.RecipeID, rv.RecipeIndex, rv.Author, rv.Date, rv.Time, rv.Stars, rv.Body,
		); err != nil {
			return fmt.Errorf("insert review for recipe %d: %w", rv.RecipeID, err)
		}
	}
	return tx.Commit()
}

// RecipeCount reports the number of stored recipe rows.
func (b *SQLiteBackend) RecipeCount(ctx context.Context) (int64, error) {
	var count int64
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recipes").Scan(&count); err != nil {
		return 0, fmt.Errorf("count recipes: %w", err)
	}
	return count, nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
