package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sikbang/recipe-harvester/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool of the Postgres backend.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	RecipesTable    string        `mapstructure:"recipes_table" yaml:"recipes_table"`
	ReviewsTable    string        `mapstructure:"reviews_table" yaml:"reviews_table"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresBackend appends rows into Postgres, for deployments where several
// crawler hosts share one store.
type PostgresBackend struct {
	pool         pgxPool
	recipesTable string
	reviewsTable string
}

// NewPostgresBackend creates a Postgres-backed store using the provided config.
func NewPostgresBackend(ctx context.Context, cfg PostgresConfig) (*PostgresBackend, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresBackendWithPool(pool, cfg.RecipesTable, cfg.ReviewsTable)
}

// NewPostgresBackendWithPool constructs a backend from an existing pool
// (primarily for testing).
func NewPostgresBackendWithPool(pool pgxPool, recipesTable, reviewsTable string) (*PostgresBackend, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if recipesTable == "" {
		recipesTable = "recipes"
	}
	if reviewsTable == "" {
		reviewsTable = "reviews"
	}
	for _, table := range []string{recipesTable, reviewsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &PostgresBackend{
		pool:         pool,
		recipesTable: recipesTable,
		reviewsTable: reviewsTable,
	}, nil
}

// AppendRecipes inserts the rows one by one. The merger's lock already
// serializes whole batches, so per-row statements are sufficient.
func (b *PostgresBackend) AppendRecipes(ctx context.Context, recipes []crawler.Recipe) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	recipe_id, recipe_index,
	dish_type, situation, ingredient, method,
	title, url, views, author,
	servings, cook_time, difficulty,
	ingredients, intro, steps, hashtags
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`, b.recipesTable)

	for _, r := range recipes {
		if _, err := b.pool.Exec(ctx, query,
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
	return nil
}

// AppendReviews inserts the rows one by one.
func (b *PostgresBackend) AppendReviews(ctx context.Context, reviews []crawler.Review) error {
	query := fmt.Sprintf(`
INSERT INTO %s (recipe_id, recipe_index, author, date, time, stars, body)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, b.reviewsTable)

	for _, rv := range reviews {
		if _, err := b.pool.Exec(ctx, query,
			rv.RecipeID, rv.RecipeIndex, rv.Author, rv.Date, rv.Time, rv.Stars, rv.Body,
		); err != nil {
			return fmt.Errorf("insert review for recipe %d: %w", rv.RecipeID, err)
		}
	}
	return nil
}

// RecipeCount reports the number of stored recipe rows.
func (b *PostgresBackend) RecipeCount(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", b.recipesTable)
	if err := b.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recipes: %w", err)
	}
	return count, nil
}

// Close releases the underlying pool resources.
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
