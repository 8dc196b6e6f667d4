package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sikbang/recipe-harvester/internal/crawler"
)

var recipeHeader = []string{
	"recipe_id", "recipe_index",
	"dish_type", "situation", "ingredient", "method",
	"title", "url", "views", "author",
	"servings", "cook_time", "difficulty",
	"ingredients", "intro", "steps", "hashtags",
}

var reviewHeader = []string{
	"recipe_id", "recipe_index", "author", "date", "time", "stars", "body",
}

// listSeparator joins multi-valued fields (ingredients, steps, hashtags)
// into a single CSV cell.
const listSeparator = "\n"

// CSVConfig names the two output files of the CSV backend.
type CSVConfig struct {
	RecipesPath string `mapstructure:"recipes_path" yaml:"recipes_path"`
	ReviewsPath string `mapstructure:"reviews_path" yaml:"reviews_path"`
}

// CSVBackend persists rows into two CSV files by merging: each append reads
// the existing file, concatenates the new rows and rewrites the whole file
// through a temp file and rename. The files survive partial runs and later
// runs keep appending to them.
type CSVBackend struct {
	recipesPath string
	reviewsPath string
}

// NewCSVBackend validates the configured paths and creates their parent
// directories.
func NewCSVBackend(cfg CSVConfig) (*CSVBackend, error) {
	if strings.TrimSpace(cfg.RecipesPath) == "" {
		return nil, fmt.Errorf("recipes path is required")
	}
	if strings.TrimSpace(cfg.ReviewsPath) == "" {
		return nil, fmt.Errorf("reviews path is required")
	}
	if cfg.RecipesPath == cfg.ReviewsPath {
		return nil, fmt.Errorf("recipes and reviews must be distinct files")
	}
	for _, p := range []string{cfg.RecipesPath, cfg.ReviewsPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create output directory: %w", err)
			}
		}
	}
	return &CSVBackend{recipesPath: cfg.RecipesPath, reviewsPath: cfg.ReviewsPath}, nil
}

// AppendRecipes merges the rows into the recipes file.
func (b *CSVBackend) AppendRecipes(_ context.Context, recipes []crawler.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(recipes))
	for _, r := range recipes {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			strconv.Itoa(r.Index),
			r.DishType, r.Situation, r.Ingredient, r.Method,
			r.Title, r.URL, r.Views, r.Author,
			r.Servings, r.CookTime, r.Difficulty,
			strings.Join(r.Ingredients, listSeparator),
			r.Intro,
			strings.Join(r.Steps, listSeparator),
			strings.Join(r.Hashtags, listSeparator),
		})
	}
	return mergeAppend(b.recipesPath, recipeHeader, rows)
}

// AppendReviews merges the rows into the reviews file.
func (b *CSVBackend) AppendReviews(_ context.Context, reviews []crawler.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(reviews))
	for _, rv := range reviews {
		rows = append(rows, []string{
			strconv.FormatInt(rv.RecipeID, 10),
			strconv.Itoa(rv.RecipeIndex),
			rv.Author, rv.Date, rv.Time,
			strconv.Itoa(rv.Stars),
			rv.Body,
		})
	}
	return mergeAppend(b.reviewsPath, reviewHeader, rows)
}

// RecipeCount counts the data rows already present in the recipes file. A
// missing file counts as zero.
func (b *CSVBackend) RecipeCount(_ context.Context) (int64, error) {
	existing, err := readRows(b.recipesPath, len(recipeHeader))
	if err != nil {
		return 0, err
	}
	return int64(len(existing)), nil
}

// Close is a no-op: every append leaves the files fully written.
func (b *CSVBackend) Close() error { return nil }

// mergeAppend rewrites path with its current data rows followed by the new
// ones. The rewrite goes through a temp file in the same directory so a
// crash mid-write never truncates the previous contents.
func mergeAppend(path string, header []string, rows [][]string) error {
	existing, err := readRows(path, len(header))
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(existing); err != nil {
		return fmt.Errorf("rewrite existing rows: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write new rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// readRows loads the data rows of path, skipping the header. A missing
// file yields no rows; a malformed file is an error.
func readRows(path string, fields int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}
