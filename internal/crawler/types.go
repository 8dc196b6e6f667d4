// Package crawler defines core types shared across subsystems.
package crawler

import "fmt"

// AxisValue is one entry of a filter axis: a human-readable label and the
// query code the site expects for it.
type AxisValue struct {
	Label string
	Code  string
}

// WorkUnit is one fully-specified combination of the four category filters.
// It is immutable once enumerated and consumed by exactly one worker.
type WorkUnit struct {
	DishType   AxisValue
	Situation  AxisValue
	Ingredient AxisValue
	Method     AxisValue
}

// Key uniquely identifies the unit by its 4-tuple of codes.
func (u WorkUnit) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s", u.Method.Code, u.Situation.Code, u.Ingredient.Code, u.DishType.Code)
}

// Recipe is one scraped recipe detail page.
//
// Index is sequential within the originating work unit, starting at 1, and
// matches the source crawler's per-combination numbering (indices collide
// across units). ID is assigned by the merger under its lock and is unique
// across the whole store.
type Recipe struct {
	ID    int64
	Index int

	DishType   string
	Situation  string
	Ingredient string
	Method     string

	Title  string
	URL    string
	Views  string
	Author string

	Servings    string
	CookTime    string
	Difficulty  string
	Ingredients []string
	Intro       string
	Steps       []string
	Hashtags    []string
}

// Review is a child record of a Recipe. RecipeIndex references the parent by
// its per-unit index; RecipeID is the remapped global ID, filled by the
// merger alongside the parent's.
type Review struct {
	RecipeID    int64
	RecipeIndex int

	Author string
	Date   string
	Time   string
	Stars  int
	Body   string
}

// Batch is the accumulated output of one work unit, handed to the merger as
// a whole.
type Batch struct {
	Unit    WorkUnit
	Recipes []Recipe
	Reviews []Review
}

// Empty reports whether the batch carries no rows at all.
func (b Batch) Empty() bool {
	return len(b.Recipes) == 0 && len(b.Reviews) == 0
}

// Page is the raw content of a fetched page.
type Page struct {
	URL  string
	Body []byte
}
