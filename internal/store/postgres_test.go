package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/sikbang/recipe-harvester/internal/crawler"
)

func TestPostgresBackendAppendRecipes(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b, err := NewPostgresBackendWithPool(mock, "recipes", "reviews")
	require.NoError(t, err)

	r := crawler.Recipe{
		ID: 1, Index: 1,
		DishType: "찌개", Situation: "일상", Ingredient: "육류", Method: "끓이기",
		Title: "김치찌개", URL: "https://example.com/1", Views: "12345", Author: "요리왕",
		Servings: "2", CookTime: "30분 이내", Difficulty: "아무나",
		Ingredients: []string{"김치", "두부"},
		Intro:       "얼큰한 찌개",
		Steps:       []string{"1. 끓인다"},
		Hashtags:    []string{"김치찌개"},
	}

	mock.ExpectExec("INSERT INTO recipes").
		WithArgs(
			r.ID, r.Index,
			r.DishType, r.Situation, r.Ingredient, r.Method,
			r.Title, r.URL, r.Views, r.Author,
			r.Servings, r.CookTime, r.Difficulty,
			"김치\n두부", r.Intro, "1. 끓인다", "김치찌개",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, b.AppendRecipes(context.Background(), []crawler.Recipe{r}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendAppendReviews(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b, err := NewPostgresBackendWithPool(mock, "", "")
	require.NoError(t, err)

	rv := crawler.Review{RecipeID: 7, RecipeIndex: 1, Author: "맛잘알", Date: "2024-03-01", Time: "12:30", Stars: 5, Body: "최고"}

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.RecipeID, rv.RecipeIndex, rv.Author, rv.Date, rv.Time, rv.Stars, rv.Body).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, b.AppendReviews(context.Background(), []crawler.Review{rv}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendRecipeCount(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b, err := NewPostgresBackendWithPool(mock, "recipes", "reviews")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	count, err := b.RecipeCount(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 42, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackendRejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresBackendWithPool(mock, "recipes; DROP TABLE recipes", "reviews")
	require.Error(t, err)
}
