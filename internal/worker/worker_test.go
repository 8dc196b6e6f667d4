package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sikbang/recipe-harvester/internal/crawler"
)

var testUnit = crawler.WorkUnit{
	DishType:   crawler.AxisValue{Label: "찌개", Code: "55"},
	Situation:  crawler.AxisValue{Label: "일상", Code: "12"},
	Ingredient: crawler.AxisValue{Label: "육류", Code: "23"},
	Method:     crawler.AxisValue{Label: "끓이기", Code: "1"},
}

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]crawler.Page
	empties map[string]bool
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (crawler.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if f.empties[url] {
		return crawler.Page{}, crawler.ErrNoContent
	}
	page, ok := f.pages[url]
	if !ok {
		return crawler.Page{}, crawler.ErrNoContent
	}
	return page, nil
}

// fakeExtractor routes on markers embedded in the fake page bodies.
type fakeExtractor struct {
	total      int
	detailURLs map[string][]string // listing body marker -> urls
	failDetail map[string]bool     // detail body marker -> mandatory failure
	reviews    map[string]int      // detail body marker -> review count
}

func (e *fakeExtractor) Listing(page crawler.Page) (int, []string, error) {
	body := string(page.Body)
	if strings.Contains(body, "no-total") {
		return 0, nil, errors.New("parse listing total")
	}
	return e.total, e.detailURLs[body], nil
}

func (e *fakeExtractor) Detail(page crawler.Page) (crawler.Recipe, error) {
	body := string(page.Body)
	if e.failDetail[body] {
		return crawler.Recipe{}, errors.New("mandatory fields missing")
	}
	return crawler.Recipe{Title: "recipe " + body, URL: page.URL, Views: "1", Author: "chef"}, nil
}

func (e *fakeExtractor) Reviews(page crawler.Page) []crawler.Review {
	n := e.reviews[string(page.Body)]
	out := make([]crawler.Review, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, crawler.Review{Author: fmt.Sprintf("reviewer-%d", i), Stars: 5})
	}
	return out
}

type noPause struct{}

func (noPause) Pause(context.Context, time.Duration) {}

func testListingURL() string {
	w := New(nil, nil, noPause{}, nil, Config{BaseURL: "https://example.com"}, nil)
	return w.listingURL(testUnit)
}

func TestPageCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		total, want int
	}{
		{total: 0, want: 1},
		{total: 39, want: 1},
		{total: 40, want: 2},
		{total: 80, want: 3},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, PageCount(tc.total, 40), "total=%d", tc.total)
	}
}

func TestProcessEmptyListingYieldsEmptyBatch(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{empties: map[string]bool{testListingURL(): true}}
	w := New(fetcher, &fakeExtractor{}, noPause{}, nil, Config{BaseURL: "https://example.com"}, nil)

	batch, err := w.Process(context.Background(), testUnit)
	require.NoError(t, err)
	require.True(t, batch.Empty())
}

func TestProcessMissingTotalSkipsUnit(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]crawler.Page{
		testListingURL(): {Body: []byte("no-total")},
	}}
	w := New(fetcher, &fakeExtractor{}, noPause{}, nil, Config{BaseURL: "https://example.com"}, nil)

	batch, err := w.Process(context.Background(), testUnit)
	require.NoError(t, err)
	require.True(t, batch.Empty())
}

func TestProcessSingleListingPage(t *testing.T) {
	t.Parallel()

	listing := testListingURL()

	fetcher := &fakeFetcher{pages: map[string]crawler.Page{
		listing:    {Body: []byte("page1")},
		"detail-a": {URL: "detail-a", Body: []byte("a")},
		"detail-b": {URL: "detail-b", Body: []byte("b")},
	}}
	extractor := &fakeExtractor{
		total:      2,
		detailURLs: map[string][]string{"page1": {"detail-a", "detail-b"}},
		reviews:    map[string]int{"a": 2},
	}
	w := New(fetcher, extractor, noPause{}, nil, Config{BaseURL: "https://example.com", PageSize: 40}, nil)

	batch, err := w.Process(context.Background(), testUnit)
	require.NoError(t, err)

	require.Len(t, batch.Recipes, 2)
	require.Equal(t, 1, batch.Recipes[0].Index)
	require.Equal(t, 2, batch.Recipes[1].Index)
	require.Equal(t, "찌개", batch.Recipes[0].DishType)
	require.Equal(t, "일상", batch.Recipes[0].Situation)
	require.Equal(t, "육류", batch.Recipes[0].Ingredient)
	require.Equal(t, "끓이기", batch.Recipes[0].Method)

	require.Len(t, batch.Reviews, 2)
	for _, review := range batch.Reviews {
		require.Equal(t, 1, review.RecipeIndex)
	}

	// Page 1 content is reused: the listing is fetched exactly once.
	listingFetches := 0
	for _, url := range fetcher.fetched {
		if url == listing {
			listingFetches++
		}
	}
	require.Equal(t, 1, listingFetches)
}

func TestProcessPaginatesAndSkipsFailedPages(t *testing.T) {
	t.Parallel()

	listing := testListingURL()

	// total=80 -> 3 pages; page 2 fails, page 3 succeeds.
	fetcher := &fakeFetcher{
		pages: map[string]crawler.Page{
			listing:             {Body: []byte("page1")},
			listing + "&page=3": {Body: []byte("page3")},
			"detail-a":          {URL: "detail-a", Body: []byte("a")},
			"detail-c":          {URL: "detail-c", Body: []byte("c")},
		},
		empties: map[string]bool{listing + "&page=2": true},
	}
	extractor := &fakeExtractor{
		total: 80,
		detailURLs: map[string][]string{
			"page1": {"detail-a"},
			"page3": {"detail-c"},
		},
	}
	stats := &crawler.RunStats{}
	w := New(fetcher, extractor, noPause{}, stats, Config{BaseURL: "https://example.com", PageSize: 40}, nil)

	batch, err := w.Process(context.Background(), testUnit)
	require.NoError(t, err)
	require.Len(t, batch.Recipes, 2)
	require.EqualValues(t, 1, stats.PagesSkipped.Load())
}

func TestProcessSkipsItemsMissingMandatoryFields(t *testing.T) {
	t.Parallel()

	listing := testListingURL()

	fetcher := &fakeFetcher{pages: map[string]crawler.Page{
		listing:    {Body: []byte("page1")},
		"detail-a": {URL: "detail-a", Body: []byte("a")},
		"detail-x": {URL: "detail-x", Body: []byte("x")},
		"detail-b": {URL: "detail-b", Body: []byte("b")},
	}}
	extractor := &fakeExtractor{
		total:      3,
		detailURLs: map[string][]string{"page1": {"detail-a", "detail-x", "detail-b"}},
		failDetail: map[string]bool{"x": true},
	}
	stats := &crawler.RunStats{}
	w := New(fetcher, extractor, noPause{}, stats, Config{BaseURL: "https://example.com"}, nil)

	batch, err := w.Process(context.Background(), testUnit)
	require.NoError(t, err)

	// The skipped item consumes no index: siblings stay dense.
	require.Len(t, batch.Recipes, 2)
	require.Equal(t, 1, batch.Recipes[0].Index)
	require.Equal(t, 2, batch.Recipes[1].Index)
	require.EqualValues(t, 1, stats.ItemsSkipped.Load())
}

func TestProcessSkipsUnfetchableDetailPages(t *testing.T) {
	t.Parallel()

	listing := testListingURL()

	fetcher := &fakeFetcher{
		pages: map[string]crawler.Page{
			listing:    {Body: []byte("page1")},
			"detail-b": {URL: "detail-b", Body: []byte("b")},
		},
		empties: map[string]bool{"detail-a": true},
	}
	extractor := &fakeExtractor{
		total:      2,
		detailURLs: map[string][]string{"page1": {"detail-a", "detail-b"}},
	}
	w := New(fetcher, extractor, noPause{}, nil, Config{BaseURL: "https://example.com"}, nil)

	batch, err := w.Process(context.Background(), testUnit)
	require.NoError(t, err)
	require.Len(t, batch.Recipes, 1)
	require.Equal(t, "recipe b", batch.Recipes[0].Title)
}

func TestProcessStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(&fakeFetcher{}, &fakeExtractor{}, noPause{}, nil, Config{BaseURL: "https://example.com"}, nil)
	_, err := w.Process(ctx, testUnit)
	require.ErrorIs(t, err, context.Canceled)
}

func TestListingURLCarriesAllFourCodes(t *testing.T) {
	t.Parallel()

	w := New(nil, nil, noPause{}, nil, Config{BaseURL: "https://example.com"}, nil)
	url := w.listingURL(testUnit)

	require.Contains(t, url, "cat1=1")
	require.Contains(t, url, "cat2=12")
	require.Contains(t, url, "cat3=23")
	require.Contains(t, url, "cat4=55")
	require.True(t, strings.HasPrefix(url, "https://example.com/recipe/list.html?"))
}
