// Package extractor pulls recipe and review records out of fetched pages.
//
// Selectors target the recipe site's listing and detail markup. Mandatory
// detail fields (title, views, author) fail the whole item; every optional
// field defaults independently on its own extraction failure.
package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/sikbang/recipe-harvester/internal/crawler"
)

const (
	listingTotalSelector = "#contents_area_full > ul > div > b"
	listingItemSelector  = "#contents_area_full > ul > ul > li > div.common_sp_thumb > a"

	detailTitleSelector  = "#contents_area_full > div.view2_summary.st3 > h3"
	detailViewsSelector  = "#contents_area_full > div.view2_pic > div.view_cate.st2 > div > span"
	detailAuthorSelector = "#contents_area_full > div.view2_pic > div.user_info2 > span"

	summaryInfoSelector = "#contents_area_full > div.view2_summary.st3 > div.view2_summary_info"
	ingredientsSelector = "#divConfirmedMaterialArea > ul"
	introSelector       = "#recipeIntro"
	hashtagSelector     = "#contents_area_full > div.view_step > div.view_tag"

	reviewSectionSelector     = "#contents_area_full > div.view_reply > div > div.media"
	reviewMoreSectionSelector = "#moreViewReviewList > div.media"

	starMarker = "icon_star2_on"
)

var nonDigits = regexp.MustCompile(`[^0-9]`)

// GoQuery implements crawler.Extractor on top of goquery documents.
type GoQuery struct {
	baseURL string
}

// New builds an extractor resolving relative detail links against baseURL.
func New(baseURL string) *GoQuery {
	return &GoQuery{baseURL: strings.TrimRight(baseURL, "/")}
}

// Listing extracts the total result count and the detail URLs of one
// listing page.
func (e *GoQuery) Listing(page crawler.Page) (int, []string, error) {
	doc, err := e.parse(page)
	if err != nil {
		return 0, nil, fmt.Errorf("parse listing: %w", err)
	}

	totalText := strings.TrimSpace(doc.Find(listingTotalSelector).First().Text())
	totalText = strings.ReplaceAll(totalText, ",", "")
	total, err := strconv.Atoi(totalText)
	if err != nil {
		return 0, nil, fmt.Errorf("parse listing total %q: %w", totalText, err)
	}

	var urls []string
	doc.Find(listingItemSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		if strings.HasPrefix(href, "http") {
			urls = append(urls, href)
			return
		}
		urls = append(urls, e.baseURL+href)
	})
	return total, urls, nil
}

// Detail extracts one recipe from a detail page. Only the content fields
// are filled; the caller stamps the per-unit index and axis labels.
func (e *GoQuery) Detail(page crawler.Page) (crawler.Recipe, error) {
	doc, err := e.parse(page)
	if err != nil {
		return crawler.Recipe{}, fmt.Errorf("parse detail: %w", err)
	}

	title := strings.TrimSpace(doc.Find(detailTitleSelector).First().Text())
	views := strings.TrimSpace(doc.Find(detailViewsSelector).First().Text())
	author := strings.TrimSpace(doc.Find(detailAuthorSelector).First().Text())
	if title == "" || views == "" || author == "" {
		return crawler.Recipe{}, fmt.Errorf("mandatory fields missing (title=%t views=%t author=%t)",
			title != "", views != "", author != "")
	}

	recipe := crawler.Recipe{
		Title:  title,
		URL:    page.URL,
		Views:  views,
		Author: author,
	}

	e.summaryInfo(doc, &recipe)
	recipe.Ingredients = e.ingredients(doc)
	recipe.Intro = strings.TrimSpace(doc.Find(introSelector).First().Text())
	recipe.Steps = e.steps(doc)
	recipe.Hashtags = e.hashtags(doc)
	return recipe, nil
}

// summaryInfo fills servings, cook time and difficulty. The three spans
// come and go together on the site, so a missing block zeroes all three.
func (e *GoQuery) summaryInfo(doc *goquery.Document, recipe *crawler.Recipe) {
	info := doc.Find(summaryInfoSelector).First()
	if info.Length() == 0 {
		return
	}
	servings := strings.TrimSpace(info.Find("span.view2_summary_info1").First().Text())
	recipe.Servings = nonDigits.ReplaceAllString(servings, "")
	recipe.CookTime = strings.TrimSpace(info.Find("span.view2_summary_info2").First().Text())
	recipe.Difficulty = strings.TrimSpace(info.Find("span.view2_summary_info3").First().Text())
}

func (e *GoQuery) ingredients(doc *goquery.Document) []string {
	var out []string
	doc.Find(ingredientsSelector).Each(func(_ int, ul *goquery.Selection) {
		ul.Find("li").Each(func(_ int, li *goquery.Selection) {
			lines := nonEmptyLines(li.Text())
			switch {
			case len(lines) >= 2:
				out = append(out, lines[0]+" "+lines[1])
			case len(lines) == 1:
				out = append(out, lines[0])
			}
		})
	})
	return out
}

func (e *GoQuery) steps(doc *goquery.Document) []string {
	var out []string
	for process := 1; ; process++ {
		sel := doc.Find(fmt.Sprintf("#stepdescr%d", process)).First()
		if sel.Length() == 0 {
			break
		}
		out = append(out, fmt.Sprintf("%d. %s", process, strings.TrimSpace(sel.Text())))
	}
	return out
}

func (e *GoQuery) hashtags(doc *goquery.Document) []string {
	var out []string
	doc.Find(hashtagSelector).First().Find("a").Each(func(_ int, a *goquery.Selection) {
		tag := strings.TrimSpace(a.Text())
		tag = strings.TrimPrefix(tag, "#")
		if tag != "" {
			out = append(out, tag)
		}
	})
	return out
}

// Reviews extracts review records from the visible section first, then the
// "show more" section, in document order. An unparseable entry is skipped.
func (e *GoQuery) Reviews(page crawler.Page) []crawler.Review {
	doc, err := e.parse(page)
	if err != nil {
		return nil
	}

	var out []crawler.Review
	for _, selector := range []string{reviewSectionSelector, reviewMoreSectionSelector} {
		doc.Find(selector).Each(func(_ int, media *goquery.Selection) {
			if review, ok := e.review(media); ok {
				out = append(out, review)
			}
		})
	}
	return out
}

func (e *GoQuery) review(media *goquery.Selection) (crawler.Review, bool) {
	author := strings.TrimSpace(media.Find("b").First().Text())
	heading := strings.Fields(strings.TrimSpace(media.Find("h4").First().Text()))
	if author == "" || len(heading) < 2 {
		return crawler.Review{}, false
	}

	// The heading ends with "<date> <time>"; the star rating is the number
	// of lit star icons, not a printed digit.
	spanHTML, _ := goquery.OuterHtml(media.Find("span").First())
	return crawler.Review{
		Author: author,
		Date:   heading[len(heading)-2],
		Time:   heading[len(heading)-1],
		Stars:  strings.Count(spanHTML, starMarker),
		Body:   strings.TrimSpace(media.Find("p").First().Text()),
	}, true
}

func (e *GoQuery) parse(page crawler.Page) (*goquery.Document, error) {
	data := page.Body
	enc, _, _ := charset.DetermineEncoding(data, "text/html")
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("decode page: %w", err)
		}
		decoded = data
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("build document: %w", err)
	}
	return doc, nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
