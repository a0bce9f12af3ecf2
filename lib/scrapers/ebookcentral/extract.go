package ebookcentral

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"libassist-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// A searchExtractor is one strategy in the fallback chain for pulling a
// usable result out of the rendered search page. Returning nil hands
// off to the next strategy; the last strategy in the chain is terminal
// and always produces a result.
type searchExtractor interface {
	name() string
	tryExtract(ctx context.Context, c *Client, body string, q searchQuery) *SearchResult
}

var searchExtractors = []searchExtractor{
	embeddedScriptExtractor{},
	resultListExtractor{},
}

var searchResultsJSONRegex = regexp.MustCompile(`(?s)searchResultsJSON\s*=\s*(\{.*?\});`)

// embeddedScriptExtractor recovers the search payload the page embeds
// for its own client-side rendering. The blob has the same shape as the
// api response, so both share the parsing logic.
type embeddedScriptExtractor struct{}

func (embeddedScriptExtractor) name() string { return "embedded-script" }

func (embeddedScriptExtractor) tryExtract(ctx context.Context, c *Client, body string, q searchQuery) *SearchResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var result *SearchResult
	doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
		text := script.Text()
		if !strings.Contains(text, "searchResultsJSON") {
			return true
		}
		groups := searchResultsJSONRegex.FindStringSubmatch(text)
		if len(groups) < 2 {
			return true
		}

		var data apiSearchResponse
		if err := json.Unmarshal([]byte(groups[1]), &data); err != nil {
			c.report(ctx, LevelDebug, "embedded search blob did not parse", map[string]any{
				"err": err.Error(),
			})
			return true
		}
		if len(data.Titles) == 0 {
			return true
		}

		r := c.resultFromApi(ctx, data, q)
		result = &r
		return false
	})
	return result
}

// resultListExtractor walks the static result markup. It is the last
// resort and therefore terminal: a missing container plus a "no
// results" marker is NotFound, a missing container without one means
// the page shape is unknown and the search errors out.
type resultListExtractor struct{}

func (resultListExtractor) name() string { return "result-list" }

func (resultListExtractor) tryExtract(ctx context.Context, c *Client, body string, q searchQuery) *SearchResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		r := q.errorResult("Unable to extract search results from page")
		return &r
	}

	container := doc.Find("div.book-results-container").First()
	if container.Length() == 0 {
		if doc.Find("div.no-results").Length() > 0 {
			r := q.notFoundResult()
			return &r
		}
		c.report(ctx, LevelError, "search page has neither results nor a no-results marker", map[string]any{
			"body": bodySnippet(body),
		})
		r := q.errorResult("Unable to extract search results from page")
		return &r
	}

	item := container.Find("div.book-item, div.search-result-item").First()
	if item.Length() == 0 {
		r := q.notFoundResult()
		return &r
	}

	id := item.AttrOr("data-id", "")
	title := htmlutil.CleanText(item.Find("h2.title, div.title").First())
	author := htmlutil.CleanText(item.Find("div.authors, span.authors").First())

	downloadable := true
	button := item.Find("button.download-button, a.download-button").First()
	if button.Length() == 0 || button.HasClass("disabled") {
		downloadable = false
	}

	result := c.resultFromTitle(apiTitle{
		Id:                looseString(id),
		Title:             title,
		DownloadAvailable: downloadable,
	}, q)
	if author != "" {
		result.Author = author
	}
	return &result
}
