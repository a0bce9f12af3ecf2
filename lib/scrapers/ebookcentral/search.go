package ebookcentral

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/codes"
)

type searchQuery struct {
	Title  string
	Author string
}

func (q searchQuery) terms() string {
	if q.Author == "" {
		return q.Title
	}
	return q.Title + " " + q.Author
}

func (q searchQuery) errorResult(message string) SearchResult {
	return SearchResult{
		Status:  StatusError,
		Title:   q.Title,
		Author:  q.Author,
		Message: message,
	}
}

func (q searchQuery) notFoundResult() SearchResult {
	return SearchResult{
		Status: StatusNotFound,
		Title:  q.Title,
		Author: q.Author,
	}
}

// SearchBook looks the title up in the catalog and returns the single
// best match. Zero matches is StatusNotFound; every failure mode maps
// to StatusError with a message, never a panic or returned error.
func (c *Client) SearchBook(ctx context.Context, title, author string) SearchResult {
	ctx, span := tracer.Start(ctx, "client:SearchBook")
	defer span.End()

	q := searchQuery{Title: title, Author: author}

	if !c.ensureLogin(ctx) {
		span.SetStatus(codes.Error, "login required")
		return q.errorResult("Login required")
	}

	c.report(ctx, LevelInfo, "searching catalog", map[string]any{
		"title":  title,
		"author": author,
	})

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("accept", "application/json").
		SetHeader("referer", c.searchPageUrl(q)).
		SetQueryParams(map[string]string{
			"query":     q.terms(),
			"libraryId": c.opts.LibraryId,
			"pageNo":    "1",
			"pageSize":  "10",
			"sortBy":    "score",
		}).
		Get("/ebc/api/search")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search api request failed")
		return q.errorResult(errorMessage(err, "Search"))
	}

	if res.StatusCode() == http.StatusOK {
		var data apiSearchResponse
		if err := json.Unmarshal(res.Body(), &data); err != nil {
			// a 200 with an unparseable body is an api regression,
			// scraping the page instead would just hide it
			span.SetStatus(codes.Error, "unparseable search api response")
			c.report(ctx, LevelError, "search api returned unparseable json", map[string]any{
				"err":  err.Error(),
				"body": bodySnippet(res.String()),
			})
			return q.errorResult(fmt.Sprintf("Error parsing results: %s", err.Error()))
		}
		result := c.resultFromApi(ctx, data, q)
		c.report(ctx, LevelInfo, "search api answered", map[string]any{
			"status":  string(result.Status),
			"book_id": result.BookId,
		})
		return result
	}

	c.report(ctx, LevelWarning, "search api unavailable, scraping rendered page", map[string]any{
		"status": res.StatusCode(),
	})

	page, err := c.Http.R().
		SetContext(ctx).
		Get(c.searchPageUrl(q))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search page request failed")
		return q.errorResult(errorMessage(err, "Search"))
	}
	if page.StatusCode() != http.StatusOK {
		return q.errorResult(fmt.Sprintf("Search failed with status code: %d", page.StatusCode()))
	}

	body := page.String()
	for _, ex := range searchExtractors {
		result := ex.tryExtract(ctx, c, body, q)
		if result == nil {
			c.report(ctx, LevelDebug, "extractor yielded nothing", map[string]any{"extractor": ex.name()})
			continue
		}
		c.report(ctx, LevelInfo, "extractor answered", map[string]any{
			"extractor": ex.name(),
			"status":    string(result.Status),
		})
		return *result
	}

	// the structured-html extractor is terminal, so this is only
	// reachable when the page cannot be tokenized at all
	c.report(ctx, LevelError, "no extractor could interpret the search page", map[string]any{
		"body": bodySnippet(body),
	})
	return q.errorResult("Unable to extract search results from page")
}

// the rendered (angular) search page, also used as the referer for api
// calls so they look like they came from the app itself
func (c *Client) searchPageUrl(q searchQuery) string {
	params := url.Values{}
	params.Set("query", q.terms())
	params.Set("toChapter", "false")
	params.Set("sortBy", "score")
	params.Set("pageNo", "1")
	params.Set("pageSize", "10")
	params.Set("facetPublishedPageSize", "3")
	params.Set("facetCategoryPageSize", "5")
	params.Set("facetBisacSubjectPageSize", "5")
	params.Set("facetLanguagePageSize", "5")
	params.Set("facetAuthorPageSize", "5")
	// the portal routes search client-side, so the query lives in the
	// fragment and the server only ever sees /ebc/lib/<id>/
	return fmt.Sprintf(
		"%s/ebc/lib/%s/#/search?%s",
		strings.TrimSuffix(c.opts.BaseUrl, "/"), c.opts.LibraryId, params.Encode(),
	)
}

// shared by the api tier and the embedded-script extractor, which both
// see the same payload shape
func (c *Client) resultFromApi(ctx context.Context, data apiSearchResponse, q searchQuery) SearchResult {
	if data.TotalCount == 0 || len(data.Titles) == 0 {
		return q.notFoundResult()
	}
	return c.resultFromTitle(data.Titles[0], q)
}

func (c *Client) resultFromTitle(t apiTitle, q searchQuery) SearchResult {
	title := t.Title
	if title == "" {
		title = q.Title
	}
	author := strings.Join(t.Authors, "; ")
	if author == "" {
		author = q.Author
	}

	id := string(t.Id)
	downloadUrl := c.downloadUrlFor(id)
	if !t.DownloadAvailable {
		downloadUrl = ""
	}

	return SearchResult{
		Status:      StatusFound,
		Title:       title,
		Author:      author,
		Format:      "PDF/EPUB",
		ViewUrl:     c.detailUrl(id),
		DownloadUrl: downloadUrl,
		BookId:      id,
		Publisher:   t.Publisher,
		Year:        string(t.PublicationYear),
	}
}
