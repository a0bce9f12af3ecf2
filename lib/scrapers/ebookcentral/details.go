package ebookcentral

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"libassist-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

var ErrLoginRequired = errors.New("Login required")

// GetBookDetails scrapes the detail page for a single document. Unlike
// search and download this is a plain scraping call consumed by the
// embedding application for display, so it reports failures as errors.
func (c *Client) GetBookDetails(ctx context.Context, docId string) (BookDetails, error) {
	ctx, span := tracer.Start(ctx, "client:GetBookDetails")
	defer span.End()

	if !c.ensureLogin(ctx) {
		span.SetStatus(codes.Error, "login required")
		return BookDetails{}, ErrLoginRequired
	}

	detailUrl := c.detailUrl(docId)
	res, err := c.Http.R().
		SetContext(ctx).
		Get(detailUrl)
	if err != nil {
		span.RecordError(err)
		return BookDetails{}, err
	}
	if res.StatusCode() != http.StatusOK {
		return BookDetails{}, fmt.Errorf("detail page access failed: %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return BookDetails{}, err
	}

	title := htmlutil.CleanText(doc.Find("h1#bookTitle, h1.title").First())
	author := htmlutil.CleanText(doc.Find("div.authors, span.authors").First())

	metadata := map[string]string{}
	doc.Find("table.bookMetadata tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		key := strings.TrimSuffix(htmlutil.CleanText(cells.First()), ":")
		metadata[key] = htmlutil.CleanText(cells.Eq(1))
	})

	downloadAvailable := false
	button := doc.Find("button#downloadButton, a#downloadButton").First()
	if button.Length() > 0 && !button.HasClass("disabled") {
		downloadAvailable = true
	}

	downloadUrl := ""
	if downloadAvailable {
		downloadUrl = c.downloadUrlFor(docId)
	}

	return BookDetails{
		Title:             title,
		Author:            author,
		Metadata:          metadata,
		DownloadAvailable: downloadAvailable,
		DownloadUrl:       downloadUrl,
		ViewUrl:           detailUrl,
		BookId:            docId,
	}, nil
}
