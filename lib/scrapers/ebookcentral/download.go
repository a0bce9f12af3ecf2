package ebookcentral

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"libassist-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const downloadChunkSize = 1024

// DownloadBook drives the portal's multi-step download protocol: fetch
// the download page, submit the format-selection form, then follow the
// confirmation page's link (or second form) to the actual file. The
// four steps run strictly in sequence and the first failure is
// terminal. No file is created before step four succeeds.
func (c *Client) DownloadBook(ctx context.Context, downloadUrl, bookId, outputPath string, onProgress ProgressFunc) DownloadOutcome {
	ctx, span := tracer.Start(ctx, "client:DownloadBook")
	defer span.End()

	if !c.ensureLogin(ctx) {
		span.SetStatus(codes.Error, "login required")
		return DownloadOutcome{Message: "Login required"}
	}

	c.report(ctx, LevelInfo, "starting download", map[string]any{
		"url":     downloadUrl,
		"book_id": bookId,
	})

	// step 1: the download page
	page, err := c.Http.R().
		SetContext(ctx).
		Get(downloadUrl)
	if err != nil {
		span.RecordError(err)
		return c.downloadError(ctx, errorMessage(err, "Download"), "")
	}
	if page.StatusCode() != http.StatusOK {
		return c.downloadError(ctx, fmt.Sprintf("Download page access failed: %d", page.StatusCode()), "")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body()))
	if err != nil {
		return c.downloadError(ctx, errorMessage(err, "Download"), "")
	}

	// step 2: the download-options form
	form := findDownloadForm(doc)
	if form == nil {
		return c.downloadError(ctx, "Could not find download form", page.String())
	}
	submission := parseDownloadForm(form, downloadUrl)
	if submission.Action == "" {
		submission.Action = downloadUrl
	}
	// some revisions of the page omit the document id field
	if _, ok := submission.Fields["docID"]; !ok && bookId != "" {
		submission.Fields["docID"] = bookId
	}

	// step 3: confirm format selection
	confirm, err := c.submitForm(ctx, submission, false)
	if err != nil {
		span.RecordError(err)
		return c.downloadError(ctx, errorMessage(err, "Download"), "")
	}
	if confirm.StatusCode() != http.StatusOK {
		return c.downloadError(ctx, fmt.Sprintf("Download confirmation failed: %d", confirm.StatusCode()), "")
	}
	confirmUrl := finalUrl(confirm)

	confirmDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(confirm.Body()))
	if err != nil {
		return c.downloadError(ctx, errorMessage(err, "Download"), "")
	}

	// step 4: the actual file, behind either a plain link or a second
	// form submission
	var fileRes *resty.Response
	if href := findDownloadAnchor(confirmDoc); href != "" {
		target := htmlutil.ResolveURL(confirmUrl, href)
		c.report(ctx, LevelDebug, "following download link", map[string]any{"url": target})
		fileRes, err = c.Http.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			Get(target)
	} else if fallback := findDownloadForm(confirmDoc); fallback != nil {
		sub := parseDownloadForm(fallback, confirmUrl)
		if sub.Action == "" {
			return c.downloadError(ctx, "Could not find download action", confirm.String())
		}
		c.report(ctx, LevelDebug, "submitting confirmation form", map[string]any{"url": sub.Action})
		fileRes, err = c.submitForm(ctx, sub, true)
	} else {
		return c.downloadError(ctx, "Could not find download link or form", confirm.String())
	}
	if err != nil {
		span.RecordError(err)
		return c.downloadError(ctx, errorMessage(err, "Download"), "")
	}

	body := fileRes.RawBody()
	defer body.Close()
	if fileRes.StatusCode() != http.StatusOK {
		return c.downloadError(ctx, fmt.Sprintf("File download failed: %d", fileRes.StatusCode()), "")
	}

	ext := extensionFor(fileRes.Header().Get("content-type"))
	finalPath := withExtension(outputPath, ext)

	if dir := filepath.Dir(finalPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return c.downloadError(ctx, err.Error(), "")
		}
	}
	file, err := os.Create(finalPath)
	if err != nil {
		return c.downloadError(ctx, err.Error(), "")
	}

	var total int64
	if fileRes.RawResponse != nil {
		total = fileRes.RawResponse.ContentLength
	}
	written, err := copyChunks(file, body, downloadChunkSize, total, onProgress)
	closeErr := file.Close()
	if err != nil {
		return c.downloadError(ctx, errorMessage(err, "Download"), "")
	}
	if closeErr != nil {
		return c.downloadError(ctx, closeErr.Error(), "")
	}

	format := strings.ToUpper(strings.TrimPrefix(ext, "."))
	c.report(ctx, LevelInfo, "download complete", map[string]any{
		"path":   finalPath,
		"bytes":  written,
		"format": format,
	})
	return DownloadOutcome{
		Success:  true,
		FilePath: finalPath,
		Format:   format,
	}
}

func (c *Client) submitForm(ctx context.Context, sub formSubmission, stream bool) (*resty.Response, error) {
	req := c.Http.R().SetContext(ctx)
	if stream {
		req.SetDoNotParseResponse(true)
	}
	if sub.Method == "get" {
		return req.SetQueryParams(sub.Fields).Get(sub.Action)
	}
	return req.SetFormData(sub.Fields).Post(sub.Action)
}

func (c *Client) downloadError(ctx context.Context, message, body string) DownloadOutcome {
	data := map[string]any{"message": message}
	if body != "" {
		data["body"] = bodySnippet(body)
	}
	c.report(ctx, LevelError, "download failed", data)
	return DownloadOutcome{Message: message}
}

func extensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return ".pdf"
	case strings.Contains(ct, "epub"):
		return ".epub"
	default:
		return ".bin"
	}
}

// stable across repeated calls: the same output path and content type
// always produce the same final path
func withExtension(path, ext string) string {
	if strings.HasSuffix(strings.ToLower(path), ext) {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
