package ebookcentral

import (
	"regexp"
	"strings"

	"libassist-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// both the download-options page and the confirmation page carry their
// form under the same conventional id/name
func findDownloadForm(doc *goquery.Document) *goquery.Selection {
	form := doc.Find("form#downloadForm").First()
	if form.Length() == 0 {
		form = doc.Find(`form[name=downloadForm]`).First()
	}
	if form.Length() == 0 {
		return nil
	}
	return form
}

type formSubmission struct {
	// empty when the form declared no action; callers decide whether
	// that is a fallback or a failure
	Action string
	Method string
	Fields map[string]string
}

// parseDownloadForm builds a submittable payload from every input and
// select in the form. A field named "format" prefers a PDF option over
// anything else; other selects take their first option. Relative
// actions are resolved against the page the form was found on.
func parseDownloadForm(form *goquery.Selection, pageUrl string) formSubmission {
	action := strings.TrimSpace(form.AttrOr("action", ""))
	if action != "" {
		action = htmlutil.ResolveURL(pageUrl, action)
	}
	method := strings.ToLower(form.AttrOr("method", "post"))
	if method != "get" {
		method = "post"
	}

	fields := map[string]string{}
	form.Find("input, select").Each(func(_ int, el *goquery.Selection) {
		name := strings.TrimSpace(el.AttrOr("name", ""))
		if name == "" {
			return
		}
		value := el.AttrOr("value", "")

		isSelect := goquery.NodeName(el) == "select"
		if name == "format" {
			if v, ok := pdfOptionValue(el); ok {
				value = v
			} else if isSelect {
				value = firstOptionValue(el)
			}
		} else if isSelect {
			value = firstOptionValue(el)
		}

		fields[name] = value
	})

	return formSubmission{Action: action, Method: method, Fields: fields}
}

var pdfTextRegex = regexp.MustCompile(`(?i)pdf`)

func pdfOptionValue(el *goquery.Selection) (string, bool) {
	opt := el.Find("option[value=pdf]").First()
	if opt.Length() > 0 {
		return opt.AttrOr("value", "pdf"), true
	}

	value := ""
	found := false
	el.Find("option").EachWithBreak(func(_ int, o *goquery.Selection) bool {
		if pdfTextRegex.MatchString(o.Text()) {
			value = o.AttrOr("value", "pdf")
			found = true
			return false
		}
		return true
	})
	return value, found
}

func firstOptionValue(el *goquery.Selection) string {
	return el.Find("option").First().AttrOr("value", "")
}

var downloadLinkPhrases = []string{"download", "get book", "get pdf", "get epub"}

// findDownloadAnchor returns the href of the first plain hyperlink
// whose visible text reads like a download action.
func findDownloadAnchor(doc *goquery.Document) string {
	href := ""
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.ToLower(htmlutil.CleanText(a))
		for _, phrase := range downloadLinkPhrases {
			if strings.Contains(text, phrase) {
				href = a.AttrOr("href", "")
				// keep scanning if the matching link carries no href
				return href == ""
			}
		}
		return true
	})
	return href
}
