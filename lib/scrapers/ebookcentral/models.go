package ebookcentral

import "encoding/json"

// Status classifies the outcome of a catalog search. Zero results is a
// first-class NotFound, distinct from Error.
type Status string

const (
	StatusFound    Status = "Found"
	StatusNotFound Status = "Not Found"
	StatusError    Status = "Error"
)

// SearchResult is the single best match for a search. Title and Author
// always carry at least the original query terms so the caller can
// correlate results with requests. DownloadUrl is empty whenever the
// portal reports the document as not downloadable in full.
type SearchResult struct {
	Status      Status
	Title       string
	Author      string
	Format      string
	ViewUrl     string
	DownloadUrl string
	BookId      string
	Publisher   string
	Year        string
	Message     string
}

// DownloadOutcome reports the result of the multi-step download
// protocol. FilePath carries the final path with the extension inferred
// from the response content type.
type DownloadOutcome struct {
	Success  bool
	FilePath string
	Format   string
	Message  string
}

// BookDetails is the scraped detail page for a single document.
type BookDetails struct {
	Title             string
	Author            string
	Metadata          map[string]string
	DownloadAvailable bool
	DownloadUrl       string
	ViewUrl           string
	BookId            string
}

// ProgressFunc receives download progress after each written chunk. It
// is only invoked when the server declared a content length, and
// received is monotonically increasing across calls.
type ProgressFunc func(received, total int64)

// the search api has been observed returning docIDs and years both as
// strings and as bare numbers
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = looseString(num.String())
	return nil
}

type apiTitle struct {
	Id                looseString `json:"id"`
	Title             string      `json:"title"`
	Authors           []string    `json:"authors"`
	Publisher         string      `json:"publisher"`
	PublicationYear   looseString `json:"publicationYear"`
	DownloadAvailable bool        `json:"downloadAvailable"`
}

type apiSearchResponse struct {
	TotalCount int        `json:"totalCount"`
	Titles     []apiTitle `json:"titles"`
}
