package ebookcentral

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const downloadOptionsPage = `<html><body>
<form id="downloadForm" action="/download/confirm" method="post">
	<input type="hidden" name="token" value="abc123"/>
	<select name="format">
		<option value="epub">EPUB</option>
		<option value="pdf">PDF</option>
	</select>
</form>
</body></html>`

func TestDownloadBookViaLink(t *testing.T) {
	fileBody := bytes.Repeat([]byte("x"), 10000)

	mux := http.NewServeMux()
	mux.HandleFunc("/download/start", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, downloadOptionsPage)
	})
	var confirmForm map[string]string
	mux.HandleFunc("/download/confirm", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		confirmForm = map[string]string{
			"token":  r.FormValue("token"),
			"format": r.FormValue("format"),
			"docID":  r.FormValue("docID"),
		}
		fmt.Fprint(w, `<html><body><a href="/download/file">Download your book</a></body></html>`)
	})
	mux.HandleFunc("/download/file", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/pdf")
		w.Header().Set("content-length", fmt.Sprint(len(fileBody)))
		w.Write(fileBody)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "", "")
	outputPath := filepath.Join(t.TempDir(), "book")

	var calls int
	var lastReceived, lastTotal int64
	var deltas int64
	outcome := client.DownloadBook(
		context.Background(), srv.URL+"/download/start", "4242", outputPath,
		func(received, total int64) {
			calls++
			deltas += received - lastReceived
			lastReceived = received
			lastTotal = total
		},
	)

	require.True(t, outcome.Success, outcome.Message)
	require.Equal(t, outputPath+".pdf", outcome.FilePath)
	require.Equal(t, "PDF", outcome.Format)
	require.Empty(t, outcome.Message)

	require.Equal(t, map[string]string{
		"token":  "abc123",
		"format": "pdf",
		"docID":  "4242",
	}, confirmForm)

	require.Equal(t, 10, calls)
	require.EqualValues(t, 10000, deltas)
	require.EqualValues(t, 10000, lastReceived)
	require.EqualValues(t, 10000, lastTotal)

	data, err := os.ReadFile(outcome.FilePath)
	require.NoError(t, err)
	require.Equal(t, fileBody, data)
}

func TestDownloadBookViaFallbackForm(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download/start", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, downloadOptionsPage)
	})
	mux.HandleFunc("/download/confirm", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<form name="downloadForm" action="/download/file" method="get">
	<input type="hidden" name="ticket" value="t9"/>
</form>
</body></html>`)
	})
	mux.HandleFunc("/download/file", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "t9", r.URL.Query().Get("ticket"))
		w.Header().Set("content-type", "application/epub+zip")
		fmt.Fprint(w, "epub bytes")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "", "")
	outputPath := filepath.Join(t.TempDir(), "book.pdf")

	outcome := client.DownloadBook(context.Background(), srv.URL+"/download/start", "1", outputPath, nil)

	require.True(t, outcome.Success, outcome.Message)
	require.Equal(t, "EPUB", outcome.Format)
	require.True(t, strings.HasSuffix(outcome.FilePath, ".epub"))
}

func TestDownloadBookMissingForm(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download/start", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>no forms here</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "", "")
	outputPath := filepath.Join(t.TempDir(), "book")

	outcome := client.DownloadBook(context.Background(), srv.URL+"/download/start", "1", outputPath, nil)

	require.False(t, outcome.Success)
	require.Equal(t, "Could not find download form", outcome.Message)
	require.Empty(t, outcome.FilePath)

	entries, err := os.ReadDir(filepath.Dir(outputPath))
	require.NoError(t, err)
	require.Empty(t, entries, "no file may exist after a failed download")
}

func TestDownloadBookPageError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download/start", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "", "")
	outcome := client.DownloadBook(context.Background(), srv.URL+"/download/start", "1", filepath.Join(t.TempDir(), "book"), nil)

	require.False(t, outcome.Success)
	require.Equal(t, "Download page access failed: 403", outcome.Message)
}

func TestDownloadBookFileError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download/start", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, downloadOptionsPage)
	})
	mux.HandleFunc("/download/confirm", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/download/file">Download</a></body></html>`)
	})
	mux.HandleFunc("/download/file", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "", "")
	outcome := client.DownloadBook(context.Background(), srv.URL+"/download/start", "1", filepath.Join(t.TempDir(), "book"), nil)

	require.False(t, outcome.Success)
	require.Equal(t, "File download failed: 500", outcome.Message)
}

func TestDownloadBookMissingLinkAndForm(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download/start", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, downloadOptionsPage)
	})
	mux.HandleFunc("/download/confirm", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>thank you</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "", "")
	outcome := client.DownloadBook(context.Background(), srv.URL+"/download/start", "1", filepath.Join(t.TempDir(), "book"), nil)

	require.False(t, outcome.Success)
	require.Equal(t, "Could not find download link or form", outcome.Message)
}

func TestDownloadBookLoginRequired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>Invalid credentials</html>")
	})
	mux.HandleFunc("/lib/testlib/home.action", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>Please sign in</html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "reader", "wrong")
	outcome := client.DownloadBook(context.Background(), srv.URL+"/download/start", "1", filepath.Join(t.TempDir(), "book"), nil)

	require.False(t, outcome.Success)
	require.Equal(t, "Login required", outcome.Message)
}

func TestWithExtension(t *testing.T) {
	require.Equal(t, "out/book.pdf", withExtension("out/book", ".pdf"))
	require.Equal(t, "out/book.pdf", withExtension("out/book.pdf", ".pdf"))
	require.Equal(t, "out/book.epub", withExtension("out/book.pdf", ".epub"))
	// repeated application is stable
	require.Equal(t, "out/book.pdf", withExtension(withExtension("out/book", ".pdf"), ".pdf"))
}

func TestExtensionFor(t *testing.T) {
	require.Equal(t, ".pdf", extensionFor("application/pdf"))
	require.Equal(t, ".pdf", extensionFor("application/PDF; charset=binary"))
	require.Equal(t, ".epub", extensionFor("application/epub+zip"))
	require.Equal(t, ".bin", extensionFor("application/octet-stream"))
	require.Equal(t, ".bin", extensionFor(""))
}

func TestCopyChunksReportsEveryChunk(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte("a"), 10000))
	var dst bytes.Buffer

	var received []int64
	written, err := copyChunks(&dst, src, 1000, 10000, func(r, total int64) {
		require.EqualValues(t, 10000, total)
		received = append(received, r)
	})
	require.NoError(t, err)
	require.EqualValues(t, 10000, written)
	require.Len(t, received, 10)
	require.EqualValues(t, 10000, received[len(received)-1])

	// strictly increasing, one chunk apart
	for i := range received {
		require.EqualValues(t, (i+1)*1000, received[i])
	}
}

func TestCopyChunksUnknownTotal(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte("a"), 2500))
	var dst bytes.Buffer

	calls := 0
	written, err := copyChunks(&dst, src, 1000, 0, func(r, total int64) {
		calls++
	})
	require.NoError(t, err)
	require.EqualValues(t, 2500, written)
	require.Zero(t, calls, "progress requires a known total")
}

func TestCopyChunksPartialFinalChunk(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte("a"), 2500))
	var dst bytes.Buffer

	var received []int64
	written, err := copyChunks(&dst, src, 1000, 2500, func(r, total int64) {
		received = append(received, r)
	})
	require.NoError(t, err)
	require.EqualValues(t, 2500, written)
	require.Equal(t, []int64{1000, 2000, 2500}, received)
}
