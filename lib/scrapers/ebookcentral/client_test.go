package ebookcentral

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, username, password string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl:      srv.URL,
		LibraryId:    "testlib",
		EZproxyUrl:   srv.URL + "/login",
		AuthEntryUrl: srv.URL + "/patron/Authentication.aspx?ebcid=abc",
		Username:     username,
		Password:     password,
	})
	require.NoError(t, err)
	return client
}

const signedInHome = `<html><body>
<a href="/lib/testlib/home.action">Library Catalog</a>
<a href="/bookshelf">My Bookshelf</a>
</body></html>`

// a login endpoint that accepts one credential pair and redirects to
// the library home, which only renders signed in with the session
// cookie
func installProxyLogin(mux *http.ServeMux, loginPosts *atomic.Int64) {
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if loginPosts != nil {
			loginPosts.Add(1)
		}
		ok := r.FormValue("user") == "reader" &&
			r.FormValue("pass") == "hunter2" &&
			r.FormValue("url") != ""
		if !ok {
			fmt.Fprint(w, "<html>Invalid credentials</html>")
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "ezproxy", Value: "sess"})
		http.Redirect(w, r, "/lib/testlib/home.action", http.StatusFound)
	})
	mux.HandleFunc("/lib/testlib/home.action", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("ezproxy"); err != nil {
			fmt.Fprint(w, "<html>Please sign in</html>")
			return
		}
		fmt.Fprint(w, signedInHome)
	})
}

func TestLoginSubmitsCredentials(t *testing.T) {
	var loginPosts atomic.Int64
	mux := http.NewServeMux()
	installProxyLogin(mux, &loginPosts)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "reader", "hunter2")
	require.True(t, client.Login(context.Background()))
	require.True(t, client.LoggedIn())
	require.EqualValues(t, 1, loginPosts.Load())
}

func TestLoginReusesExistingSession(t *testing.T) {
	var loginPosts atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		loginPosts.Add(1)
	})
	// home already renders both signed-in markers
	mux.HandleFunc("/lib/testlib/home.action", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, signedInHome)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "reader", "hunter2")
	require.True(t, client.Login(context.Background()))
	require.EqualValues(t, 0, loginPosts.Load(), "credentials must not be resubmitted")
}

func TestLoginFailure(t *testing.T) {
	mux := http.NewServeMux()
	installProxyLogin(mux, nil)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var errorReports []string
	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl:      srv.URL,
		LibraryId:    "testlib",
		EZproxyUrl:   srv.URL + "/login",
		AuthEntryUrl: srv.URL + "/patron/Authentication.aspx?ebcid=abc",
		Username:     "reader",
		Password:     "wrong",
		Debug: func(level DebugLevel, message string, data map[string]any) {
			if level == LevelError {
				errorReports = append(errorReports, message)
			}
		},
	})
	require.NoError(t, err)

	require.False(t, client.Login(context.Background()))
	require.False(t, client.LoggedIn())
	require.NotEmpty(t, errorReports, "failures must surface on the debug channel")
}

// search and download must not re-authenticate once the session is
// logged in
func TestLoginShortCircuits(t *testing.T) {
	var loginPosts atomic.Int64
	mux := http.NewServeMux()
	installProxyLogin(mux, &loginPosts)
	mux.HandleFunc("/ebc/api/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, `{"totalCount":0,"titles":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "reader", "hunter2")

	first := client.SearchBook(context.Background(), "Systematic Theology", "")
	require.Equal(t, StatusNotFound, first.Status)
	require.EqualValues(t, 1, loginPosts.Load())

	second := client.SearchBook(context.Background(), "Church History", "")
	require.Equal(t, StatusNotFound, second.Status)
	require.EqualValues(t, 1, loginPosts.Load(), "second search must reuse the session")
}

func TestOperationsWithoutCredentialsSkipLogin(t *testing.T) {
	var loginPosts atomic.Int64
	mux := http.NewServeMux()
	installProxyLogin(mux, &loginPosts)
	mux.HandleFunc("/ebc/api/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, `{"totalCount":0,"titles":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, "", "")
	result := client.SearchBook(context.Background(), "Anything", "")
	require.Equal(t, StatusNotFound, result.Status)
	require.EqualValues(t, 0, loginPosts.Load())
}
