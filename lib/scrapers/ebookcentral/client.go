package ebookcentral

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"libassist-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// Fixed per deployment. A different institution needs to re-derive
// these along with the HTML selectors.
const (
	DefaultBaseUrl      = "https://ebookcentral.proquest.com"
	DefaultLibraryId    = "ridley"
	DefaultEZproxyUrl   = "https://ezproxy.ridley.edu.au/login"
	DefaultAuthEntryUrl = "https://ridley.eblib.com/patron/Authentication.aspx?ebcid=966d562a9fb34b42a8930a460c883505&echo=1"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// post-login page markers, part of the login success heuristics
const (
	markerAuthSuccess = "Authentication successful"
	markerBookshelf   = "My Bookshelf"
)

type ClientOptions struct {
	// zero values fall back to the Ridley deployment constants above
	BaseUrl      string
	LibraryId    string
	EZproxyUrl   string
	AuthEntryUrl string

	// credentials used by login-on-demand; operations that need an
	// authenticated session fail with "Login required" when a login
	// attempt with these fails
	Username string
	Password string

	// optional diagnostic channel, see DebugFunc
	Debug DebugFunc

	// optional sink that captures every raw HTTP exchange
	InstrumentOutput restyutil.InstrumentOutput
}

// Client owns one cookie-bearing session against the portal. It is not
// safe for concurrent operations; construct one instance per concurrent
// logical session instead.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	opts     ClientOptions
	debug    DebugFunc
	loggedIn bool
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.LibraryId == "" {
		opts.LibraryId = DefaultLibraryId
	}
	if opts.EZproxyUrl == "" {
		opts.EZproxyUrl = DefaultEZproxyUrl
	}
	if opts.AuthEntryUrl == "" {
		opts.AuthEntryUrl = DefaultAuthEntryUrl
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	proxyUrl, err := url.Parse(opts.EZproxyUrl)
	if err != nil {
		return nil, err
	}
	authUrl, err := url.Parse(opts.AuthEntryUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", browserUserAgent)
	client.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	// the login chain bounces between the proxy, the authentication
	// host and the portal itself
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(
		baseUrl.Hostname(),
		proxyUrl.Hostname(),
		authUrl.Hostname(),
	))
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, opts.InstrumentOutput)

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
		opts:    opts,
		debug:   opts.Debug,
	}
	return c, nil
}

// LoggedIn reports whether a previous Login succeeded on this session.
func (c *Client) LoggedIn() bool {
	return c.loggedIn
}

func (c *Client) hasCredentials() bool {
	return c.opts.Username != "" && c.opts.Password != ""
}

func (c *Client) homePath() string {
	return fmt.Sprintf("/lib/%s/home.action", c.opts.LibraryId)
}

func (c *Client) detailUrl(docId string) string {
	return fmt.Sprintf(
		"%s/lib/%s/detail.action?docID=%s",
		strings.TrimSuffix(c.opts.BaseUrl, "/"), c.opts.LibraryId, url.QueryEscape(docId),
	)
}

func (c *Client) downloadUrlFor(docId string) string {
	return c.detailUrl(docId) + "&download=true"
}

// Login drops any previous session cookies, then establishes an
// authenticated session through the EZproxy gateway. A session that
// still looks signed in on the library home page is reused without
// resubmitting credentials. Failure is a boolean result, never an
// error; diagnostics go through the debug channel.
func (c *Client) Login(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	jar, err := cookiejar.New(nil)
	if err != nil {
		c.report(ctx, LevelError, "failed to reset cookie jar", map[string]any{"err": err.Error()})
		return false
	}
	c.Http.SetCookieJar(jar)
	c.loggedIn = false
	c.report(ctx, LevelDebug, "cleared session cookies", nil)

	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.homePath())
	if err == nil && res.StatusCode() == 200 && c.looksSignedIn(res.String()) {
		c.report(ctx, LevelInfo, "existing portal session accepted", nil)
		c.loggedIn = true
		return true
	}

	res, err = c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"user": c.opts.Username,
			"pass": c.opts.Password,
			"url":  c.opts.AuthEntryUrl,
		}).
		Post(c.opts.EZproxyUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login request failed")
		c.report(ctx, LevelError, "login request failed", map[string]any{"err": errorMessage(err, "Login")})
		return false
	}

	landedOn := finalUrl(res)
	body := res.String()

	success := strings.Contains(landedOn, c.homePath()) ||
		strings.Contains(body, markerAuthSuccess) ||
		strings.Contains(body, markerBookshelf)
	if !success {
		span.SetStatus(codes.Error, "login heuristics rejected response")
		c.report(ctx, LevelError, "login failed", map[string]any{
			"redirected_to": landedOn,
			"status":        res.StatusCode(),
			"body":          bodySnippet(body),
		})
		return false
	}

	c.report(ctx, LevelInfo, "login successful", map[string]any{"redirected_to": landedOn})
	c.loggedIn = true
	return true
}

// two markers at once: one for catalog access, one for bookshelf access
func (c *Client) looksSignedIn(body string) bool {
	catalog := fmt.Sprintf("/lib/%s", c.opts.LibraryId)
	return strings.Contains(body, catalog) && strings.Contains(body, markerBookshelf)
}

// login-on-demand: authenticate only when credentials are present and
// the session is not already logged in
func (c *Client) ensureLogin(ctx context.Context) bool {
	if !c.hasCredentials() || c.loggedIn {
		return true
	}
	return c.Login(ctx)
}

// the url the request actually landed on after redirects
func finalUrl(res *resty.Response) string {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL.String()
	}
	return res.Request.URL
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err)
}

func errorMessage(err error, operation string) string {
	if isTimeout(err) {
		return fmt.Sprintf("%s timed out", operation)
	}
	return err.Error()
}
