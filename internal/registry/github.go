// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the public GitHub REST API endpoint.
	DefaultBaseURL = "https://api.github.com"

	// acceptHeader is the media type requested from the releases endpoint.
	acceptHeader = "application/vnd.github.v3+json"

	// maxJSONResponseBytes is the upper bound on JSON API response size (10 MB).
	// Prevents unbounded memory consumption from malicious or malformed responses.
	maxJSONResponseBytes = 10 << 20
)

var (
	// ErrReleaseNotFound is returned when the repository has no published release.
	ErrReleaseNotFound = errors.New("release not found")

	// ErrMalformedResponse indicates the registry answered with a body that is
	// not valid JSON or does not have the expected release shape.
	ErrMalformedResponse = errors.New("malformed release response")
)

type (
	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// StatusError is returned for any non-2xx response that is not otherwise classified.
	StatusError struct {
		URL        string
		StatusCode int
	}

	// Release is the subset of a GitHub Release the update engine consumes.
	Release struct {
		TagName string  // Git tag of the release, informational only
		Name    string  // Human-readable release name
		HTMLURL string  // Browser URL for the release page
		Assets  []Asset // Downloadable artifacts in registry order
	}

	// Asset represents a single downloadable file in a GitHub Release.
	Asset struct {
		Name               string // Filename, e.g., "web_<sha256>.tar"
		BrowserDownloadURL string // Direct download URL
		Size               int64  // File size in bytes; 0 when not reported
	}

	// GitHubClient queries the GitHub Releases API and downloads release assets.
	GitHubClient struct {
		httpClient *http.Client
		owner      string
		repo       string
		baseURL    string // API base URL (overridable for tests and mirrors)
		token      string // Optional token for authenticated requests
		userAgent  string
	}

	// ClientOption configures a GitHubClient during construction.
	ClientOption func(*GitHubClient)
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
}

// WithHTTPClient sets a custom HTTP client, useful for tests, proxies or timeouts.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GitHubClient) {
		g.httpClient = c
	}
}

// WithBaseURL overrides the GitHub API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *GitHubClient) {
		if base != "" {
			g.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithToken sets a GitHub token for authenticated requests.
// Authenticated requests have a higher rate limit (5000/hour vs 60/hour).
func WithToken(token string) ClientOption {
	return func(g *GitHubClient) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(g *GitHubClient) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// NewGitHubClient creates a client for the releases of owner/repo.
// Defaults: baseURL=DefaultBaseURL, userAgent="ntcomp/dev", httpClient=http.DefaultClient.
func NewGitHubClient(owner, repo string, opts ...ClientOption) *GitHubClient {
	c := &GitHubClient{
		httpClient: http.DefaultClient,
		owner:      owner,
		repo:       repo,
		baseURL:    DefaultBaseURL,
		userAgent:  "ntcomp/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repository returns "owner/repo".
func (c *GitHubClient) Repository() string {
	return c.owner + "/" + c.repo
}

// LatestRelease fetches the latest published release with a single GET.
func (c *GitHubClient) LatestRelease(ctx context.Context) (*Release, error) {
	latestURL := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)

	resp, err := c.doRequest(ctx, latestURL)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release of %s: %w", c.Repository(), err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkRateLimit(resp); err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", c.Repository(), ErrReleaseNotFound)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: redactURL(latestURL), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading latest release of %s: %w", c.Repository(), err)
	}

	return parseRelease(body)
}

// DownloadAsset starts a download of the asset at assetURL and returns the
// response body as a streaming reader along with the advertised content
// length (-1 when unknown). The caller must close the returned ReadCloser.
func (c *GitHubClient) DownloadAsset(ctx context.Context, assetURL string) (io.ReadCloser, int64, error) {
	resp, err := c.doRequest(ctx, assetURL)
	if err != nil {
		return nil, 0, fmt.Errorf("downloading asset %s: %w", redactURL(assetURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, &StatusError{URL: redactURL(assetURL), StatusCode: resp.StatusCode}
	}

	return resp.Body, resp.ContentLength, nil
}

// doRequest creates and executes a GET request with common GitHub API headers.
func (c *GitHubClient) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", c.userAgent)

	// Only attach the auth token when the request targets a known GitHub host.
	// Asset downloads redirect to a CDN that must never see the token.
	if c.token != "" && isGitHubHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	return resp, nil
}

// parseRelease validates the release JSON shape and extracts its assets.
// The expected shape is `{ "assets": [ { "name": string, "browser_download_url": string } ] }`.
func parseRelease(body []byte) (*Release, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedResponse)
	}

	assets := root.Get("assets")
	if !assets.IsArray() {
		return nil, fmt.Errorf("%w: missing \"assets\" array", ErrMalformedResponse)
	}

	rel := &Release{
		TagName: root.Get("tag_name").String(),
		Name:    root.Get("name").String(),
		HTMLURL: root.Get("html_url").String(),
	}

	var shapeErr error
	assets.ForEach(func(idx, a gjson.Result) bool {
		name := a.Get("name")
		dl := a.Get("browser_download_url")
		if !a.IsObject() || name.Type != gjson.String || dl.Type != gjson.String {
			shapeErr = fmt.Errorf("%w: assets[%d] lacks string name/browser_download_url", ErrMalformedResponse, idx.Int())
			return false
		}
		rel.Assets = append(rel.Assets, Asset{
			Name:               name.String(),
			BrowserDownloadURL: dl.String(),
			Size:               a.Get("size").Int(),
		})
		return true
	})
	if shapeErr != nil {
		return nil, shapeErr
	}

	return rel, nil
}

// checkRateLimit inspects the X-RateLimit-* response headers and returns a
// RateLimitError when the remaining quota is zero.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil {
		return nil //nolint:nilerr // Non-numeric header is non-fatal.
	}

	if rem > 0 {
		return nil
	}

	// Malformed or missing companion headers default to zero, which is fine
	// for a diagnostic message.
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

// isGitHubHost reports whether reqURL targets the configured API host, or
// github.com when the API base is api.github.com.
func isGitHubHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(reqURL.Host, base.Host) {
		return true
	}
	return strings.EqualFold(base.Host, "api.github.com") && strings.EqualFold(reqURL.Host, "github.com")
}

// redactURL strips query parameters and fragments from a URL for safe inclusion
// in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
