// Package releases resolves published terraform-ls releases from the
// HashiCorp releases index.
//
// The index is a JSON document mapping version strings to release metadata,
// including one downloadable build per platform and the names of the SHA-256
// checksum manifest and its detached signature. The index is fetched fresh on
// every resolution; nothing is cached across process restarts.
package releases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"golang.org/x/mod/semver"
)

// DefaultIndexURL is the release index consulted when none is configured.
const DefaultIndexURL = "https://releases.hashicorp.com/terraform-ls/index.json"

// ErrNoReleases is returned when the index contains no usable versions.
var ErrNoReleases = errors.New("release index contains no releases")

// FetchError indicates the index could not be retrieved or decoded.
type FetchError struct {
	URL string
	Err error
}

// Error returns a description of the fetch failure.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch release index %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Build is one platform-specific downloadable package of a release.
type Build struct {
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Release is one published version with its builds and checksum manifest.
// Immutable once fetched.
type Release struct {
	Version          string  `json:"version"`
	Builds           []Build `json:"builds"`
	Shasums          string  `json:"shasums"`
	ShasumsSignature string  `json:"shasums_signature"`
}

// Build returns the build matching the given normalized OS/arch pair.
func (r *Release) Build(os, arch string) (*Build, bool) {
	for i := range r.Builds {
		if r.Builds[i].OS == os && r.Builds[i].Arch == arch {
			return &r.Builds[i], true
		}
	}
	return nil, false
}

// ShasumsURL returns the URL of the release's checksum manifest, derived
// from the directory the build artifacts are served from.
func (r *Release) ShasumsURL(b *Build) (string, error) {
	return siblingURL(b.URL, r.Shasums)
}

// ShasumsSignatureURL returns the URL of the detached signature over the
// checksum manifest, or ok=false if the release publishes none.
func (r *Release) ShasumsSignatureURL(b *Build) (string, bool, error) {
	if r.ShasumsSignature == "" {
		return "", false, nil
	}
	u, err := siblingURL(b.URL, r.ShasumsSignature)
	return u, err == nil, err
}

// siblingURL replaces the final path element of rawURL with name.
func siblingURL(rawURL, name string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse build url: %w", err)
	}
	u.Path = path.Join(path.Dir(u.Path), name)
	return u.String(), nil
}

// Client fetches the release index.
type Client struct {
	indexURL  string
	userAgent string
	http      *http.Client
}

// NewClient creates a release index client. An empty indexURL selects
// DefaultIndexURL.
func NewClient(indexURL, userAgent string) *Client {
	if indexURL == "" {
		indexURL = DefaultIndexURL
	}
	return &Client{
		indexURL:  indexURL,
		userAgent: userAgent,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Latest fetches the release index and returns the newest version by
// semantic-version precedence. Prerelease versions are eligible: a consumer
// on 1.0.0 is offered 1.1.0-beta when that is the maximum.
func (c *Client) Latest(ctx context.Context) (*Release, error) {
	index, err := c.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}

	var latest *Release
	for version, release := range index {
		canon := Canonical(version)
		if !semver.IsValid(canon) {
			// Malformed entries are skipped rather than failing the whole
			// index; the publisher has shipped odd strings before.
			continue
		}
		if release.Version == "" {
			release.Version = version
		}
		if latest == nil || semver.Compare(canon, Canonical(latest.Version)) > 0 {
			latest = release
		}
	}

	if latest == nil {
		return nil, ErrNoReleases
	}
	return latest, nil
}

// fetchIndex retrieves and decodes the version index.
func (c *Client) fetchIndex(ctx context.Context) (map[string]*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.indexURL, nil)
	if err != nil {
		return nil, &FetchError{URL: c.indexURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: c.indexURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: c.indexURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: c.indexURL, Err: fmt.Errorf("read body: %w", err)}
	}

	var index map[string]*Release
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, &FetchError{URL: c.indexURL, Err: fmt.Errorf("decode index: %w", err)}
	}

	return index, nil
}

// Canonical prefixes a release version with "v" so it can be compared with
// golang.org/x/mod/semver, which requires the prefix.
func Canonical(version string) string {
	if version == "" {
		return ""
	}
	if version[0] == 'v' {
		return version
	}
	return "v" + version
}
