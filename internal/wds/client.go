// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package wds queries the World Bank Documents & Reports (WDS) search API
// and returns every document record attached to a project.
package wds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/projdocs/internal/httputil"
	"github.com/pdiddy/projdocs/pkg/types"
)

// DefaultBaseURL is the WDS v2 search endpoint.
const DefaultBaseURL = "https://search.worldbank.org/api/v2/wds"

const (
	DefaultPageSize  = 200
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "projdocs/0.1"
)

// Fields is the fixed field list requested on every page.
var Fields = []string{
	"docna", "docty", "docdt", "lang", "repnb", "url", "pdfurl",
	"projn", "proid", "countryshortname", "countryname",
}

// Client pages through WDS results for one project at a time.
type Client struct {
	http   *http.Client
	cfg    types.FetchConfig
	logger *slog.Logger
}

// NewClient returns a Client with defaults applied to zero-valued settings.
func NewClient(httpClient *http.Client, cfg types.FetchConfig, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpClient, cfg: cfg, logger: logger}
}

// FetchAllDocuments returns every document record for projectID, requesting
// pages of PageSize records at increasing offsets until a page comes back
// short. A page that still fails after retries ends pagination: the error is
// logged and the records gathered so far are returned. The returned error is
// non-nil only when ctx is done.
func (c *Client) FetchAllDocuments(ctx context.Context, projectID string) ([]types.RawDocument, error) {
	var all []types.RawDocument
	for offset := 0; ; offset += c.cfg.PageSize {
		docs, err := c.fetchPage(ctx, projectID, offset)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			c.logger.Error("WDS query failed",
				"project", projectID, "offset", offset, "kept", len(all), "error", err)
			return all, nil
		}
		all = append(all, docs...)
		c.logger.Debug("fetched WDS page", "project", projectID, "offset", offset, "records", len(docs))
		if len(docs) < c.cfg.PageSize {
			return all, nil
		}
	}
}

func (c *Client) pageURL(projectID string, offset int) string {
	params := url.Values{
		"format":            {"json"},
		"includepublicdocs": {"1"},
		"rows":              {strconv.Itoa(c.cfg.PageSize)},
		"os":                {strconv.Itoa(offset)},
		"proid":             {projectID},
		"fl":                {strings.Join(Fields, ",")},
	}
	return c.cfg.BaseURL + "?" + params.Encode()
}

func (c *Client) fetchPage(ctx context.Context, projectID string, offset int) ([]types.RawDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(projectID, offset), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.cfg.MaxAttempts, c.logger)
	if err != nil {
		return nil, fmt.Errorf("WDS API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		if httputil.Retryable(resp.StatusCode) {
			return nil, fmt.Errorf("WDS API returned HTTP %d after retries", resp.StatusCode)
		}
		return nil, fmt.Errorf("WDS API returned HTTP %d", resp.StatusCode)
	}

	return Decode(resp.Body)
}
