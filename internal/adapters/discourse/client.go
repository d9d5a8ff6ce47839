// Package discourse implements the rate-limited paginated client for the
// analytics report endpoint.
//
// Reports are fetched page by page until the source reports zero results.
// A fixed inter-page delay keeps the client under the source's rate limit;
// 429 responses retry the same page with linear backoff and become fatal
// once retries are exhausted, because continuing would silently return an
// incomplete dataset.
package discourse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/campuspulse/engage/pkg/logger"
	"github.com/campuspulse/engage/pkg/metrics"
)

// Report query IDs understood by the analytics group.
const (
	QueryOverallEngagement = 102 // per-user engagement counts, org-wide
	QueryCourseActions     = 103 // action events for one category
	QueryCategories        = 107 // category id listing
	QueryIdentityMapping   = 108 // user id <-> username mapping
)

// Default client tuning.
const (
	defaultPageDelay      = 1200 * time.Millisecond
	defaultRetryInterval  = 3 * time.Second
	defaultMaxRetries     = 5
	defaultRequestTimeout = 90 * time.Second
)

// Row is one report row keyed by column name.
type Row map[string]any

// Table is the accumulated result of a paginated report run.
type Table struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether the table has no rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Runner executes a report query and returns the accumulated table.
type Runner interface {
	RunReport(ctx context.Context, queryID int, params map[string]string) (Table, error)
}

// page mirrors one page of the report response body.
type page struct {
	Columns     []string `json:"columns"`
	Rows        [][]any  `json:"rows"`
	ResultCount int      `json:"result_count"`
}

// Client talks to the report endpoint of one analytics group.
type Client struct {
	baseURL     string
	group       string
	apiKey      string
	apiUsername string

	httpClient    *http.Client
	pageDelay     time.Duration
	retryInterval time.Duration
	maxRetries    int

	logger logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithCredentials sets the API key and username headers.
func WithCredentials(key, username string) Option {
	return func(c *Client) {
		c.apiKey = key
		c.apiUsername = username
	}
}

// WithGroup sets the analytics group the reports belong to.
func WithGroup(group string) Option {
	return func(c *Client) {
		if group != "" {
			c.group = group
		}
	}
}

// WithPageDelay sets the fixed delay between page requests.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.pageDelay = d
		}
	}
}

// WithRetryPolicy sets the 429 retry count and base backoff interval.
// The n-th retry waits n times the interval.
func WithRetryPolicy(maxRetries int, interval time.Duration) Option {
	return func(c *Client) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		if interval > 0 {
			c.retryInterval = interval
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a report client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		group:         "discourse_analytics",
		httpClient:    &http.Client{Timeout: defaultRequestTimeout},
		pageDelay:     defaultPageDelay,
		retryInterval: defaultRetryInterval,
		maxRetries:    defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("discourse")
	}
	return c
}

// RunReport fetches every page of a report and returns the flattened
// table. Rate-limit exhaustion aborts the whole fetch with ErrRateLimited;
// any other HTTP failure stops pagination and returns the rows accumulated
// so far, so callers must treat the table as data-known-so-far.
func (c *Client) RunReport(ctx context.Context, queryID int, params map[string]string) (Table, error) {
	log := c.logger.Named("query." + strconv.Itoa(queryID))
	start := time.Now()
	var table Table
	seenCols := make(map[string]struct{})

	for pageNum := 0; ; pageNum++ {
		if pageNum > 0 {
			// Stay under the source's rate limit even without 429s.
			select {
			case <-ctx.Done():
				return table, fmt.Errorf("report %d: %w", queryID, ctx.Err())
			case <-time.After(c.pageDelay):
			}
		}

		p, err := c.fetchPage(ctx, queryID, pageNum, params)
		if err != nil {
			if isFatal(err) {
				metrics.RecordFetchError(queryID)
				return Table{}, fmt.Errorf("report %d page %d: %w", queryID, pageNum, err)
			}
			// Partial-result policy: keep what we have.
			metrics.RecordFetchError(queryID)
			log.Error(ctx, "page fetch failed, returning partial result",
				logger.Int("page", pageNum),
				logger.Int("rows", len(table.Rows)),
				logger.Error(err),
			)
			return table, nil
		}
		metrics.RecordFetchPage(queryID)

		if p.ResultCount == 0 {
			break
		}
		for _, col := range p.Columns {
			if _, ok := seenCols[col]; ok {
				continue
			}
			seenCols[col] = struct{}{}
			table.Columns = append(table.Columns, col)
		}
		for _, raw := range p.Rows {
			row := make(Row, len(p.Columns))
			for i, col := range p.Columns {
				if i < len(raw) {
					row[col] = raw[i]
				}
			}
			table.Rows = append(table.Rows, row)
		}
	}

	metrics.RecordFetchRows(queryID, len(table.Rows))
	log.Info(ctx, "report completed",
		logger.Int("rows", len(table.Rows)),
		logger.Duration("took", time.Since(start)),
	)
	return table, nil
}

// fetchPage requests a single page, retrying on 429 with linear backoff.
func (c *Client) fetchPage(ctx context.Context, queryID, pageNum int, params map[string]string) (page, error) {
	var p page
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLinearBackOff(c.retryInterval), uint64(c.maxRetries)),
		ctx,
	)
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		result, err := c.doPage(ctx, queryID, pageNum, params)
		if err == nil {
			p = result
			return nil
		}
		if isRateLimited(err) {
			metrics.RecordRateLimitRetry(queryID)
			c.logger.Warn(ctx, "rate limited, retrying page",
				logger.Int("query_id", queryID),
				logger.Int("page", pageNum),
				logger.Int("attempt", attempt),
			)
			return err // retryable
		}
		return backoff.Permanent(err)
	}, policy)
	if err != nil {
		if isRateLimited(err) {
			return page{}, fmt.Errorf("%w after %d attempts", ErrRateLimited, attempt)
		}
		return page{}, err
	}
	return p, nil
}

// doPage performs one POST to the report run endpoint.
func (c *Client) doPage(ctx context.Context, queryID, pageNum int, params map[string]string) (page, error) {
	payload := map[string]string{"page": strconv.Itoa(pageNum)}
	for k, v := range params {
		payload[k] = v
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return page{}, fmt.Errorf("encode params: %w", err)
	}

	endpoint := fmt.Sprintf("%s/g/%s/reports/%d/run", c.baseURL, c.group, queryID)
	form := url.Values{"params": {string(encoded)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Api-Username", c.apiUsername)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return page{}, fmt.Errorf("%w: status 429", errTooManyRequests)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return page{}, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return page{}, fmt.Errorf("decode page: %w", err)
	}
	return p, nil
}
