// Package hh implements the api.hh.ru client used to acquire vacancies.
//
// Two endpoints are consumed: the paginated vacancy search and the
// per-vacancy detail. Search is cheap; detail fetches are rate-limited
// upstream and occasionally dropped mid-handshake, so they retry with a
// linearly growing delay.
package hh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public hh.ru API endpoint.
	DefaultBaseURL = "https://api.hh.ru"

	// PerPageMax is the hh.ru ceiling for per_page on GET /vacancies.
	PerPageMax = 100

	detailRetries    = 4
	detailRetryDelay = 3 * time.Second

	// Unauthenticated callers get roughly 5 requests per minute per IP;
	// one request per 1.2s keeps bulk runs under that ceiling. A bearer
	// token raises the ceiling, so the limiter opens up accordingly.
	unauthInterval = 1200 * time.Millisecond
	authInterval   = 250 * time.Millisecond

	httpTimeout = 40 * time.Second
)

// SearchItem is a summary row from the paginated search endpoint.
type SearchItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// searchResponse mirrors the top-level GET /vacancies JSON response.
type searchResponse struct {
	Items []SearchItem `json:"items"`
	Pages int          `json:"pages"`
	Found int          `json:"found"`
}

// Role is one professional role from GET /professional_roles.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type rolesResponse struct {
	Categories []struct {
		Roles []Role `json:"roles"`
	} `json:"categories"`
}

// Client talks to api.hh.ru. All requests pass through a token-bucket
// limiter so bulk acquisition respects the upstream request ceiling no
// matter how callers interleave search and detail fetches.
type Client struct {
	BaseURL    string
	Token      string // optional bearer token
	UserAgent  string
	Limiter    *rate.Limiter
	RetryDelay time.Duration // base delay for detail retries, grows linearly

	client *http.Client
}

// NewClient constructs a Client. With a token configured the limiter
// allows a higher request rate.
func NewClient(token, userAgent string) *Client {
	interval := unauthInterval
	if token != "" {
		interval = authInterval
	}
	return &Client{
		BaseURL:    DefaultBaseURL,
		Token:      token,
		UserAgent:  userAgent,
		Limiter:    rate.NewLimiter(rate.Every(interval), 1),
		RetryDelay: detailRetryDelay,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("HH-User-Agent", c.UserAgent)
	}
}

// Search runs the paginated vacancy search for a free-text query.
// Pagination stops on an empty page or when the server reports no
// further pages. searchField narrows matching ("name", "company_name",
// "description"); empty means the API default.
func (c *Client) Search(ctx context.Context, text string, perPage, maxPages int, searchField string) ([]SearchItem, error) {
	if perPage <= 0 || perPage > PerPageMax {
		perPage = PerPageMax
	}

	var all []SearchItem
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("text", text)
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("page", strconv.Itoa(page))
		if searchField != "" {
			params.Set("search_field", searchField)
		}

		var resp searchResponse
		if err := c.getJSON(ctx, "/vacancies?"+params.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("search %q page %d: %w", text, page, err)
		}
		if len(resp.Items) == 0 {
			break
		}
		all = append(all, resp.Items...)
		if resp.Pages <= page+1 {
			break
		}
	}
	return all, nil
}

// SearchByRole searches vacancies by professional role and region.
// area 1 is Moscow. With onlyWithSalary, results are restricted to
// postings that declare a salary and sorted by salary descending.
func (c *Client) SearchByRole(ctx context.Context, roleID string, area, perPage, maxPages int, onlyWithSalary bool) ([]SearchItem, error) {
	if perPage <= 0 || perPage > PerPageMax {
		perPage = PerPageMax
	}

	var all []SearchItem
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("professional_role", roleID)
		params.Set("area", strconv.Itoa(area))
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("page", strconv.Itoa(page))
		if onlyWithSalary {
			params.Set("only_with_salary", "true")
			params.Set("order_by", "salary_desc")
		}

		var resp searchResponse
		if err := c.getJSON(ctx, "/vacancies?"+params.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("search role %s page %d: %w", roleID, page, err)
		}
		if len(resp.Items) == 0 {
			break
		}
		all = append(all, resp.Items...)
		if resp.Pages <= page+1 {
			break
		}
	}
	return all, nil
}

// ProfessionalRoles returns the flattened role catalogue.
func (c *Client) ProfessionalRoles(ctx context.Context) ([]Role, error) {
	var resp rolesResponse
	if err := c.getJSON(ctx, "/professional_roles", &resp); err != nil {
		return nil, fmt.Errorf("professional roles: %w", err)
	}
	var roles []Role
	for _, cat := range resp.Categories {
		roles = append(roles, cat.Roles...)
	}
	return roles, nil
}

// FetchDetail returns the raw JSON document for one vacancy id.
//
// Transient network failures (reset, timeout, handshake) are retried up
// to detailRetries attempts with a delay of RetryDelay × attempt between
// tries; exhausting the budget returns the last transient error. A 404
// means the vacancy no longer exists and resolves to (nil, nil) — the
// caller skips the id. Any other non-2xx status is fatal immediately.
func (c *Client) FetchDetail(ctx context.Context, id string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= detailRetries; attempt++ {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}

		raw, notFound, err := c.fetchDetailOnce(ctx, id)
		if err == nil {
			if notFound {
				return nil, nil
			}
			return raw, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
		if attempt < detailRetries {
			select {
			case <-time.After(c.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (c *Client) fetchDetailOnce(ctx context.Context, id string) (raw json.RawMessage, notFound bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/vacancies/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, false, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("detail %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, true, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("detail %s: read body: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, &StatusError{ID: id, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, false, nil
}

// SearchAndCollectIDs merges search results across an ordered list of
// queries, deduplicating by id in first-seen order. Collection stops as
// soon as target unique ids are gathered — queries past that point are
// skipped entirely, so query order decides which vacancies are kept.
func (c *Client) SearchAndCollectIDs(ctx context.Context, queries []string, target int) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string

	for _, q := range queries {
		if len(ids) >= target {
			break
		}
		items, err := c.Search(ctx, q, PerPageMax, 20, "name")
		if err != nil {
			return nil, fmt.Errorf("collect ids for %q: %w", q, err)
		}
		for _, it := range items {
			if _, ok := seen[it.ID]; ok {
				continue
			}
			seen[it.ID] = struct{}{}
			ids = append(ids, it.ID)
			if len(ids) >= target {
				break
			}
		}
	}
	return ids, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hh.ru returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// StatusError is a non-404, non-2xx API response. Never retried.
type StatusError struct {
	ID         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vacancy %s: hh.ru returned %d: %s", e.ID, e.StatusCode, e.Body)
}

// isTransient reports whether err looks like a connection-level failure
// worth retrying: reset, refused, DNS, timeout or a truncated read.
func isTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
