package mastodon

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
)

const (
	defaultUserAgent = "murmur/0.1"
	requestTimeout   = 30 * time.Second
)

// Client talks to one Mastodon-compatible server. Methods are blocking;
// callers bound them with a context. Safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	token     string
	http      *http.Client
	userAgent string
}

// NewClient builds a Client for the given instance origin and bearer token.
func NewClient(instance, token string) (*Client, error) {
	base, err := parseBaseURL(instance)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		token:   token,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// Page is a timeline page plus the cursor for the one after it.
type Page struct {
	Statuses  []Status
	NextMaxID string // empty when the server has no older page
}

// Timeline fetches one page of statuses from an arbitrary timeline path,
// e.g. "/api/v1/timelines/home". maxID pages backward when non-empty.
func (c *Client) Timeline(ctx context.Context, path string, params url.Values, limit int, maxID string) (Page, error) {
	values := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if maxID != "" {
		values.Set("max_id", maxID)
	}

	var statuses []Status
	link, err := c.get(ctx, path, values, &statuses)
	if err != nil {
		return Page{}, err
	}
	return Page{Statuses: statuses, NextMaxID: nextMaxID(link, lastStatusID(statuses))}, nil
}

// Notifications fetches one page of the notifications timeline.
func (c *Client) Notifications(ctx context.Context, limit int, maxID string) ([]Notification, string, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if maxID != "" {
		values.Set("max_id", maxID)
	}
	var notifications []Notification
	link, err := c.get(ctx, "/api/v1/notifications", values, &notifications)
	if err != nil {
		return nil, "", err
	}
	last := ""
	if len(notifications) > 0 {
		last = notifications[len(notifications)-1].ID
	}
	return notifications, nextMaxID(link, last), nil
}

// GetStatus fetches a single status by id.
func (c *Client) GetStatus(ctx context.Context, id string) (Status, error) {
	var status Status
	_, err := c.get(ctx, "/api/v1/statuses/"+id, nil, &status)
	return status, err
}

// GetContext fetches the reply tree around a status.
func (c *Client) GetContext(ctx context.Context, id string) (Context, error) {
	var tree Context
	_, err := c.get(ctx, "/api/v1/statuses/"+id+"/context", nil, &tree)
	return tree, err
}

// PostStatus creates a new status (or a reply when InReplyToID is set).
func (c *Client) PostStatus(ctx context.Context, draft StatusDraft) (Status, error) {
	form := url.Values{}
	form.Set("status", draft.Content)
	if draft.Visibility != "" {
		form.Set("visibility", draft.Visibility)
	}
	if draft.SpoilerText != "" {
		form.Set("spoiler_text", draft.SpoilerText)
	}
	if draft.InReplyToID != "" {
		form.Set("in_reply_to_id", draft.InReplyToID)
	}
	var status Status
	err := c.post(ctx, "/api/v1/statuses", form, &status)
	return status, err
}

// DeleteStatus deletes one of the user's own statuses.
func (c *Client) DeleteStatus(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/statuses/"+id, nil, nil, nil)
}

// Favourite marks a status as favourited and returns the updated status.
func (c *Client) Favourite(ctx context.Context, id string) (Status, error) {
	return c.statusAction(ctx, id, "favourite")
}

// Unfavourite removes a favourite.
func (c *Client) Unfavourite(ctx context.Context, id string) (Status, error) {
	return c.statusAction(ctx, id, "unfavourite")
}

// Reblog boosts a status.
func (c *Client) Reblog(ctx context.Context, id string) (Status, error) {
	return c.statusAction(ctx, id, "reblog")
}

// Unreblog removes a boost.
func (c *Client) Unreblog(ctx context.Context, id string) (Status, error) {
	return c.statusAction(ctx, id, "unreblog")
}

// Bookmark bookmarks a status.
func (c *Client) Bookmark(ctx context.Context, id string) (Status, error) {
	return c.statusAction(ctx, id, "bookmark")
}

// Unbookmark removes a bookmark.
func (c *Client) Unbookmark(ctx context.Context, id string) (Status, error) {
	return c.statusAction(ctx, id, "unbookmark")
}

func (c *Client) statusAction(ctx context.Context, id, action string) (Status, error) {
	var status Status
	err := c.post(ctx, "/api/v1/statuses/"+id+"/"+action, nil, &status)
	return status, err
}

// VotePoll submits votes for the given option indexes.
func (c *Client) VotePoll(ctx context.Context, pollID string, choices []int) (Poll, error) {
	form := url.Values{}
	for _, choice := range choices {
		form.Add("choices[]", strconv.Itoa(choice))
	}
	var poll Poll
	err := c.post(ctx, "/api/v1/polls/"+pollID+"/votes", form, &poll)
	return poll, err
}

// Search queries the server's v2 search endpoint.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) (SearchResults, error) {
	values := url.Values{}
	values.Set("q", query)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		values.Set("offset", strconv.Itoa(offset))
	}
	var results SearchResults
	_, err := c.get(ctx, "/api/v2/search", values, &results)
	return results, err
}

// VerifyCredentials confirms the token and returns the owning account.
func (c *Client) VerifyCredentials(ctx context.Context) (Account, error) {
	var account Account
	_, err := c.get(ctx, "/api/v1/accounts/verify_credentials", nil, &account)
	return account, err
}

// InstanceInfo fetches server metadata (post length limits etc).
func (c *Client) InstanceInfo(ctx context.Context) (Instance, error) {
	var instance Instance
	_, err := c.get(ctx, "/api/v2/instance", nil, &instance)
	return instance, err
}

// StreamURL builds the websocket URL for a named stream, e.g. "user" or
// "public:local". Hashtag streams additionally carry the tag. The token
// rides in the query string per the API.
func (c *Client) StreamURL(stream, tag string) string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/api/v1/streaming"
	values := url.Values{}
	values.Set("access_token", c.token)
	values.Set("stream", stream)
	if tag != "" {
		values.Set("tag", tag)
	}
	u.RawQuery = values.Encode()
	return u.String()
}

// get performs a GET and returns the Link header for pagination.
func (c *Client) get(ctx context.Context, path string, values url.Values, dest any) (string, error) {
	var link string
	err := c.do(ctx, http.MethodGet, path, values, nil, func(resp *http.Response) error {
		link = resp.Header.Get("Link")
		return decodeBody(resp.Body, dest)
	})
	return link, err
}

// post performs a form-encoded POST.
func (c *Client) post(ctx context.Context, path string, form url.Values, dest any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	return c.do(ctx, http.MethodPost, path, nil, body, func(resp *http.Response) error {
		if dest == nil {
			return nil
		}
		return decodeBody(resp.Body, dest)
	})
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values, body io.Reader, handle func(*http.Response) error) error {
	rel := &url.URL{Path: path}
	if values != nil {
		rel.RawQuery = values.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: serverMessage(resp.Body)}
	}
	if handle == nil {
		return nil
	}
	return handle(resp)
}

func decodeBody(r io.Reader, dest any) error {
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(r).Decode(dest); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// serverMessage extracts the {"error": "..."} body Mastodon returns on
// failures, falling back to the raw body.
func serverMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}

func lastStatusID(statuses []Status) string {
	if len(statuses) == 0 {
		return ""
	}
	return statuses[len(statuses)-1].ID
}

// nextMaxID derives the cursor for the next older page: the Link header's
// rel="next" max_id when present, otherwise the last id of this page.
func nextMaxID(link, fallback string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end <= start {
			continue
		}
		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			continue
		}
		if id := u.Query().Get("max_id"); id != "" {
			return id
		}
	}
	return fallback
}

func parseBaseURL(instance string) (*url.URL, error) {
	trimmed := strings.TrimSpace(instance)
	if trimmed == "" {
		return nil, fmt.Errorf("instance URL is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse instance %q: %w", instance, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
