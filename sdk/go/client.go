package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the ScoreKit HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// SubmitEvent scores one success event and returns it with points applied.
func (c *Client) SubmitEvent(ctx context.Context, req EventRequest) (Event, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return Event{}, ErrEmptyUserID
	}
	var ev Event
	if err := c.postJSON(ctx, c.baseURL+"/events", req, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// SubmitBatch scores a slice of events in one call. SkipDuplicates drops
// events the server considers duplicates instead of failing.
func (c *Client) SubmitBatch(ctx context.Context, events []EventRequest, skipDuplicates bool) ([]Event, error) {
	body := struct {
		Events         []EventRequest `json:"events"`
		SkipDuplicates bool           `json:"skip_duplicates"`
	}{Events: events, SkipDuplicates: skipDuplicates}

	var out struct {
		Events  []Event `json:"events"`
		Created int     `json:"created"`
	}
	if err := c.postJSON(ctx, c.baseURL+"/events/batch", body, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// EventQuery filters ListEvents.
type EventQuery struct {
	UserID    string
	EventType string
	Category  string
	Since     time.Time
	Limit     int
	Offset    int
}

// ListEvents fetches stored events matching the query, newest first.
func (c *Client) ListEvents(ctx context.Context, query EventQuery) ([]Event, error) {
	u, err := url.Parse(c.baseURL + "/events")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if query.UserID != "" {
		q.Set("user", query.UserID)
	}
	if query.EventType != "" {
		q.Set("type", query.EventType)
	}
	if query.Category != "" {
		q.Set("category", query.Category)
	}
	if !query.Since.IsZero() {
		q.Set("since", query.Since.Format(time.RFC3339))
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		q.Set("offset", strconv.Itoa(query.Offset))
	}
	u.RawQuery = q.Encode()

	var out struct {
		Events []Event `json:"events"`
		Count  int     `json:"count"`
	}
	if err := c.getJSON(ctx, u.String(), &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// GetUserMetrics fetches the aggregated counters for a user.
func (c *Client) GetUserMetrics(ctx context.Context, userID string) (UserMetrics, error) {
	if strings.TrimSpace(userID) == "" {
		return UserMetrics{}, ErrEmptyUserID
	}
	var m UserMetrics
	u := fmt.Sprintf("%s/users/%s/metrics", c.baseURL, url.PathEscape(userID))
	if err := c.getJSON(ctx, u, &m); err != nil {
		return UserMetrics{}, err
	}
	return m, nil
}

// GetPersonalStats fetches per-timeframe stats for a user. An empty
// timeframe means all_time.
func (c *Client) GetPersonalStats(ctx context.Context, userID string, timeframe string) (PersonalStats, error) {
	if strings.TrimSpace(userID) == "" {
		return PersonalStats{}, ErrEmptyUserID
	}
	u, err := url.Parse(fmt.Sprintf("%s/users/%s/stats", c.baseURL, url.PathEscape(userID)))
	if err != nil {
		return PersonalStats{}, err
	}
	if timeframe != "" {
		q := u.Query()
		q.Set("timeframe", timeframe)
		u.RawQuery = q.Encode()
	}
	var st PersonalStats
	if err := c.getJSON(ctx, u.String(), &st); err != nil {
		return PersonalStats{}, err
	}
	return st, nil
}

// GetUserRank fetches a user's position on one leaderboard.
func (c *Client) GetUserRank(ctx context.Context, userID, category, timeframe string) (RankInfo, error) {
	if strings.TrimSpace(userID) == "" {
		return RankInfo{}, ErrEmptyUserID
	}
	u, err := url.Parse(fmt.Sprintf("%s/users/%s/rank", c.baseURL, url.PathEscape(userID)))
	if err != nil {
		return RankInfo{}, err
	}
	q := u.Query()
	if category != "" {
		q.Set("category", category)
	}
	if timeframe != "" {
		q.Set("timeframe", timeframe)
	}
	u.RawQuery = q.Encode()

	var info RankInfo
	if err := c.getJSON(ctx, u.String(), &info); err != nil {
		return RankInfo{}, err
	}
	return info, nil
}

// GetLeaderboard fetches the latest snapshot for a category and timeframe.
func (c *Client) GetLeaderboard(ctx context.Context, category, timeframe string) (Leaderboard, error) {
	u := fmt.Sprintf("%s/leaderboards/%s/%s", c.baseURL, url.PathEscape(category), url.PathEscape(timeframe))
	var board Leaderboard
	if err := c.getJSON(ctx, u, &board); err != nil {
		return Leaderboard{}, err
	}
	return board, nil
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	if err := c.getJSON(ctx, c.baseURL+"/healthz", &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits scored events.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				var evt Event
				if err := conn.ReadJSON(&evt); err != nil {
					return
				}
				select {
				case out <- evt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, u string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) postJSON(ctx context.Context, u string, body any, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
