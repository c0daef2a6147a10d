package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hackmate/pkg/response"
	"hackmate/pkg/wire"
)

// API is the REST surface a Session depends on.
type API interface {
	History(ctx context.Context, selfID string, target Target) ([]Message, error)
	MarkRead(ctx context.Context, selfID string, target Target) error
	Report(ctx context.Context, r Report) error
}

// Report is a moderation report for one message.
type Report struct {
	MessageID  string `json:"-"`
	ReporterID string `json:"reporterId"`
	Reason     string `json:"reason"`
	Details    string `json:"details,omitempty"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type historyData struct {
	Messages []wire.Message `json:"messages"`
	Count    int            `json:"count"`
}

// HTTPClient talks to the chat server's REST endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	limit   int
}

// NewHTTPClient creates a client for baseURL (e.g. http://localhost:8080).
// A nil hc uses a client with a 10s timeout. limit <= 0 leaves the page
// size to the server.
func NewHTTPClient(baseURL string, hc *http.Client, limit int) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), client: hc, limit: limit}
}

// History fetches the conversation history, oldest first.
func (c *HTTPClient) History(ctx context.Context, selfID string, target Target) ([]Message, error) {
	q := url.Values{}
	q.Set("user_id", selfID)
	if c.limit > 0 {
		q.Set("limit", strconv.Itoa(c.limit))
	}

	var path string
	switch target.Kind {
	case KindTeam:
		path = "/teams/" + url.PathEscape(target.ID) + "/messages"
	default:
		path = "/messages"
		q.Set("peer_id", target.ID)
	}

	var data historyData
	if err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &data); err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", target, err)
	}

	out := make([]Message, 0, len(data.Messages))
	for _, m := range data.Messages {
		out = append(out, FromWire(m))
	}
	return out, nil
}

// MarkRead marks the conversation read for selfID.
func (c *HTTPClient) MarkRead(ctx context.Context, selfID string, target Target) error {
	var (
		path string
		body any
	)
	switch target.Kind {
	case KindTeam:
		path = "/teams/" + url.PathEscape(target.ID) + "/messages/read"
		body = map[string]string{"userId": selfID}
	default:
		path = "/messages/read"
		body = map[string]string{"senderId": target.ID, "receiverId": selfID}
	}
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("mark %s read: %w", target, err)
	}
	return nil
}

// Report files a moderation report.
func (c *HTTPClient) Report(ctx context.Context, r Report) error {
	path := "/messages/" + url.PathEscape(r.MessageID) + "/report"
	if err := c.do(ctx, http.MethodPost, path, r, nil); err != nil {
		return fmt.Errorf("report message %s: %w", r.MessageID, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	env := response.Envelope[json.RawMessage]{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "undecodable response"}
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
