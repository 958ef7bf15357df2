package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type API interface {
	Do(ctx context.Context, params map[string]string, headers map[string]string) (*Response, error)
	Me(ctx context.Context) (User, error)
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Response is the raw answer to one GraphQL request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSONDecoder turns a response body into the mappings extractors walk.
// Numbers stay json.Number so ids and timestamps keep their precision.
type JSONDecoder struct{}

func (JSONDecoder) Decode(resp *Response) ([]map[string]any, error) {
	if resp == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return []map[string]any{body}, nil
}

type Client struct {
	apiURL string
	token  string
	http   *http.Client
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data      json.RawMessage `json:"data"`
	Errors    []gqlError      `json:"errors"`
	ErrorCode string          `json:"error_code"`
	ErrorMsg  string          `json:"error_message"`
}

type gqlErrors struct {
	Errors []gqlError
}

func (e gqlErrors) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

const DefaultAPIURL = "https://api.monday.com/v2"

type ClientOption func(*Client)

func WithAPIURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.apiURL = url
		}
	}
}

func NewClient(token string, timeout time.Duration, opts ...ClientOption) API {
	c := &Client{
		apiURL: DefaultAPIURL,
		token:  token,
		http: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do posts one GraphQL query. Responses that carry data are returned even
// when the API also reports errors; the extractors decide what to keep.
func (c *Client) Do(ctx context.Context, params map[string]string, headers map[string]string) (*Response, error) {
	payload, err := json.Marshal(gqlRequest{Query: params["query"]})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := normalizeToken(c.token); token != "" {
		req.Header.Set("Authorization", token)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, ErrRateLimited
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var gqlResp gqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if gqlResp.ErrorCode == "ComplexityException" || gqlResp.ErrorCode == "RATE_LIMIT_EXCEEDED" {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, gqlResp.ErrorMsg)
	}
	if len(gqlResp.Errors) > 0 && isNull(gqlResp.Data) {
		return nil, gqlErrors{Errors: gqlResp.Errors}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) Me(ctx context.Context) (User, error) {
	resp, err := c.Do(ctx, map[string]string{"query": "query{me{id,name}}"}, map[string]string{"API-Version": APIVersion})
	if err != nil {
		return User{}, err
	}
	var out struct {
		Data struct {
			Me *User `json:"me"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return User{}, fmt.Errorf("decode data: %w", err)
	}
	if out.Data.Me == nil {
		return User{}, ErrNotFound
	}
	return *out.Data.Me, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func normalizeToken(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "bearer ") {
		return strings.TrimSpace(trimmed[7:])
	}
	return trimmed
}
