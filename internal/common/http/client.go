// internal/common/http/client.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is a JSON-over-HTTP client for collaborator services.
type Client struct {
	r *resty.Client
}

// NewClient builds a client rooted at baseURL. Server errors and transport
// failures are retried twice with backoff.
func NewClient(baseURL string, timeout time.Duration, apiKey string) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})
	if apiKey != "" {
		r.SetAuthToken(apiKey)
	}
	return &Client{r: r}
}

// Response is the raw body and status of a completed request.
type Response struct {
	StatusCode int
	Body       []byte
}

// Get issues a GET against path, substituting {name} placeholders from pathParams.
func (c *Client) Get(ctx context.Context, path string, pathParams map[string]string) (*Response, error) {
	resp, err := c.r.R().
		SetContext(ctx).
		SetPathParams(pathParams).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}
