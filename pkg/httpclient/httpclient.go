package httpclient

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

type HTTPClient interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (*http.Response, error)
	Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error)
}

type Client struct {
	client *http.Client
}

func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &Client{client: &http.Client{Timeout: timeout}}
}

func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.client.Do(req)
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.client.Do(req)
}
