package gateway

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

// Client posts instructions to a running gateway endpoint.
type Client struct {
	baseURL   string
	accessKey string
	http      *http.Client
}

func NewClient(baseURL, accessKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: accessKey,
		http:      &http.Client{Timeout: timeout},
	}
}

// Ask returns the decoded response for any status; error responses still carry a readonly message.
func (c *Client) Ask(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/assistant", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.accessKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.accessKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read gateway response: %w", err)
	}
	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil || out.Mode == "" {
		return Response{}, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, snippet(respBody))
	}
	return out, nil
}
