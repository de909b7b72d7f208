// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpcclient is a thin per-endpoint JSON-RPC and REST client used
// by the relayer's concrete RpcAdapter implementations, covering both the
// native/premium JSON-RPC providers and the REST-submit relays.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/luxfi/qtrade-relayer/utils/rpc"
)

// Client wraps one provider endpoint. JSON-RPC calls go through
// utils/rpc.SendJSONRequest (gorilla/rpc/v2/json2 envelope); REST calls use
// a plain http.Client POST with a JSON body, matching the REST relays'
// `POST <base>/api/v2/submit` wire shape.
type Client struct {
	endpoint *url.URL
	options  []rpc.Option
	http     *http.Client
}

// New constructs a Client for endpoint. Returns an error if endpoint does
// not parse as a URL.
func New(endpoint string, options ...rpc.Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: parse endpoint %q: %w", endpoint, err)
	}
	return &Client{
		endpoint: u,
		options:  options,
		http:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Endpoint returns the configured endpoint URL string.
func (c *Client) Endpoint() string { return c.endpoint.String() }

// Call issues a JSON-RPC 2.0 request and decodes the result into reply.
func (c *Client) Call(ctx context.Context, method string, params, reply interface{}) error {
	u := *c.endpoint
	return rpc.SendJSONRequest(ctx, &u, method, params, reply, c.options...)
}

// PostJSON issues a bare REST POST of body to path (relative to the
// endpoint's base), decoding the JSON response into reply. Used by the
// REST-submit relays (Jito, Bloxroute, Nextblock) whose wire shape is not
// JSON-RPC 2.0.
func (c *Client) PostJSON(ctx context.Context, path string, headers map[string]string, body, reply interface{}) error {
	u := *c.endpoint
	u.Path = joinPath(u.Path, path)

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("rpcclient: encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("rpcclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpcclient: issue request: %w", err)
	}
	defer rpc.CleanlyCloseBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("rpcclient: received status %d: %s", resp.StatusCode, string(b))
	}

	if reply == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return fmt.Errorf("rpcclient: decode response: %w", err)
	}
	return nil
}

func joinPath(base, rel string) string {
	if base == "" {
		return rel
	}
	if base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if len(rel) > 0 && rel[0] != '/' {
		rel = "/" + rel
	}
	return base + rel
}
