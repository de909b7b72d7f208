// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"net/http"
	"net/url"
)

// Option configures a JSON-RPC request built by SendJSONRequest.
type Option func(*requestOptions)

type requestOptions struct {
	headers     http.Header
	queryParams url.Values
}

func NewOptions(ops []Option) *requestOptions {
	o := &requestOptions{
		headers:     make(http.Header),
		queryParams: make(url.Values),
	}
	for _, op := range ops {
		op(o)
	}
	return o
}

// WithHeader sets an arbitrary header on the outgoing request.
func WithHeader(key, value string) Option {
	return func(o *requestOptions) {
		o.headers.Set(key, value)
	}
}

// WithBearerToken sets the Authorization header to a bearer token. The
// premium providers (Helius, QuickNode, Temporal) do not use it; their API
// key travels as a URL query parameter.
func WithBearerToken(token string) Option {
	return func(o *requestOptions) {
		o.headers.Set("Authorization", "Bearer "+token)
	}
}

func WithQueryParam(key, value string) Option {
	return func(o *requestOptions) {
		o.queryParams.Set(key, value)
	}
}
