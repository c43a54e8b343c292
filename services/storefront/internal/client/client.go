// Package client calls the backend REST API the storefront fronts.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/pkg/pagination"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Page is one page of a backend list endpoint.
type Page[T any] struct {
	Items []T
	Meta  pagination.Meta
}

// Result converts the page into the storefront's paginated result.
func (p *Page[T]) Result() pagination.Result[T] {
	return pagination.NewResult(p.Items, p.Meta.Total, p.Meta.Params())
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type listEnvelope[T any] struct {
	Data []T             `json:"data"`
	Meta pagination.Meta `json:"meta"`
}

// base holds what every backend client shares.
type base struct {
	http    HTTPDoer
	baseURL string
	service string
}

func newBase(doer HTTPDoer, baseURL, service string) base {
	return base{http: doer, baseURL: strings.TrimRight(baseURL, "/"), service: service}
}

func (b *base) get(ctx context.Context, path string, query url.Values, token string, dst any) error {
	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("create %s request: %w", b.service, err)
	}
	return b.do(ctx, req, token, dst)
}

func (b *base) post(ctx context.Context, path string, body any, token string, dst any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal %s request: %w", b.service, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", b.service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(ctx, req, token, dst)
}

func (b *base) do(ctx context.Context, req *http.Request, token string, dst any) error {
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.http.Do(ctx, req)
	if err != nil {
		return apperrors.ServiceUnavailable(b.service+" service is unavailable", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, b.service)
	}
	defer resp.Body.Close()

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", b.service, err)
	}
	return nil
}
