package client

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

	"lendingcore/services/lending/server"
)

// Error is a non-2xx answer from the lending API.
type Error struct {
	Status int
	Body   server.ErrorBody
}

func (e *Error) Error() string {
	if e.Body.Error == "" {
		return fmt.Sprintf("lending api: status %d", e.Status)
	}
	return fmt.Sprintf("lending api: %s (%s, status %d)", e.Body.Error, e.Body.Kind, e.Status)
}

// Client provides a thin wrapper around the lending JSON API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New constructs a client for baseURL. Token is sent as a bearer token when
// non-empty.
func New(baseURL, token string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: base, token: strings.TrimSpace(token), http: httpClient}, nil
}

func (c *Client) Supply(ctx context.Context, req server.SupplyRequest) (*server.AmountResponse, error) {
	var out server.AmountResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/supply", req, &out)
}

func (c *Client) Withdraw(ctx context.Context, req server.WithdrawRequest) (*server.AmountResponse, error) {
	var out server.AmountResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/withdraw", req, &out)
}

func (c *Client) Transfer(ctx context.Context, req server.TransferRequest) (*server.AmountResponse, error) {
	var out server.AmountResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/transfer", req, &out)
}

func (c *Client) SetCollateral(ctx context.Context, req server.CollateralRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/collateral", req, nil)
}

func (c *Client) Borrow(ctx context.Context, req server.BorrowRequest) (*server.AmountResponse, error) {
	var out server.AmountResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/borrow", req, &out)
}

func (c *Client) Repay(ctx context.Context, req server.RepayRequest) (*server.AmountResponse, error) {
	var out server.AmountResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/repay", req, &out)
}

func (c *Client) Reserves(ctx context.Context) ([]server.ReserveView, error) {
	var out []server.ReserveView
	return out, c.do(ctx, http.MethodGet, "/v1/reserves", nil, &out)
}

func (c *Client) Account(ctx context.Context, user string) (*server.AccountView, error) {
	var out server.AccountView
	return &out, c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(user), nil, &out)
}

func (c *Client) Position(ctx context.Context, user, asset string) (*server.PositionView, error) {
	var out server.PositionView
	path := "/v1/accounts/" + url.PathEscape(user) + "/positions/" + url.PathEscape(asset)
	return &out, c.do(ctx, http.MethodGet, path, nil, &out)
}

// EventQuery narrows Events. Zero values are omitted.
type EventQuery struct {
	Reserve string
	User    string
	Type    string
	After   uint64
	Limit   int
}

func (c *Client) Events(ctx context.Context, q EventQuery) ([]server.EventView, error) {
	values := url.Values{}
	if q.Reserve != "" {
		values.Set("reserve", q.Reserve)
	}
	if q.User != "" {
		values.Set("user", q.User)
	}
	if q.Type != "" {
		values.Set("type", q.Type)
	}
	if q.After > 0 {
		values.Set("after", strconv.FormatUint(q.After, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/v1/events"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out []server.EventView
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) Pause(ctx context.Context, module string) error {
	return c.do(ctx, http.MethodPost, "/v1/admin/pause", server.ModuleRequest{Module: module}, nil)
}

func (c *Client) Resume(ctx context.Context, module string) error {
	return c.do(ctx, http.MethodPost, "/v1/admin/resume", server.ModuleRequest{Module: module}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&apiErr.Body)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
