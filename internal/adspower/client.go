package adspower

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the AdsPower local API, which provisions remotely
// controllable browser instances per account.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Session is a started browser instance. Puppeteer holds the CDP
// websocket endpoint the automation client attaches to.
type Session struct {
	Puppeteer string
}

type startResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		WS struct {
			Puppeteer string `json:"puppeteer"`
			Selenium  string `json:"selenium"`
		} `json:"ws"`
	} `json:"data"`
}

// Start launches the browser for the given AdsPower account and returns
// its debugging endpoint. Any non-zero API code is a hard failure.
func (c *Client) Start(ctx context.Context, userID string) (*Session, error) {
	var out startResponse
	if err := c.get(ctx, "/api/v1/browser/start", userID, &out); err != nil {
		return nil, err
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("adspower start failed for %s: code=%d msg=%q", userID, out.Code, out.Msg)
	}
	if out.Data.WS.Puppeteer == "" {
		return nil, fmt.Errorf("adspower start for %s returned no debug endpoint", userID)
	}
	return &Session{Puppeteer: out.Data.WS.Puppeteer}, nil
}

// Stop shuts the account's browser down. Callers treat this as
// best-effort; a failed stop is logged, never propagated.
func (c *Client) Stop(ctx context.Context, userID string) error {
	var out startResponse
	if err := c.get(ctx, "/api/v1/browser/stop", userID, &out); err != nil {
		return err
	}
	if out.Code != 0 {
		return fmt.Errorf("adspower stop failed for %s: code=%d msg=%q", userID, out.Code, out.Msg)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path, userID string, out any) error {
	u := fmt.Sprintf("%s%s?user_id=%s", c.baseURL, path, url.QueryEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("adspower request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("adspower %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode adspower response: %w", err)
	}
	return nil
}
