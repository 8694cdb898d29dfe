// Package client talks to a running presence server's admin endpoints.
package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/orchestra-mcp/presence/src/service"
	"github.com/orchestra-mcp/presence/src/types"
)

// ErrNotFound is returned for 404 replies, which is also what a wrong
// admin key produces.
var ErrNotFound = errors.New("not found")

type Client struct {
	url  string
	http *req.Client
}

// New creates a client for the server at url.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:  strings.TrimRight(url, "/"),
		http: req.C().SetTimeout(timeout).SetUserAgent("presenced-cli"),
	}
}

// Control runs a freeze, unfreeze or status action.
func (c *Client) Control(key string, action service.ControlAction, eventID string) (service.ControlResult, error) {
	var out service.ControlResult
	body := map[string]any{"key": key, "action": action}
	if eventID != "" {
		body["eventId"] = eventID
	}
	err := c.do(&out, func(r *req.Request, url string) (*req.Response, error) {
		return r.SetBodyJsonMarshal(body).Post(url + "/api/control")
	})
	return out, err
}

// Snapshot fetches the polling view for an event and/or challenge.
func (c *Client) Snapshot(eventID, challengeID string) (types.Snapshot, error) {
	var out types.Snapshot
	err := c.do(&out, func(r *req.Request, url string) (*req.Response, error) {
		if eventID != "" {
			r.SetQueryParam("eventId", eventID)
		}
		if challengeID != "" {
			r.SetQueryParam("challengeId", challengeID)
		}
		return r.Get(url + "/api/snapshot")
	})
	return out, err
}

func (c *Client) do(out any, exec func(*req.Request, string) (*req.Response, error)) error {
	resp, err := exec(c.http.R(), c.url)
	if err != nil {
		return fmt.Errorf("request %s: %w", c.url, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("request ended with %d status, %s", resp.StatusCode, resp.String())
	}
	if err := resp.UnmarshalJson(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
