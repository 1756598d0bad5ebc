package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/encodeous/vrouter/state"
	"github.com/go-json-experiment/json"
)

// Client talks to the management api of a running simulation.
type Client struct {
	base string
	http *http.Client
}

func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: state.ApiRequestTimeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var p Problem
		if err := json.UnmarshalRead(resp.Body, &p); err != nil || p.Title == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return &p
	}
	if out == nil {
		return nil
	}
	return json.UnmarshalRead(resp.Body, out)
}

func (c *Client) ListRouters(ctx context.Context) ([]Router, error) {
	var out []Router
	if err := c.do(ctx, http.MethodGet, "/api/routers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetRouter(ctx context.Context, id state.RouterId) (*Router, error) {
	var out Router
	if err := c.do(ctx, http.MethodGet, "/api/routers/"+url.PathEscape(string(id)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRouter(ctx context.Context, req CreateRouter) (*Router, error) {
	var out Router
	if err := c.do(ctx, http.MethodPost, "/api/routers", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteRouter(ctx context.Context, id state.RouterId) error {
	return c.do(ctx, http.MethodDelete, "/api/routers/"+url.PathEscape(string(id)), nil, nil)
}

func (c *Client) SetRoute(ctx context.Context, id state.RouterId, dst string, via state.RouterId) error {
	return c.do(ctx, http.MethodPut, "/api/routers/"+url.PathEscape(string(id))+"/routes", Route{Dst: dst, Via: via}, nil)
}

func (c *Client) DeleteRoute(ctx context.Context, id state.RouterId, dst string) error {
	return c.do(ctx, http.MethodDelete, "/api/routers/"+url.PathEscape(string(id))+"/routes/"+dst, nil, nil)
}

func (c *Client) SendPacket(ctx context.Context, id state.RouterId, req SendPacket) error {
	return c.do(ctx, http.MethodPost, "/api/routers/"+url.PathEscape(string(id))+"/packets", req, nil)
}

func (c *Client) Reach(ctx context.Context, id state.RouterId, dst string) (*Reach, error) {
	var out Reach
	if err := c.do(ctx, http.MethodGet, "/api/routers/"+url.PathEscape(string(id))+"/reach/"+url.PathEscape(dst), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListLinks(ctx context.Context) ([]Link, error) {
	var out []Link
	if err := c.do(ctx, http.MethodGet, "/api/links", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateLink(ctx context.Context, l Link) error {
	return c.do(ctx, http.MethodPost, "/api/links", l, nil)
}

func (c *Client) DeleteLink(ctx context.Context, a, b state.RouterId) error {
	return c.do(ctx, http.MethodDelete, "/api/links/"+url.PathEscape(string(a))+"/"+url.PathEscape(string(b)), nil, nil)
}
