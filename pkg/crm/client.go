// Package crm is a thin client for the CRM's v3 REST API: object search and
// list endpoints with transparent pagination, owners, and deal pipelines.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/utils"
)

// Client is a wrapper around an http.Client bound to one CRM account.
type Client struct {
	baseURL   string
	token     string
	client    *http.Client
	logger    *zap.Logger
	pageLimit int
}

// Opts is the set of options for a new Client.
type Opts struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	PageLimit  int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New creates a new CRM client with the given options.
func New(o Opts) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.PageLimit <= 0 || o.PageLimit > 100 {
		// The API caps page size at 100.
		o.PageLimit = 100
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	return &Client{
		baseURL:   o.BaseURL,
		token:     o.Token,
		client:    client,
		logger:    o.Logger,
		pageLimit: o.PageLimit,
	}
}

// doJSON sends one request and decodes the JSON response into out.
// Non-2xx statuses are returned as errors; the body is always drained and
// closed so the underlying connection can be reused.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body *bytes.Reader
	if payload != nil {
		b, mErr := json.Marshal(payload)
		if mErr != nil {
			return mErr
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		_ = utils.DrainAndClose(resp.Body)
		return fmt.Errorf("http %d from %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			_ = utils.DrainAndClose(resp.Body)
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}

	if cerr := utils.DrainAndClose(resp.Body); cerr != nil {
		return cerr
	}
	return nil
}
