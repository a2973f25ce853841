package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultServer is used when neither -server nor ADMINKIT_SERVER is set.
const DefaultServer = "http://localhost:8080"

// DefaultAPIPrefix matches the server's default route prefix.
const DefaultAPIPrefix = "/api/v1"

// envelope is the response body of every JSON API call.
type envelope struct {
	Status  bool            `json:"status"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a failed API call.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d, code %d)", e.Message, e.StatusCode, e.Code)
}

// Client calls the adminkit API.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for server. token may be empty for public
// endpoints.
func NewClient(server, prefix, token string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(server, "/")+prefix).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusServiceUnavailable
		})
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

// call sends one request and decodes the envelope data into out.
func (c *Client) call(ctx context.Context, method, path string, query map[string]string, body, out interface{}) error {
	var env envelope
	req := c.http.R().SetContext(ctx).SetError(&env)
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Code: env.Code, Message: env.Message}
	}
	if resp.StatusCode() == http.StatusNoContent || out == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// download fetches a binary body.
func (c *Client) download(ctx context.Context, path string) ([]byte, error) {
	var env envelope
	resp, err := c.http.R().SetContext(ctx).SetError(&env).Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Code: env.Code, Message: env.Message}
	}
	return resp.Body(), nil
}

// options are the connection flags shared by every command.
type options struct {
	server string
	prefix string
	token  string
}

func addConnectionFlags(fs *flag.FlagSet) *options {
	o := &options{}
	server := os.Getenv("ADMINKIT_SERVER")
	if server == "" {
		server = DefaultServer
	}
	fs.StringVar(&o.server, "server", server, "adminkit server URL")
	fs.StringVar(&o.prefix, "prefix", DefaultAPIPrefix, "API path prefix")
	fs.StringVar(&o.token, "token", os.Getenv("ADMINKIT_TOKEN"), "access token (default: saved session)")
	return o
}

// client returns an authenticated client, loading the saved session when
// no token was given.
func (o *options) client() (*Client, error) {
	token := o.token
	if token == "" {
		s, err := loadSession()
		if errors.Is(err, errNoSession) {
			return nil, errors.New("not logged in: run `adminkit login` first")
		}
		if err != nil {
			return nil, err
		}
		if s.Server != "" && s.Server != o.server {
			return nil, fmt.Errorf("saved session is for %s, not %s", s.Server, o.server)
		}
		token = s.AccessToken
	}
	return NewClient(o.server, o.prefix, token), nil
}
