// Package api is the REST client for the Liberty backend: authentication,
// call resources, and notifications. Paginated endpoints use the standard
// results/count/next envelope.
package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 15 * time.Second

// Client wraps the HTTP API.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a client for the given base URL. Token may be empty
// until Login is called.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		r.SetAuthToken(token)
	}
	return &Client{http: r, logger: logger.With("component", "api")}
}

// SetToken replaces the bearer token, e.g. after login or refresh.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// Error is an API-level failure with the server's detail message.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("api: unexpected status %d", e.Status)
}

// checkResponse converts transport and non-2xx failures into errors.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	var body struct {
		Detail string `json:"detail"`
	}
	_ = jsonUnmarshal(resp.Body(), &body)
	return &Error{Status: resp.StatusCode(), Detail: body.Detail}
}
