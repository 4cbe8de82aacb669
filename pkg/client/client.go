// Package client talks to the action store REST API from a trusted host. It
// plans invocations remotely, lists actions and ships audit records.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gonbaum/composite/pkg/dispatcher"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
)

// DefaultTimeout bounds every request unless WithHTTPClient replaces the client.
const DefaultTimeout = 60 * time.Second

// ErrNoBaseURL is returned by New when the base URL is empty.
var ErrNoBaseURL = errors.New("base URL is required")

// APIError is a problem document returned by the API.
type APIError struct {
	Status int    `json:"status"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}

	if e.Title != "" {
		return e.Title
	}

	return "HTTP " + strconv.Itoa(e.Status)
}

// Is lets callers classify remote errors with the dispatcher sentinels.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusNotFound:
		return target == dispatcher.ErrActionNotFound
	case http.StatusBadRequest:
		return target == dispatcher.ErrInvalidParams
	default:
		return false
	}
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

// WithToken sends token as a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Plan asks the store to run an invocation as far as it can.
func (c *Client) Plan(ctx context.Context, req dispatcher.ExecuteRequest) (*models.Plan, error) {
	var plan models.Plan

	err := c.do(ctx, http.MethodPost, "/api/actions/execute", req, &plan)
	if err != nil {
		return nil, err
	}

	if plan.Action == "" {
		plan.Action = req.Action
	}

	return &plan, nil
}

// ListActions returns every enabled action sorted by name.
func (c *Client) ListActions(ctx context.Context) ([]*models.Action, error) {
	var actions []*models.Action

	for offset := 0; ; {
		query := url.Values{
			"enabled": {"true"},
			"sort_by": {"name"},
			"limit":   {strconv.Itoa(persistence.MaxLimit)},
			"offset":  {strconv.Itoa(offset)},
		}

		var page persistence.ActionListResult

		err := c.do(ctx, http.MethodGet, "/api/actions?"+query.Encode(), nil, &page)
		if err != nil {
			return nil, err
		}

		actions = append(actions, page.Actions...)

		if !page.HasNextPage || len(page.Actions) == 0 {
			return actions, nil
		}

		offset += len(page.Actions)
	}
}

// Write ships an audit record to the store.
func (c *Client) Write(ctx context.Context, entry *models.ActionLog) error {
	return c.do(ctx, http.MethodPost, "/api/action-logs", entry, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		apiErr.Status = resp.StatusCode

		return apiErr
	}

	if out == nil {
		return nil
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
