// Package api executes api actions: it resolves the HTTP request, applies the
// linked credential, performs the call and classifies the response.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/template"
)

// DefaultMaxResponseBytes bounds how much of an upstream body is read.
const DefaultMaxResponseBytes int64 = 10 << 20

// Config holds the executor settings fixed at startup.
type Config struct {
	// Client is used for every call. Per-action timeouts are applied through the request context.
	Client *http.Client
	// MaxResponseBytes bounds the upstream body. Zero means DefaultMaxResponseBytes.
	MaxResponseBytes int64
}

// Executor performs api actions. It is safe for concurrent use.
type Executor struct {
	client           *http.Client
	maxResponseBytes int64
	logger           *slog.Logger
}

// NewExecutor creates an api executor.
func NewExecutor(logger *slog.Logger, cfg Config) *Executor {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}

	return &Executor{
		client:           client,
		maxResponseBytes: maxBytes,
		logger:           logger.With("module", "api_executor"),
	}
}

// Request is a fully resolved HTTP call. Headers hold real secret values and
// must never be shown; use Redacted for display and audit.
type Request struct {
	Method        string
	URL           string
	Headers       map[string]string
	Body          *string
	Timeout       time.Duration
	secretHeaders []string
}

// Resolve builds the request for an api action. Credential headers are applied
// after the template headers so they win on conflicting names.
func Resolve(cfg *models.APIConfig, credential *models.AuthCredential, params map[string]any) *Request {
	req := &Request{
		Method:  cfg.HTTPMethod(),
		URL:     template.Resolve(cfg.URLTemplate, params, template.ModeURLEncoded),
		Headers: template.ResolveMap(cfg.Headers, params),
		Body:    template.ResolveOptional(cfg.BodyTemplate, params, template.ModeRaw),
		Timeout: time.Duration(cfg.Timeout()) * time.Millisecond,
	}

	if req.Headers == nil {
		req.Headers = map[string]string{}
	}

	if credential != nil {
		for name, value := range credential.Headers() {
			setHeader(req.Headers, name, value)
			req.secretHeaders = append(req.secretHeaders, name)
		}
	}

	if cfg.HasBody() && headerValue(req.Headers, "Content-Type") == "" {
		req.Headers["Content-Type"] = "application/json"
	}

	return req
}

// Redacted returns the audit snapshot of the request with secrets masked.
func (r *Request) Redacted() *models.ResolvedRequest {
	return &models.ResolvedRequest{
		Method:  r.Method,
		URL:     r.URL,
		Headers: Redact(r.Headers, r.secretHeaders...),
		Body:    r.Body,
	}
}

// Execute runs an api action. Upstream failures are reported in the result;
// only a missing config is returned as an error.
func (e *Executor) Execute(ctx context.Context, action *models.Action, credential *models.AuthCredential, params map[string]any) (*models.Result, error) {
	cfg := action.APIConfig()
	if cfg == nil {
		return nil, fmt.Errorf("%w: api action %s has no api_config", models.ErrMissingConfig, action.Name)
	}

	req := Resolve(cfg, credential, params)
	result := e.Do(ctx, req)

	return result, nil
}

// Do performs a resolved request and classifies the response.
func (e *Executor) Do(ctx context.Context, req *Request) *models.Result {
	result := &models.Result{
		ActionType:      models.ActionTypeAPI,
		ResolvedRequest: req.Redacted(),
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil && bodyAllowed(req.Method) {
		body = strings.NewReader(*req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)

		return result
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Error = fmt.Sprintf("request timed out after %dms", req.Timeout.Milliseconds())
		} else {
			result.Error = fmt.Sprintf("request failed: %v", err)
		}

		e.logger.WarnContext(ctx, "upstream call failed", "method", req.Method, "url", req.URL, "error", err)

		return result
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			e.logger.WarnContext(ctx, "failed to close response body", "error", err)
		}
	}()

	result.Status = resp.StatusCode

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, e.maxResponseBytes+1))
	if err != nil {
		result.Error = fmt.Sprintf("failed to read response: %v", err)

		return result
	}

	if int64(len(respBody)) > e.maxResponseBytes {
		result.Error = fmt.Sprintf("response exceeds %d bytes", e.maxResponseBytes)

		return result
	}

	classify(result, resp.Header.Get("Content-Type"), respBody)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Error = (&HTTPError{StatusCode: resp.StatusCode, Message: result.DataString()}).Error()

		return result
	}

	result.Success = true

	return result
}

// HTTPError describes a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}

	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func classify(result *models.Result, contentType string, body []byte) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && strings.HasPrefix(mediaType, "image/") {
		result.Image = &models.Image{
			MimeType: mediaType,
			Data:     base64.StdEncoding.EncodeToString(body),
		}

		return
	}

	var data any
	if err := json.Unmarshal(body, &data); err == nil {
		result.Data = data

		return
	}

	result.Data = string(body)
}

func bodyAllowed(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}
