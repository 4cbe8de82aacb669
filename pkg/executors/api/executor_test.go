package api

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(cfg Config) *Executor {
	return NewExecutor(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func apiAction(cfg *models.APIConfig) *models.Action {
	return models.NewAction("test_api", cfg)
}

func strPtr(s string) *string { return &s }

func TestResolve_URLAndBearerMasking(t *testing.T) {
	cfg := &models.APIConfig{Method: "GET", URLTemplate: "https://x/{{id}}"}
	cred := &models.AuthCredential{AuthType: models.AuthTypeBearer, BearerToken: "s3cret"}

	req := Resolve(cfg, cred, map[string]any{"id": "42"})

	assert.Equal(t, "https://x/42", req.URL)
	assert.Equal(t, "Bearer s3cret", req.Headers["Authorization"])
	assert.NotContains(t, req.Headers, "Content-Type")

	redacted := req.Redacted()
	assert.Equal(t, "Bearer ****", redacted.Headers["Authorization"])
	assert.Equal(t, "s3cret", req.Headers["Authorization"][len("Bearer "):], "redaction copies headers")
}

func TestResolve_CustomHeadersOverrideTemplateHeaders(t *testing.T) {
	cfg := &models.APIConfig{
		Method:       "post",
		URLTemplate:  "https://x",
		Headers:      map[string]string{"x-tenant": "{{tenant}}", "X-Trace": "abc"},
		BodyTemplate: strPtr(`{"tenant":"{{tenant}}"}`),
	}
	cred := &models.AuthCredential{
		AuthType:      models.AuthTypeCustomHeaders,
		CustomHeaders: map[string]string{"X-Tenant": "from-credential"},
	}

	req := Resolve(cfg, cred, map[string]any{"tenant": "acme"})

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "from-credential", req.Headers["X-Tenant"])
	assert.NotContains(t, req.Headers, "x-tenant")
	assert.Equal(t, "application/json", req.Headers["Content-Type"])
	assert.Equal(t, `{"tenant":"acme"}`, *req.Body)

	redacted := req.Redacted()
	assert.Equal(t, models.SecretMask, redacted.Headers["X-Tenant"], "credential headers are always secret")
	assert.Equal(t, "abc", redacted.Headers["X-Trace"])
}

func TestRedact(t *testing.T) {
	got := Redact(map[string]string{
		"Authorization": "Basic abc",
		"X-API-KEY":     "k",
		"Token":         "t",
		"Accept":        "application/json",
	})

	assert.Equal(t, map[string]string{
		"Authorization": models.SecretMask,
		"X-API-KEY":     models.SecretMask,
		"Token":         models.SecretMask,
		"Accept":        "application/json",
	}, got)
}

func TestExecute_JSONResponse(t *testing.T) {
	var gotAuth, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temp": 21}`))
	}))
	defer server.Close()

	action := apiAction(&models.APIConfig{
		Method:       "POST",
		URLTemplate:  server.URL + "/weather/{{city}}",
		BodyTemplate: strPtr(`{"city":"{{city}}"}`),
	})
	cred := &models.AuthCredential{AuthType: models.AuthTypeBearer, BearerToken: "tok"}

	result, err := newTestExecutor(Config{}).Execute(context.Background(), action, cred, map[string]any{"city": "Tokyo"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, map[string]any{"temp": float64(21)}, result.Data)
	assert.Equal(t, models.ActionTypeAPI, result.ActionType)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, `{"city":"Tokyo"}`, gotBody)
	assert.Equal(t, server.URL+"/weather/Tokyo", result.ResolvedRequest.URL)
	assert.Equal(t, "Bearer ****", result.ResolvedRequest.Headers["Authorization"])
}

func TestExecute_GETDoesNotSendBody(t *testing.T) {
	var gotLength int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.ContentLength
		_, _ = w.Write([]byte("plain"))
	}))
	defer server.Close()

	action := apiAction(&models.APIConfig{Method: "GET", URLTemplate: server.URL, BodyTemplate: strPtr("ignored")})

	result, err := newTestExecutor(Config{}).Execute(context.Background(), action, nil, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "plain", result.Data)
	assert.Zero(t, gotLength)
}

func TestExecute_ImageResponse(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer server.Close()

	result, err := newTestExecutor(Config{}).Execute(context.Background(), apiAction(&models.APIConfig{URLTemplate: server.URL}), nil, nil)
	require.NoError(t, err)

	require.NotNil(t, result.Image)
	assert.Equal(t, "image/png", result.Image.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(png), result.Image.Data)
	assert.Nil(t, result.Data)
}

func TestExecute_Non2xxIsFailureWithStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such city"}`))
	}))
	defer server.Close()

	result, err := newTestExecutor(Config{}).Execute(context.Background(), apiAction(&models.APIConfig{URLTemplate: server.URL}), nil, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, http.StatusNotFound, result.Status)
	assert.Equal(t, `HTTP 404: {"message":"no such city"}`, result.Error)
	assert.NotNil(t, result.ResolvedRequest)
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	action := apiAction(&models.APIConfig{URLTemplate: server.URL, TimeoutMS: 50})

	start := time.Now()
	result, err := newTestExecutor(Config{}).Execute(context.Background(), action, nil, nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, result.Success)
	assert.Zero(t, result.Status)
	assert.Equal(t, "request timed out after 50ms", result.Error)
	assert.NotNil(t, result.ResolvedRequest)
}

func TestExecute_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	result, err := newTestExecutor(Config{}).Execute(context.Background(), apiAction(&models.APIConfig{URLTemplate: url}), nil, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Zero(t, result.Status)
	assert.Contains(t, result.Error, "request failed")
	assert.Equal(t, url, result.ResolvedRequest.URL)
}

func TestExecute_ResponseTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	result, err := newTestExecutor(Config{MaxResponseBytes: 4}).Execute(context.Background(), apiAction(&models.APIConfig{URLTemplate: server.URL}), nil, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "response exceeds 4 bytes", result.Error)
}

func TestExecute_MissingConfig(t *testing.T) {
	action := &models.Action{Name: "broken", Type: models.ActionTypeAPI}

	_, err := newTestExecutor(Config{}).Execute(context.Background(), action, nil, nil)
	assert.ErrorIs(t, err, models.ErrMissingConfig)
}
