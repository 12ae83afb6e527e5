// Package httpc provides the HTTP client the CLI uses to drive a running
// proctor daemon. Use this instead of http.DefaultClient to ensure timeouts
// are set.
package httpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Default timeouts for HTTP operations. Starting a monitor opens devices,
// so requests get more time than a typical API call.
const (
	DefaultTimeout         = 60 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// NewClient creates a new HTTP client with the specified timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Kind    string `json:"kind"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("proctor api: %d %s (%s)", e.Status, e.Message, e.Kind)
	}
	return fmt.Sprintf("proctor api: %d %s", e.Status, e.Message)
}

// API talks to a proctor daemon.
type API struct {
	base   string
	client *http.Client
}

// NewAPI creates a client for the daemon at base, e.g. "http://localhost:8090".
// A bare host:port or :port is accepted.
func NewAPI(base string) *API {
	if strings.HasPrefix(base, ":") {
		base = "localhost" + base
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &API{
		base:   strings.TrimRight(base, "/"),
		client: NewClient(DefaultTimeout),
	}
}

// Base returns the daemon base URL.
func (a *API) Base() string {
	return a.base
}

// Get fetches path and decodes the JSON body into v.
func (a *API) Get(ctx context.Context, path string, v any) error {
	return a.Do(ctx, http.MethodGet, path, v)
}

// Post sends an empty POST to path and decodes the JSON body into v.
func (a *API) Post(ctx context.Context, path string, v any) error {
	return a.Do(ctx, http.MethodPost, path, v)
}

// Delete sends a DELETE to path and decodes the JSON body into v.
func (a *API) Delete(ctx context.Context, path string, v any) error {
	return a.Do(ctx, http.MethodDelete, path, v)
}

// Do performs a request without a body. v may be nil.
func (a *API) Do(ctx context.Context, method, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("proctor api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("proctor api: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("proctor api: decode response: %w", err)
	}
	return nil
}
