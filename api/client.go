// Package api fetches project documents over the coordination server's HTTP
// interface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

const (
	getDocPath   = "/iot/aliot/getDoc"
	getFieldPath = "/iot/aliot/getField"

	defaultTimeout = 10 * time.Second
)

var (
	// ErrForbidden means the object may not read the document, or its project
	// is missing.
	ErrForbidden = errors.New("request forbidden: permission denied or project missing")
	// ErrServerFailure means the server failed while answering.
	ErrServerFailure = errors.New("server failure")
)

// StatusError is returned for unexpected status codes.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, strings.TrimSpace(e.Body))
}

type Client struct {
	BaseURL  string
	ObjectID string
	HTTP     *http.Client
}

// NewHTTPClient builds an HTTP client that negotiates HTTP/2 over TLS.
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// New returns a client reading the documents of objectID from baseURL.
func New(baseURL, objectID string) (*Client, error) {
	httpClient, err := NewHTTPClient(defaultTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		ObjectID: objectID,
		HTTP:     httpClient,
	}, nil
}

// GetDoc returns the whole project document.
func (c *Client) GetDoc(ctx context.Context) (any, error) {
	return c.post(ctx, getDocPath, url.Values{"id": {c.ObjectID}})
}

// GetField returns one field of the project document.
func (c *Client) GetField(ctx context.Context, field string) (any, error) {
	return c.post(ctx, getFieldPath, url.Values{"id": {c.ObjectID}, "field": {field}})
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		if len(strings.TrimSpace(string(body))) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return v, nil
	case http.StatusForbidden:
		return nil, ErrForbidden
	case http.StatusInternalServerError:
		return nil, ErrServerFailure
	default:
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
}
