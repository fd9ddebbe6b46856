/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"mattydesign/internal/domain"
	applog "mattydesign/internal/log"
	"mattydesign/internal/session"
	"mattydesign/internal/version"
)

// maxResponseBytes bounds response bodies; designs embed data URLs.
const maxResponseBytes = 64 << 20

// Client is the HTTP client for the designs service. Every call takes the
// credential resolved by its caller; the client itself holds none.
type Client struct {
	BaseURL string
	client  *http.Client
	log     *slog.Logger
}

// Options tune the underlying HTTP client.
type Options struct {
	Timeout     time.Duration
	TLSInsecure bool
	// HTTPClient replaces the default client entirely when set.
	HTTPClient *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
		if opts.TLSInsecure {
			tr := http.DefaultTransport.(*http.Transport).Clone()
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
			hc.Transport = tr
		}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
		log:     applog.WithComponent("backend"),
	}
}

// APIError is a non-success response from the service.
type APIError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("designs service: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("designs service: %d %s", e.Status, http.StatusText(e.Status))
}

// NotFound reports whether the service answered 404.
func (e *APIError) NotFound() bool { return e.Status == http.StatusNotFound }

// GetDesign fetches one design.
func (c *Client) GetDesign(ctx context.Context, cred session.Credential, id string) (domain.Design, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Design{}, errors.New("design id is required")
	}
	return c.doDesign(ctx, cred, http.MethodGet, "/designs/"+url.PathEscape(id), nil)
}

// CreateDesign uploads a new design.
func (c *Client) CreateDesign(ctx context.Context, cred session.Credential, p domain.SavePayload) (domain.Design, error) {
	return c.doDesign(ctx, cred, http.MethodPost, "/designs/upload", &p)
}

// UpdateDesign replaces the stored design id.
func (c *Client) UpdateDesign(ctx context.Context, cred session.Credential, id string, p domain.SavePayload) (domain.Design, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Design{}, errors.New("design id is required")
	}
	return c.doDesign(ctx, cred, http.MethodPut, "/designs/"+url.PathEscape(id), &p)
}

func (c *Client) doDesign(ctx context.Context, cred session.Credential, method, path string, payload *domain.SavePayload) (domain.Design, error) {
	var resp designResponse
	if err := c.doJSON(ctx, cred, method, path, payload, &resp); err != nil {
		return domain.Design{}, err
	}
	return resp.Design, nil
}

func (c *Client) doJSON(ctx context.Context, cred session.Credential, method, path string, body any, dest any) error {
	if !cred.Valid() {
		return session.ErrUnauthenticated
	}
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("Authorization", cred.Header())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	l := c.log.With(slog.String("method", method), slog.String("path", u.Path), slog.String("request_id", reqID))
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		l.Warn("request failed", slog.Any("err", err))
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	l = l.With(slog.Int("status", resp.StatusCode), slog.Duration("elapsed", time.Since(start)))
	if err != nil {
		l.Warn("read response failed", slog.Any("err", err))
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(data), RequestID: reqID}
		l.Warn("request rejected", slog.String("message", apiErr.Message))
		return apiErr
	}
	l.Debug("request ok", slog.Int("bytes", len(data)))
	if dest == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the message of a JSON error body ({"message": ...}
// or {"error": ...}); plain text bodies are used as-is when short.
func errorMessage(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		return body.Error
	}
	if data[0] != '<' && len(data) <= 200 {
		return string(data)
	}
	return ""
}
