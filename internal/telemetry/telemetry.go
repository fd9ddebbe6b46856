/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in, anonymous editor usage events and crash
// reports. Nothing is sent unless the user opted in and an endpoint is set.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "mattydesign/internal/log"
	"mattydesign/internal/version"
)

// Event names emitted by the editor.
const (
	EventDesignLoaded   = "design_loaded"
	EventDesignSaved    = "design_saved"
	EventDesignExported = "design_exported"
	EventImageInserted  = "image_inserted"
	EventObjectAdded    = "object_added"
)

// Config holds runtime configuration for telemetry and crash uploads.
//
// Environment variables (read by FromEnv):
//   - MDE_TELEMETRY_OPT_IN: "1", "true", "yes" or "on" to enable
//   - MDE_TELEMETRY_URL: endpoint receiving JSON events
//   - MDE_CRASH_UPLOAD_URL: endpoint receiving crash reports
//   - MDE_TELEMETRY_TIMEOUT_MS: request timeout, default 1500ms
//   - MDE_TELEMETRY_DEBUG: log send attempts
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("MDE_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("MDE_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("MDE_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("MDE_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("MDE_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Payload is one event on the wire. Session is random per process and never
// tied to the signed-in user.
type Payload struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Session string         `json:"session"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events and posts them from a background goroutine. Events
// are dropped when the queue is full or a request fails.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	session string
	q       chan Payload
	pending atomic.Int64
	once    sync.Once
	closed  chan struct{}
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
)

// Default returns the process-wide client configured from the environment.
func Default() *Client {
	defaultOnce.Do(func() { defaultClient = New(FromEnv()) })
	return defaultClient
}

func New(cfg Config) *Client {
	c := &Client{
		cfg:     cfg,
		log:     applog.WithComponent("telemetry"),
		cli:     &http.Client{Timeout: cfg.Timeout},
		session: uuid.NewString(),
		q:       make(chan Payload, 64),
		closed:  make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events will be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues name with props. props must not carry design content or
// user identifiers. Safe on a nil client.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	p := Payload{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Session: c.session,
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		p.Props = make(map[string]any, len(props))
		for k, v := range props {
			p.Props[k] = v
		}
	}
	c.pending.Add(1)
	select {
	case c.q <- p:
	default:
		c.pending.Add(-1)
	}
}

// Flush waits until queued events are sent, ctx ends, or 500ms pass.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for c.pending.Load() > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close stops the sender. Queued events are discarded.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.closed) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case p := <-c.q:
			c.post(c.cfg.EventsURL, "application/json", mustJSON(p))
			c.pending.Add(-1)
		}
	}
}

func mustJSON(p Payload) []byte {
	b, err := json.Marshal(p)
	if err != nil {
		// props held something unencodable; keep the envelope
		p.Props = nil
		b, _ = json.Marshal(p)
	}
	return b
}

func (c *Client) post(url, contentType string, body []byte) bool {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Telemetry-Session", c.session)
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.String("url", url), slog.Any("err", err))
		}
		return false
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry sent", slog.String("url", url), slog.Int("status", resp.StatusCode))
	}
	return resp.StatusCode < 300
}

// UploadCrash posts a crash report synchronously, since the process is
// about to exit. It reports whether the upload succeeded.
func (c *Client) UploadCrash(report []byte) bool {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return false
	}
	return c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", report)
}
