/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type sink struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
	session string
}

func (s *sink) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.events = append(s.events, b)
		s.session = r.Header.Get("X-Telemetry-Session")
		s.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.crashes = append(s.crashes, b)
		s.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_EventAndUploadCrash(t *testing.T) {
	var s sink
	srv := s.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()

	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}
	c.Event(EventDesignSaved, map[string]any{"result": "created", "objects": 3})
	c.Flush(context.Background())

	s.mu.Lock()
	events := append([][]byte(nil), s.events...)
	session := s.session
	s.mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	var p Payload
	if err := json.Unmarshal(events[0], &p); err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if p.Name != EventDesignSaved || p.TS == "" || p.Props["result"] != "created" {
		t.Fatalf("unexpected payload %+v", p)
	}
	if p.Session == "" || p.Session != session {
		t.Fatalf("session header %q does not match payload %q", session, p.Session)
	}

	if !c.UploadCrash([]byte("STACKTRACE")) {
		t.Fatalf("crash upload should succeed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.crashes) != 1 || string(s.crashes[0]) != "STACKTRACE" {
		t.Fatalf("crash body = %q", s.crashes)
	}
}

func TestClient_DisabledAndEmptyEventName(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	c.Event("ignored", nil)
	if c.UploadCrash([]byte("ignored")) {
		t.Fatalf("disabled client must not upload")
	}

	c2 := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer c2.Close()
	c2.Event("", nil)
	c2.Flush(context.Background())
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}

	var nilClient *Client
	nilClient.Event(EventObjectAdded, nil)
	nilClient.Flush(context.Background())
	nilClient.Close()
}

func TestClient_SendFailureIsSwallowed(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	defer c.Close()
	c.Event("err", map[string]any{"a": 1})
	c.Flush(context.Background())
	if c.UploadCrash([]byte("oops")) {
		t.Fatalf("upload to a closed port cannot succeed")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MDE_TELEMETRY_OPT_IN", "yes")
	t.Setenv("MDE_TELEMETRY_URL", " http://127.0.0.1:0 ")
	t.Setenv("MDE_CRASH_UPLOAD_URL", "")
	t.Setenv("MDE_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL != "http://127.0.0.1:0" || cfg.Timeout != 100*time.Millisecond || cfg.CrashURL != "" {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}
}
