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
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"mattydesign/internal/domain"
	"mattydesign/internal/scene"
	"mattydesign/internal/session"
)

var cred = session.Credential{Token: "tok-123"}

func TestGetDesign_UnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/designs/d1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing X-Request-ID")
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "mattydesign/") {
			t.Errorf("User-Agent = %q", ua)
		}
		_, _ = io.WriteString(w, `{"design":{"_id":"d1","title":"T","jsonData":"{\"objects\":[]}","s3Url":"http://x/img.png"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", Options{})
	d, err := c.GetDesign(context.Background(), cred, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.ID != "d1" || d.S3URL != "http://x/img.png" || !d.JSONData.Quoted() {
		t.Fatalf("unexpected design %+v", d)
	}
	doc, err := d.JSONData.Decode()
	if err != nil || len(doc.Objects) != 0 {
		t.Fatalf("body: %v", err)
	}
}

func TestGetDesign_BareBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"_id":"d2","title":"Bare","jsonData":{"objects":[{"type":"rect"}]}}`)
	}))
	defer srv.Close()
	d, err := NewClient(srv.URL, Options{}).GetDesign(context.Background(), cred, "d2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.ID != "d2" || d.Title != "Bare" || d.JSONData.Quoted() {
		t.Fatalf("unexpected design %+v", d)
	}
}

func TestGetDesign_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Design not found"}`)
	}))
	defer srv.Close()
	_, err := NewClient(srv.URL, Options{}).GetDesign(context.Background(), cred, "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.NotFound() || apiErr.Message != "Design not found" || apiErr.RequestID == "" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestClient_RefusesWithoutCredential(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, Options{})
	if _, err := c.GetDesign(context.Background(), session.Credential{}, "d1"); !errors.Is(err, session.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := c.CreateDesign(context.Background(), session.Credential{Token: "  "}, domain.SavePayload{}); !errors.Is(err, session.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("no request may be sent without a credential")
	}
}

func TestCreateAndUpdate_SendPayload(t *testing.T) {
	type seen struct {
		method, path string
		body         map[string]json.RawMessage
	}
	var got []seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var body map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = append(got, seen{r.Method, r.URL.Path, body})
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, `{"design":{"_id":"new1","title":"Poster","s3Url":"https://s3/new1.png"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"_id":"d1","title":"Poster"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{})
	p := domain.SavePayload{Name: "Poster", Image: "data:image/png;base64,AA==", Data: scene.Document{Objects: []scene.Object{scene.NewRectangle(1, 2, 3, 4, "#000")}}}
	created, err := c.CreateDesign(context.Background(), cred, p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "new1" || created.S3URL != "https://s3/new1.png" {
		t.Fatalf("unexpected created design %+v", created)
	}
	updated, err := c.UpdateDesign(context.Background(), cred, "d1", p)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != "d1" || updated.S3URL != "" {
		t.Fatalf("unexpected updated design %+v", updated)
	}
	if len(got) != 2 || got[0].method != http.MethodPost || got[0].path != "/designs/upload" || got[1].method != http.MethodPut || got[1].path != "/designs/d1" {
		t.Fatalf("unexpected requests %+v", got)
	}
	for _, s := range got {
		if string(s.body["name"]) != `"Poster"` || !strings.Contains(string(s.body["data"]), `"objects":[{`) || len(s.body["image"]) == 0 {
			t.Fatalf("payload incomplete: %v", s.body)
		}
	}
}

func TestSave_ServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Image too large"}`)
	}))
	defer srv.Close()
	_, err := NewClient(srv.URL, Options{}).CreateDesign(context.Background(), cred, domain.SavePayload{Name: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "Image too large" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSave_EmptyBodyIsZeroDesign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	d, err := NewClient(srv.URL, Options{}).UpdateDesign(context.Background(), cred, "d1", domain.SavePayload{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if d.ID != "" || d.S3URL != "" {
		t.Fatalf("expected zero design, got %+v", d)
	}
}

func TestErrorMessage(t *testing.T) {
	cases := map[string]string{
		`{"message":"m"}`:          "m",
		`{"error":"e"}`:            "e",
		`Service Unavailable`:      "Service Unavailable",
		`<html>bad gateway</html>`: "",
		``:                         "",
	}
	for in, want := range cases {
		if got := errorMessage([]byte(in)); got != want {
			t.Fatalf("errorMessage(%q) = %q, want %q", in, got, want)
		}
	}
}
