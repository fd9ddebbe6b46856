/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"mattydesign/internal/domain"
	applog "mattydesign/internal/log"
	"mattydesign/internal/scene"
	"mattydesign/internal/session"
	"mattydesign/internal/storage"
	"mattydesign/internal/telemetry"
)

type call struct {
	op   string
	id   string
	cred string
	body domain.SavePayload
}

type fakeService struct {
	mu      sync.Mutex
	calls   []call
	designs map[string]domain.Design
	getErr  error
	saveErr error
	reply   domain.Design
}

func (f *fakeService) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeService) GetDesign(_ context.Context, cred session.Credential, id string) (domain.Design, error) {
	f.record(call{op: "get", id: id, cred: cred.Token})
	if f.getErr != nil {
		return domain.Design{}, f.getErr
	}
	d, ok := f.designs[id]
	if !ok {
		return domain.Design{}, errors.New("404")
	}
	return d, nil
}

func (f *fakeService) CreateDesign(_ context.Context, cred session.Credential, p domain.SavePayload) (domain.Design, error) {
	f.record(call{op: "create", cred: cred.Token, body: p})
	return f.reply, f.saveErr
}

func (f *fakeService) UpdateDesign(_ context.Context, cred session.Credential, id string, p domain.SavePayload) (domain.Design, error) {
	f.record(call{op: "update", id: id, cred: cred.Token, body: p})
	return f.reply, f.saveErr
}

func (f *fakeService) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

type fakeCreds struct{ token string }

func (f fakeCreds) Credential() (session.Credential, error) {
	if f.token == "" {
		return session.Credential{}, session.ErrUnauthenticated
	}
	return session.Credential{Token: f.token}, nil
}

type notice struct{ level, msg string }

type recNotifier struct {
	mu  sync.Mutex
	all []notice
}

func (r *recNotifier) add(level, msg string) {
	r.mu.Lock()
	r.all = append(r.all, notice{level, msg})
	r.mu.Unlock()
}
func (r *recNotifier) Info(msg string)    { r.add("info", msg) }
func (r *recNotifier) Success(msg string) { r.add("success", msg) }
func (r *recNotifier) Error(msg string)   { r.add("error", msg) }

func (r *recNotifier) count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.all {
		if x.level == level {
			n++
		}
	}
	return n
}

type fixedPrompter struct {
	answer string
	ok     bool
	gotMsg string
	gotDef string
}

func (p *fixedPrompter) Prompt(_ context.Context, msg, def string) (string, bool) {
	p.gotMsg, p.gotDef = msg, def
	return p.answer, p.ok
}

type recNavigator struct{ routes []string }

func (n *recNavigator) Navigate(route string) { n.routes = append(n.routes, route) }

type memDownloader struct {
	name string
	data []byte
}

func (m *memDownloader) Download(name string, data []byte) (string, error) {
	m.name, m.data = name, data
	return "mem://" + name, nil
}

type recEvents struct {
	mu    sync.Mutex
	names []string
}

func (r *recEvents) Event(name string, _ map[string]any) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
}

// noAssets fails every remote load so tests never touch the network.
type noAssets struct{}

func (noAssets) Load(context.Context, string) (image.Image, error) {
	return nil, errors.New("offline")
}

type harness struct {
	ed       *Editor
	cache    *storage.MemoryCache
	service  *fakeService
	notes    *recNotifier
	prompter *fixedPrompter
	nav      *recNavigator
	dl       *memDownloader
	events   *recEvents
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	h := &harness{
		cache:    storage.NewMemoryCache(),
		service:  &fakeService{designs: map[string]domain.Design{}},
		notes:    &recNotifier{},
		prompter: &fixedPrompter{},
		nav:      &recNavigator{},
		dl:       &memDownloader{},
		events:   &recEvents{},
	}
	h.ed = New(Deps{
		Cache:       h.cache,
		Service:     h.service,
		Credentials: fakeCreds{token: token},
		Notifier:    h.notes,
		Prompter:    h.prompter,
		Navigator:   h.nav,
		Downloader:  h.dl,
		Events:      h.events,
		Assets:      noAssets{},
		Logger:      applog.Discard(),
		Now:         func() time.Time { return time.UnixMilli(1700000000000) },
	}, Options{Width: 800, Height: 600})
	t.Cleanup(h.ed.Close)
	return h
}

func TestMount_ReplacesAndDisposesCanvas(t *testing.T) {
	h := newHarness(t, "tok")
	ctx := context.Background()
	if r := h.ed.Mount(ctx, ""); r != LoadNoDocument {
		t.Fatalf("new design should load nothing, got %v", r)
	}
	first := h.ed.Canvas()
	h.ed.Mount(ctx, "")
	if !first.Disposed() {
		t.Fatalf("remounting must dispose the previous canvas")
	}
	if h.ed.Canvas() == first {
		t.Fatalf("expected a fresh canvas")
	}
	h.ed.Close()
	if h.ed.Canvas() != nil || h.ed.AddShape(ShapeRectangle) != nil {
		t.Fatalf("closed editor must not accept mutations")
	}
	if _, err := h.ed.Render(ctx); !errors.Is(err, ErrNoCanvas) {
		t.Fatalf("expected ErrNoCanvas, got %v", err)
	}
	if len(h.service.ops()) != 0 {
		t.Fatalf("no remote calls expected")
	}
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t, "")
	if _, ok := h.ed.Snapshot(); ok {
		t.Fatalf("no snapshot without canvas")
	}
	h.ed.Mount(context.Background(), "")
	h.ed.AddShape(ShapeCircle)
	doc, ok := h.ed.Snapshot()
	if !ok || len(doc.Objects) != 1 || doc.Objects[0].Kind() != scene.KindCircle {
		t.Fatalf("unexpected snapshot %+v", doc)
	}
}

func TestEvents_EmittedPerOperation(t *testing.T) {
	h := newHarness(t, "tok")
	ctx := context.Background()
	h.ed.Mount(ctx, "")
	h.ed.AddShape(ShapeRectangle)
	h.ed.AddText()
	if _, err := h.ed.Export(ctx); err != nil {
		t.Fatal(err)
	}
	h.prompter.answer, h.prompter.ok = "T", true
	h.service.reply = domain.Design{ID: "n1"}
	if _, err := h.ed.Save(ctx); err != nil {
		t.Fatal(err)
	}
	want := []string{telemetry.EventObjectAdded, telemetry.EventObjectAdded, telemetry.EventDesignExported, telemetry.EventDesignSaved}
	h.events.mu.Lock()
	defer h.events.mu.Unlock()
	if len(h.events.names) != len(want) {
		t.Fatalf("events = %v", h.events.names)
	}
	for i := range want {
		if h.events.names[i] != want[i] {
			t.Fatalf("events = %v, want %v", h.events.names, want)
		}
	}
}
