/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor implements one design editing session: loading a design onto
// a canvas, inserting shapes, text and images, saving to the designs service
// and exporting a bitmap. Front-ends drive an Editor and supply the
// interactive collaborators (notices, title prompt, navigation, downloads).
package editor

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"mattydesign/internal/domain"
	applog "mattydesign/internal/log"
	"mattydesign/internal/scene"
	"mattydesign/internal/session"
	"mattydesign/internal/textlayout"
)

// DesignCache is the local copy of designs shared across sessions.
type DesignCache interface {
	GetDesignByID(ctx context.Context, id string) (domain.Design, bool, error)
	AddDesign(ctx context.Context, d domain.Design) error
	UpdateDesign(ctx context.Context, id string, p domain.DesignPatch) error
}

// DesignService is the remote designs API.
type DesignService interface {
	GetDesign(ctx context.Context, cred session.Credential, id string) (domain.Design, error)
	CreateDesign(ctx context.Context, cred session.Credential, p domain.SavePayload) (domain.Design, error)
	UpdateDesign(ctx context.Context, cred session.Credential, id string, p domain.SavePayload) (domain.Design, error)
}

// CredentialSource resolves the bearer credential at each call site.
type CredentialSource interface {
	Credential() (session.Credential, error)
}

// Notifier shows non-blocking notices to the user.
type Notifier interface {
	Info(msg string)
	Success(msg string)
	Error(msg string)
}

// Prompter asks the user for a line of text. ok is false when the user cancelled.
type Prompter interface {
	Prompt(ctx context.Context, message, def string) (answer string, ok bool)
}

// Navigator moves the user to another screen.
type Navigator interface {
	Navigate(route string)
}

// Downloader hands a file to the user and returns where it went.
type Downloader interface {
	Download(name string, data []byte) (string, error)
}

// EventSink receives anonymous usage events. Props never carry design content.
type EventSink interface {
	Event(name string, props map[string]any)
}

// Deps are the collaborators of an Editor. Cache, Service, Credentials and
// Notifier are required; the rest fall back to inert defaults.
type Deps struct {
	Cache       DesignCache
	Service     DesignService
	Credentials CredentialSource
	Notifier    Notifier
	Prompter    Prompter
	Navigator   Navigator
	Downloader  Downloader
	Events      EventSink
	Assets      scene.AssetLoader
	Fonts       *textlayout.FontLibrary
	Logger      *slog.Logger
	Now         func() time.Time
}

// Options size new canvases and name exports.
type Options struct {
	Width        int
	Height       int
	Background   string
	ExportPrefix string
}

// User-visible notices.
const (
	MsgNoDesignData  = "No design data found to load."
	MsgNotAuthorized = "Not authorized"
	MsgSaveFailed    = "Failed to save design"
	MsgDesignUpdated = "Design updated successfully!"
	MsgDesignSaved   = "Design saved successfully!"
	MsgExported      = "Design exported as PNG!"
	MsgExportFailed  = "Failed to export design"
	MsgTitlePrompt   = "Enter a name for your design:"
)

// DashboardRoute is where a successful save sends the user.
const DashboardRoute = "/dashboard"

// ErrNoCanvas is returned by operations that need a mounted canvas.
var ErrNoCanvas = errors.New("editor: no canvas mounted")

// Editor is one editing session bound to at most one live canvas.
type Editor struct {
	deps Deps
	opts Options
	log  *slog.Logger

	mu          sync.Mutex
	canvas      *scene.Canvas
	designID    string
	loadedTitle string
}

// New returns an editor with no canvas; call Mount to start a session.
func New(deps Deps, opts Options) *Editor {
	if deps.Prompter == nil {
		deps.Prompter = cancelPrompter{}
	}
	if deps.Navigator == nil {
		deps.Navigator = nopNavigator{}
	}
	if deps.Events == nil {
		deps.Events = nopEvents{}
	}
	if deps.Fonts == nil {
		deps.Fonts = textlayout.NewFontLibrary()
	}
	if deps.Logger == nil {
		deps.Logger = applog.WithComponent("editor")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Editor{deps: deps, opts: opts, log: deps.Logger}
}

// Mount starts a session for designID (empty for a new design): it disposes
// any previous canvas, creates a fresh one and runs the loader.
func (e *Editor) Mount(ctx context.Context, designID string) LoadResult {
	c := scene.New(scene.Options{
		Width:      e.opts.Width,
		Height:     e.opts.Height,
		Background: e.opts.Background,
		Assets:     e.deps.Assets,
		Fonts:      e.deps.Fonts,
		Logger:     e.log,
	})
	e.mu.Lock()
	if e.canvas != nil {
		e.canvas.Dispose()
	}
	e.canvas = c
	e.designID = designID
	e.loadedTitle = ""
	e.mu.Unlock()
	return e.Load(ctx, designID)
}

// Close disposes the canvas. Later operations are no-ops.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.canvas != nil {
		e.canvas.Dispose()
		e.canvas = nil
	}
}

// Canvas returns the live canvas, or nil when none is mounted.
func (e *Editor) Canvas() *scene.Canvas {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canvas
}

// DesignID is the identifier the session edits; empty for an unsaved design.
func (e *Editor) DesignID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.designID
}

// live returns the canvas when it can still be drawn on.
func (e *Editor) live() *scene.Canvas {
	c := e.Canvas()
	if c == nil || c.Disposed() {
		return nil
	}
	return c
}

func (e *Editor) ctx(ctx context.Context) context.Context {
	if id := e.DesignID(); id != "" {
		return applog.ContextWithDesign(ctx, id)
	}
	return ctx
}

// Snapshot returns the current scene, if a canvas is live.
func (e *Editor) Snapshot() (scene.Document, bool) {
	c := e.live()
	if c == nil {
		return scene.Document{}, false
	}
	doc, err := c.ToDocument()
	if err != nil {
		return scene.Document{}, false
	}
	return doc, true
}

// Render rasterizes the canvas with the selection handles for display.
func (e *Editor) Render(ctx context.Context) (image.Image, error) {
	c := e.live()
	if c == nil {
		return nil, ErrNoCanvas
	}
	return c.Render(ctx, scene.RenderOptions{Multiplier: 1, Controls: true})
}

type cancelPrompter struct{}

func (cancelPrompter) Prompt(context.Context, string, string) (string, bool) { return "", false }

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}

type nopEvents struct{}

func (nopEvents) Event(string, map[string]any) {}
