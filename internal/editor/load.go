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
	"log/slog"

	"mattydesign/internal/domain"
	applog "mattydesign/internal/log"
	"mattydesign/internal/telemetry"
)

// LoadResult is the outcome of resolving a design onto the canvas.
type LoadResult int

const (
	// LoadNoDocument: no identifier, or the design could not be resolved.
	// The canvas stays empty and nothing is shown to the user.
	LoadNoDocument LoadResult = iota
	// LoadEmpty: the design exists but has no scene body.
	LoadEmpty
	// LoadLoaded: the scene body is on the canvas.
	LoadLoaded
)

func (r LoadResult) String() string {
	switch r {
	case LoadEmpty:
		return "empty"
	case LoadLoaded:
		return "loaded"
	default:
		return "no-document"
	}
}

// Load resolves designID from the cache, then from the service, normalizes
// its scene body and puts it on the canvas. Failures are logged and reported
// as LoadNoDocument; they never reach the user.
func (e *Editor) Load(ctx context.Context, designID string) LoadResult {
	if designID == "" {
		return LoadNoDocument
	}
	ctx = applog.ContextWithDesign(ctx, designID)
	l := applog.WithOperation(e.log, "load")

	c := e.live()
	if c == nil {
		l.DebugContext(ctx, "no canvas mounted")
		return LoadNoDocument
	}

	d, ok := e.resolve(ctx, l, designID)
	if !ok {
		return LoadNoDocument
	}
	e.mu.Lock()
	if e.canvas == c {
		e.loadedTitle = d.Title
	}
	e.mu.Unlock()

	doc, err := d.Normalized()
	if errors.Is(err, domain.ErrNoBody) {
		e.deps.Notifier.Info(MsgNoDesignData)
		return LoadEmpty
	}
	if err != nil {
		l.WarnContext(ctx, "design body unreadable", slog.Any("err", err))
		return LoadNoDocument
	}
	if err := c.LoadDocument(ctx, doc); err != nil {
		l.WarnContext(ctx, "load onto canvas failed", slog.Any("err", err))
		return LoadNoDocument
	}
	c.RequestRender()
	l.InfoContext(ctx, "design loaded", slog.Int("objects", len(doc.Objects)))
	e.deps.Events.Event(telemetry.EventDesignLoaded, map[string]any{"objects": len(doc.Objects)})
	return LoadLoaded
}

// resolve returns the cached design or fetches it with a freshly resolved credential.
func (e *Editor) resolve(ctx context.Context, l *slog.Logger, id string) (domain.Design, bool) {
	d, ok, err := e.deps.Cache.GetDesignByID(ctx, id)
	if err != nil {
		l.WarnContext(ctx, "cache lookup failed", slog.Any("err", err))
	}
	if ok {
		l.DebugContext(ctx, "design found in cache")
		return d, true
	}
	cred, err := e.deps.Credentials.Credential()
	if err != nil {
		l.WarnContext(ctx, "no credential; skipping remote fetch", slog.Any("err", err))
		return domain.Design{}, false
	}
	d, err = e.deps.Service.GetDesign(ctx, cred, id)
	if err != nil {
		l.WarnContext(ctx, "fetch design failed", slog.Any("err", err))
		return domain.Design{}, false
	}
	return d, true
}
