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
	"fmt"
	"log/slog"

	"mattydesign/internal/backend"
	"mattydesign/internal/domain"
	applog "mattydesign/internal/log"
	"mattydesign/internal/scene"
	"mattydesign/internal/telemetry"
)

// SaveResult is the outcome of Save.
type SaveResult int

const (
	// SaveSkipped: no canvas was live.
	SaveSkipped SaveResult = iota
	// SaveCancelled: the title prompt was cancelled or left empty.
	SaveCancelled
	// SaveUnauthorized: no credential; nothing was sent.
	SaveUnauthorized
	// SaveFailed: the service rejected the request or could not be reached.
	SaveFailed
	// SaveCreated: a new design was created.
	SaveCreated
	// SaveUpdated: the session's design was updated.
	SaveUpdated
)

func (r SaveResult) String() string {
	switch r {
	case SaveCancelled:
		return "cancelled"
	case SaveUnauthorized:
		return "unauthorized"
	case SaveFailed:
		return "failed"
	case SaveCreated:
		return "created"
	case SaveUpdated:
		return "updated"
	default:
		return "skipped"
	}
}

// ErrNoDesignID is returned when the service accepts a new design without
// assigning it an identifier.
var ErrNoDesignID = errors.New("editor: service returned no design id")

// previewQuality is the JPEG quality of the preview kept when the service
// returns no asset reference.
const previewQuality = 10

// Save serializes the scene, asks for a title and creates or updates the
// design. Only a confirmed success touches the cache, then the user is sent
// to the dashboard. The returned error is informational; the user has
// already been notified.
func (e *Editor) Save(ctx context.Context) (SaveResult, error) {
	ctx = e.ctx(ctx)
	l := applog.WithOperation(e.log, "save")
	c := e.live()
	if c == nil {
		return SaveSkipped, nil
	}
	id := e.DesignID()

	doc, full, preview, err := snapshot(ctx, c)
	if err != nil {
		l.ErrorContext(ctx, "serialize scene failed", slog.Any("err", err))
		e.deps.Notifier.Error(MsgSaveFailed)
		return SaveFailed, err
	}

	name, ok := e.deps.Prompter.Prompt(ctx, MsgTitlePrompt, e.defaultTitle(ctx, id))
	if !ok || name == "" {
		l.DebugContext(ctx, "save cancelled")
		return SaveCancelled, nil
	}

	cred, err := e.deps.Credentials.Credential()
	if err != nil {
		l.WarnContext(ctx, "save without credential", slog.Any("err", err))
		e.deps.Notifier.Error(MsgNotAuthorized)
		return SaveUnauthorized, err
	}

	payload := domain.SavePayload{Name: name, Image: full, Data: doc}
	var returned domain.Design
	if id != "" {
		returned, err = e.deps.Service.UpdateDesign(ctx, cred, id, payload)
	} else {
		returned, err = e.deps.Service.CreateDesign(ctx, cred, payload)
	}
	if err != nil {
		l.WarnContext(ctx, "save request failed", slog.Any("err", err))
		e.deps.Notifier.Error(failureMessage(err))
		return SaveFailed, err
	}
	if id == "" && returned.ID == "" {
		l.WarnContext(ctx, "create response carries no design id")
		e.deps.Notifier.Error(MsgSaveFailed)
		return SaveFailed, ErrNoDesignID
	}

	body, err := domain.NewSceneData(doc)
	if err != nil {
		l.ErrorContext(ctx, "encode scene for cache failed", slog.Any("err", err))
	}
	assetRef := returned.S3URL
	if assetRef == "" {
		assetRef = preview
	}

	result := SaveUpdated
	if id != "" {
		err = e.deps.Cache.UpdateDesign(ctx, id, domain.DesignPatch{Title: &name, JSONData: &body, S3URL: &assetRef})
		e.deps.Notifier.Success(MsgDesignUpdated)
	} else {
		result = SaveCreated
		err = e.deps.Cache.AddDesign(ctx, domain.Design{ID: returned.ID, Title: name, JSONData: body, S3URL: assetRef})
		e.deps.Notifier.Success(MsgDesignSaved)
		if returned.ID != "" {
			e.mu.Lock()
			if e.canvas == c {
				e.designID = returned.ID
			}
			e.mu.Unlock()
		}
	}
	if err != nil {
		l.WarnContext(ctx, "cache reconcile failed", slog.Any("err", err))
	}
	l.InfoContext(ctx, "design saved", slog.String("result", result.String()), slog.String("id", firstNonEmpty(id, returned.ID)))
	e.deps.Events.Event(telemetry.EventDesignSaved, map[string]any{"result": result.String(), "objects": len(doc.Objects)})
	e.deps.Navigator.Navigate(DashboardRoute)
	return result, nil
}

// snapshot serializes the scene and renders the full PNG and the preview,
// both at multiplier 1.
func snapshot(ctx context.Context, c *scene.Canvas) (scene.Document, string, string, error) {
	doc, err := c.ToDocument()
	if err != nil {
		return scene.Document{}, "", "", err
	}
	full, err := c.ToDataURL(ctx, scene.ExportOptions{Format: scene.FormatPNG, Multiplier: 1})
	if err != nil {
		return scene.Document{}, "", "", fmt.Errorf("render image: %w", err)
	}
	preview, err := c.ToDataURL(ctx, scene.ExportOptions{Format: scene.FormatJPEG, Quality: previewQuality, Multiplier: 1})
	if err != nil {
		return scene.Document{}, "", "", fmt.Errorf("render preview: %w", err)
	}
	return doc, full, preview, nil
}

// defaultTitle offers the cached title when editing, then the title the
// design was loaded with, then DefaultTitle.
func (e *Editor) defaultTitle(ctx context.Context, id string) string {
	if id == "" {
		return domain.DefaultTitle
	}
	if d, ok, err := e.deps.Cache.GetDesignByID(ctx, id); err == nil && ok && d.Title != "" {
		return d.Title
	}
	e.mu.Lock()
	t := e.loadedTitle
	e.mu.Unlock()
	if t != "" {
		return t
	}
	return domain.DefaultTitle
}

// failureMessage prefers the service's own message.
func failureMessage(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return MsgSaveFailed
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
