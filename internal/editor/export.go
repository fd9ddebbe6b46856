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

	"mattydesign/internal/export"
	applog "mattydesign/internal/log"
	"mattydesign/internal/telemetry"
)

// Export renders the scene to PNG at multiplier 1 and hands it to the
// Downloader as <prefix>-<epoch millis>.png. It returns the download location.
func (e *Editor) Export(ctx context.Context) (string, error) {
	ctx = e.ctx(ctx)
	l := applog.WithOperation(e.log, "export")
	c := e.live()
	if c == nil {
		return "", nil
	}
	if e.deps.Downloader == nil {
		return "", errors.New("editor: no downloader configured")
	}
	data, err := c.ToPNG(ctx, 1)
	if err != nil {
		l.ErrorContext(ctx, "render png failed", slog.Any("err", err))
		e.deps.Notifier.Error(MsgExportFailed)
		return "", err
	}
	name := export.Filename(e.opts.ExportPrefix, e.deps.Now())
	where, err := e.deps.Downloader.Download(name, data)
	if err != nil {
		l.ErrorContext(ctx, "download failed", slog.String("name", name), slog.Any("err", err))
		e.deps.Notifier.Error(MsgExportFailed)
		return "", err
	}
	e.deps.Notifier.Success(MsgExported)
	e.deps.Events.Event(telemetry.EventDesignExported, map[string]any{"bytes": len(data)})
	l.InfoContext(ctx, "design exported", slog.String("path", where), slog.Int("bytes", len(data)))
	return where, nil
}
