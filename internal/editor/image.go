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
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/h2non/filetype"

	applog "mattydesign/internal/log"
	"mattydesign/internal/scene"
	"mattydesign/internal/telemetry"
)

// MaxImageSide caps each axis of an inserted image, in canvas units.
const MaxImageSide = 200

// ErrNotImage is returned when uploaded data is not a recognised image.
var ErrNotImage = errors.New("editor: file is not an image")

// ImageInput holds the file the user picked for upload. AddImage clears it
// once consumed so the same file can be picked again.
type ImageInput struct {
	mu   sync.Mutex
	path string
}

func (in *ImageInput) Select(path string) {
	in.mu.Lock()
	in.path = path
	in.mu.Unlock()
}

func (in *ImageInput) Selected() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.path
}

func (in *ImageInput) Reset() { in.Select("") }

// AddImage inserts the file selected in in. The input is reset as soon as
// the file has been taken; read or decode failures drop the insertion.
func (e *Editor) AddImage(ctx context.Context, in *ImageInput) (scene.Object, error) {
	path := in.Selected()
	if path == "" || e.live() == nil {
		return nil, nil
	}
	in.Reset()
	data, err := os.ReadFile(path)
	if err != nil {
		e.log.WarnContext(e.ctx(ctx), "read image failed", slog.String("path", path), slog.Any("err", err))
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return e.AddImageData(ctx, filepath.Base(path), data)
}

// AddImageData decodes data and inserts it as an image at (100, 100), each
// axis scaled by min(1, 200/natural size) on its own, then centers and
// selects it.
func (e *Editor) AddImageData(ctx context.Context, name string, data []byte) (scene.Object, error) {
	ctx = e.ctx(ctx)
	l := applog.WithOperation(e.log, "add_image").With(slog.String("file", name))
	c := e.live()
	if c == nil {
		return nil, nil
	}
	if !filetype.IsImage(data) {
		l.WarnContext(ctx, "upload is not an image")
		return nil, ErrNotImage
	}
	kind, err := filetype.Match(data)
	if err != nil {
		l.WarnContext(ctx, "sniff image type failed", slog.Any("err", err))
		return nil, ErrNotImage
	}
	img, err := scene.DecodeImage(data)
	if err != nil {
		l.WarnContext(ctx, "decode image failed", slog.String("mime", kind.MIME.Value), slog.Any("err", err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	src := scene.EncodeDataURL(kind.MIME.Value, data)
	obj := scene.NewImage(100, 100, w, h, src)
	obj.ScaleX = math.Min(1, MaxImageSide/float64(w))
	obj.ScaleY = math.Min(1, MaxImageSide/float64(h))
	obj.CornerColor, obj.CornerSize = cornerColor, cornerSize

	c.PrimeAsset(src, img)
	if err := c.Add(obj); err != nil {
		return nil, nil
	}
	if err := c.CenterObject(obj); err != nil {
		return nil, nil
	}
	if err := c.SetActive(obj); err != nil {
		return nil, nil
	}
	c.RequestRender()
	l.InfoContext(ctx, "image inserted", slog.Int("width", w), slog.Int("height", h), slog.Float64("scale_x", obj.ScaleX), slog.Float64("scale_y", obj.ScaleY))
	e.deps.Events.Event(telemetry.EventImageInserted, map[string]any{"mime": kind.MIME.Value})
	return obj, nil
}
