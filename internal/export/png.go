/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mattydesign/internal/domain"
	"mattydesign/internal/scene"
	"mattydesign/internal/storage"
)

// DefaultPrefix names exported bitmaps when no prefix is configured.
const DefaultPrefix = "matty-design"

// Filename returns "<prefix>-<epoch millis>.png".
func Filename(prefix string, t time.Time) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s-%d.png", prefix, t.UnixMilli())
}

// DirDownloader hands exported bitmaps to the user by writing them into Dir.
type DirDownloader struct {
	// Dir is the target directory; empty means the working directory.
	Dir string
}

// Download writes data atomically as name inside Dir and returns the full path.
func (d DirDownloader) Download(name string, data []byte) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid download name %q", name)
	}
	dir := d.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	path := filepath.Join(dir, name)
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// PNGOptions controls rendering of stored designs outside an editor session.
//
//nolint:revive // clarity is preferred
type PNGOptions struct {
	Width      int
	Height     int
	Background string
	Multiplier float64
	Prefix     string
	Assets     scene.AssetLoader
	// Name overrides the generated file name.
	Name string
	// Now stamps generated file names; defaults to time.Now.
	Now func() time.Time
}

// ExportDesignPNG renders a stored design and writes it under outDir as
// <prefix>-<millis>.png. It returns the written path.
func ExportDesignPNG(ctx context.Context, d domain.Design, outDir string, opt PNGOptions) (string, error) {
	doc, err := d.Normalized()
	if errors.Is(err, domain.ErrNoBody) {
		doc = scene.Document{}
	} else if err != nil {
		return "", fmt.Errorf("design %s: %w", d.ID, err)
	}
	c := scene.New(scene.Options{Width: opt.Width, Height: opt.Height, Background: opt.Background, Assets: opt.Assets})
	defer c.Dispose()
	if err := c.LoadDocument(ctx, doc); err != nil {
		return "", err
	}
	data, err := c.ToPNG(ctx, opt.Multiplier)
	if err != nil {
		return "", fmt.Errorf("render png: %w", err)
	}
	name := opt.Name
	if name == "" {
		now := time.Now
		if opt.Now != nil {
			now = opt.Now
		}
		name = Filename(opt.Prefix, now())
	}
	return DirDownloader{Dir: outDir}.Download(name, data)
}
