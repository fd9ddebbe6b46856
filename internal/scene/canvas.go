/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/disintegration/imaging"

	applog "mattydesign/internal/log"
	"mattydesign/internal/textlayout"
)

var (
	// ErrDisposed is returned by mutating calls on a canvas after Dispose.
	ErrDisposed = errors.New("scene: canvas disposed")
	// ErrNotOnCanvas is returned when an object is not part of the canvas.
	ErrNotOnCanvas = errors.New("scene: object not on canvas")
)

// Default canvas size and colour.
const (
	DefaultWidth      = 800
	DefaultHeight     = 600
	DefaultBackground = "#ffffff"
)

// Options configures a Canvas.
type Options struct {
	Width      int
	Height     int
	Background string
	Assets     AssetLoader
	Fonts      *textlayout.FontLibrary
	Logger     *slog.Logger
}

// Canvas is a retained-mode drawing surface: an ordered list of objects
// (back to front), an optional active selection and a bitmap cache for image
// sources. All methods are safe for concurrent use.
type Canvas struct {
	mu         sync.Mutex
	width      int
	height     int
	background string
	objects    []Object
	active     Object
	bitmaps    map[string]image.Image
	listeners  []func()
	renders    int
	disposed   bool

	assets AssetLoader
	fonts  *textlayout.FontLibrary
	log    *slog.Logger
}

// New returns an empty canvas; zero option fields take the defaults.
func New(opts Options) *Canvas {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Background == "" {
		opts.Background = DefaultBackground
	}
	if opts.Assets == nil {
		opts.Assets = DefaultAssets
	}
	if opts.Fonts == nil {
		opts.Fonts = textlayout.NewFontLibrary()
	}
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("scene")
	}
	return &Canvas{
		width:      opts.Width,
		height:     opts.Height,
		background: opts.Background,
		bitmaps:    make(map[string]image.Image),
		assets:     opts.Assets,
		fonts:      opts.Fonts,
		log:        opts.Logger,
	}
}

func (c *Canvas) Size() (int, int) { return c.width, c.height }

// Center is the midpoint of the drawing surface.
func (c *Canvas) Center() Pt { return Pt{X: float64(c.width) / 2, Y: float64(c.height) / 2} }

// Fonts exposes the library used for measuring and drawing text.
func (c *Canvas) Fonts() *textlayout.FontLibrary { return c.fonts }

// Add appends objects on top of the stack.
func (c *Canvas) Add(objs ...Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	for _, o := range objs {
		if o == nil {
			continue
		}
		if t, ok := o.(*Text); ok {
			c.measureLocked(t)
		}
		c.objects = append(c.objects, o)
	}
	return nil
}

// Remove deletes obj from the canvas, clearing the selection if it was active.
func (c *Canvas) Remove(obj Object) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	for i, o := range c.objects {
		if o == obj {
			c.objects = append(c.objects[:i], c.objects[i+1:]...)
			if c.active == obj {
				c.active = nil
			}
			return true
		}
	}
	return false
}

// Objects returns a snapshot of the object stack, back to front.
func (c *Canvas) Objects() []Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Object(nil), c.objects...)
}

func (c *Canvas) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}

// SetActive selects obj, which must already be on the canvas.
func (c *Canvas) SetActive(obj Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if !c.holdsLocked(obj) {
		return ErrNotOnCanvas
	}
	c.active = obj
	return nil
}

// Translate moves obj by (dx, dy) in canvas units.
func (c *Canvas) Translate(obj Object, dx, dy float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if !c.holdsLocked(obj) {
		return ErrNotOnCanvas
	}
	b := obj.Props()
	b.Left += dx
	b.Top += dy
	return nil
}

func (c *Canvas) holdsLocked(obj Object) bool {
	for _, o := range c.objects {
		if o == obj {
			return true
		}
	}
	return false
}

func (c *Canvas) Active() Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Canvas) ClearActive() {
	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
}

// CenterObject moves obj so the middle of its scaled box sits on the canvas center.
func (c *Canvas) CenterObject(obj Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	b := obj.Props()
	w, h := b.ScaledSize()
	ctr := c.Center()
	if b.Angle == 0 {
		b.Left, b.Top = ctr.X-w/2, ctr.Y-h/2
		return nil
	}
	m := Rotate(b.Angle * math.Pi / 180)
	off := m.Apply(Pt{X: w / 2, Y: h / 2})
	b.Left, b.Top = ctr.X-off.X, ctr.Y-off.Y
	return nil
}

// ObjectAt returns the top-most object under p, or nil.
func (c *Canvas) ObjectAt(p Pt) Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.objects) - 1; i >= 0; i-- {
		if c.objects[i].Hit(p) {
			return c.objects[i]
		}
	}
	return nil
}

// OnRender registers fn to run after every RequestRender.
func (c *Canvas) OnRender(fn func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// RequestRender marks the canvas dirty and notifies render listeners.
func (c *Canvas) RequestRender() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.renders++
	ls := append([]func(){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range ls {
		fn()
	}
}

// RenderCount is the number of RequestRender calls honoured so far.
func (c *Canvas) RenderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

// LoadDocument replaces the canvas content with doc. Image sources are
// fetched eagerly; sources that fail to load are logged and drawn empty.
func (c *Canvas) LoadDocument(ctx context.Context, doc Document) error {
	doc, err := doc.Clone()
	if err != nil {
		return fmt.Errorf("scene: copy document: %w", err)
	}
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.objects = doc.Objects
	c.active = nil
	if doc.Background != "" {
		c.background = doc.Background
	}
	for _, o := range c.objects {
		if t, ok := o.(*Text); ok && (t.Width == 0 || t.Height == 0) {
			c.measureLocked(t)
		}
	}
	c.mu.Unlock()
	c.loadAssets(ctx)
	return nil
}

// ToDocument serializes the current scene. The result shares nothing with
// the canvas.
func (c *Canvas) ToDocument() (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc := Document{
		Version:    DocumentVersion,
		Objects:    c.objects,
		Background: c.background,
	}
	return doc.Clone()
}

// PrimeAsset caches an already decoded bitmap for src.
func (c *Canvas) PrimeAsset(src string, img image.Image) {
	c.mu.Lock()
	c.bitmaps[src] = img
	c.mu.Unlock()
}

// MeasureText sizes t's box from its font metrics.
func (c *Canvas) MeasureText(t *Text) {
	c.mu.Lock()
	c.measureLocked(t)
	c.mu.Unlock()
}

func (c *Canvas) measureLocked(t *Text) {
	if t.FontSize <= 0 {
		return
	}
	t.Width, t.Height = c.fonts.Measure(t.FontFamily, t.FontSize, t.LineHeight, t.Text)
}

// loadAssets fetches every image source not cached yet.
func (c *Canvas) loadAssets(ctx context.Context) {
	c.mu.Lock()
	var missing []string
	seen := map[string]bool{}
	for _, o := range c.objects {
		im, ok := o.(*Image)
		if !ok || im.Src == "" || seen[im.Src] {
			continue
		}
		seen[im.Src] = true
		if _, ok := c.bitmaps[im.Src]; !ok {
			missing = append(missing, im.Src)
		}
	}
	c.mu.Unlock()
	for _, src := range missing {
		img, err := c.assets.Load(ctx, src)
		if err != nil {
			c.log.Warn("image source unavailable", slog.String("src", truncate(src, 64)), slog.Any("err", err))
			continue
		}
		c.PrimeAsset(src, img)
	}
}

// RenderOptions control a rasterization.
type RenderOptions struct {
	// Multiplier scales the output relative to the canvas size; 0 means 1.
	Multiplier float64
	// Controls draws the selection frame and corner handles.
	Controls bool
}

// Render rasterizes the scene.
func (c *Canvas) Render(ctx context.Context, opts RenderOptions) (image.Image, error) {
	if c.Disposed() {
		return nil, ErrDisposed
	}
	c.loadAssets(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked(opts), nil
}

// Bitmap formats understood by ToDataURL.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// ExportOptions describe an encoded snapshot.
type ExportOptions struct {
	Format     string
	Quality    int // JPEG only, 1..100
	Multiplier float64
}

// ToPNG renders the scene without controls and encodes it as PNG.
func (c *Canvas) ToPNG(ctx context.Context, multiplier float64) ([]byte, error) {
	return c.encode(ctx, ExportOptions{Format: FormatPNG, Multiplier: multiplier})
}

// ToDataURL renders the scene and returns it as a data URL.
func (c *Canvas) ToDataURL(ctx context.Context, opts ExportOptions) (string, error) {
	data, err := c.encode(ctx, opts)
	if err != nil {
		return "", err
	}
	mime := "image/png"
	if opts.Format == FormatJPEG {
		mime = "image/jpeg"
	}
	return EncodeDataURL(mime, data), nil
}

func (c *Canvas) encode(ctx context.Context, opts ExportOptions) ([]byte, error) {
	img, err := c.Render(ctx, RenderOptions{Multiplier: opts.Multiplier})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch opts.Format {
	case "", FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case FormatJPEG:
		q := opts.Quality
		if q <= 0 || q > 100 {
			q = 92
		}
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q))
	default:
		return nil, fmt.Errorf("scene: unsupported format %q", opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("scene: encode %s: %w", opts.Format, err)
	}
	return buf.Bytes(), nil
}

// Dispose releases the canvas. Later mutations fail with ErrDisposed.
func (c *Canvas) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	c.objects = nil
	c.active = nil
	c.listeners = nil
	c.bitmaps = map[string]image.Image{}
}

func (c *Canvas) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
