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
	"encoding/json"
	"math"
	"strings"
)

// Kind discriminates the drawable-object variants.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindRect
	KindCircle
	KindText
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindRect:
		return "rect"
	case KindCircle:
		return "circle"
	case KindText:
		return "i-text"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// KindOf maps a descriptor type tag to its variant. Tags are matched
// case-insensitively so documents written by other clients load as well.
func KindOf(tag string) Kind {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "rect":
		return KindRect
	case "circle":
		return KindCircle
	case "i-text", "itext", "text", "textbox":
		return KindText
	case "image":
		return KindImage
	default:
		return KindUnknown
	}
}

// Object is one drawable-object descriptor living in a scene.
// The concrete types are *Rectangle, *Circle, *Text, *Image and *Unknown.
type Object interface {
	Kind() Kind
	// Props exposes the attributes shared by every variant.
	Props() *Base
	// Bounds is the axis-aligned box of the transformed object.
	Bounds() Rect
	// Hit reports whether p falls on the object.
	Hit(p Pt) bool
	MarshalJSON() ([]byte, error)
}

// Base holds the render attributes common to all variants. Left/Top is the
// object's top-left origin; the object is scaled, then rotated by Angle
// degrees around that origin.
type Base struct {
	Left        float64
	Top         float64
	Width       float64
	Height      float64
	ScaleX      float64
	ScaleY      float64
	Angle       float64
	Fill        string
	Stroke      string
	StrokeWidth float64
	Opacity     float64
	CornerColor string
	CornerSize  float64

	// Extra keeps attributes this package does not model, so documents
	// written by richer clients survive a load/save cycle.
	Extra map[string]json.RawMessage
}

func defaultBase() Base { return Base{ScaleX: 1, ScaleY: 1, Opacity: 1} }

// Transform maps local object space to canvas space.
func (b *Base) Transform() Affine2D {
	m := Translate(b.Left, b.Top)
	if b.Angle != 0 {
		m = m.Mul(Rotate(b.Angle * math.Pi / 180))
	}
	return m.Mul(Scale(b.ScaleX, b.ScaleY))
}

// ScaledSize is the on-canvas size before rotation.
func (b *Base) ScaledSize() (float64, float64) { return b.Width * b.ScaleX, b.Height * b.ScaleY }

func (b *Base) bounds() Rect { return boundsOf(b.Transform(), b.Width, b.Height) }

func (b *Base) local(p Pt) Pt { return b.Transform().Invert().Apply(p) }

func (b *Base) hitBox(p Pt) bool {
	if b.ScaleX == 0 || b.ScaleY == 0 {
		return false
	}
	return Rect{W: b.Width, H: b.Height}.Contains(b.local(p))
}

// Rectangle is an axis-aligned rectangle before transform.
type Rectangle struct {
	Base
}

// NewRectangle returns a rectangle of size w×h at (left, top).
func NewRectangle(left, top, w, h float64, fill string) *Rectangle {
	b := defaultBase()
	b.Left, b.Top, b.Width, b.Height, b.Fill = left, top, w, h, fill
	return &Rectangle{Base: b}
}

func (o *Rectangle) Kind() Kind    { return KindRect }
func (o *Rectangle) Props() *Base  { return &o.Base }
func (o *Rectangle) Bounds() Rect  { return o.bounds() }
func (o *Rectangle) Hit(p Pt) bool { return o.hitBox(p) }

// Circle is a circle inscribed in its 2r×2r box.
type Circle struct {
	Base
	Radius float64
}

// NewCircle returns a circle whose box starts at (left, top).
func NewCircle(left, top, radius float64, fill string) *Circle {
	b := defaultBase()
	b.Left, b.Top, b.Width, b.Height, b.Fill = left, top, 2*radius, 2*radius, fill
	return &Circle{Base: b, Radius: radius}
}

func (o *Circle) Kind() Kind   { return KindCircle }
func (o *Circle) Props() *Base { return &o.Base }
func (o *Circle) Bounds() Rect { return o.bounds() }
func (o *Circle) Hit(p Pt) bool {
	if o.Radius <= 0 || o.ScaleX == 0 || o.ScaleY == 0 {
		return false
	}
	q := o.local(p)
	dx := (q.X - o.Radius) / o.Radius
	dy := (q.Y - o.Radius) / o.Radius
	return dx*dx+dy*dy <= 1
}

// Text is an editable single- or multi-line text box.
type Text struct {
	Base
	Text       string
	FontSize   float64
	FontFamily string
	LineHeight float64
}

// NewText returns a text object; width and height are filled in by the
// caller once the text has been measured.
func NewText(left, top float64, text string, size float64, family, fill string) *Text {
	b := defaultBase()
	b.Left, b.Top, b.Fill = left, top, fill
	return &Text{Base: b, Text: text, FontSize: size, FontFamily: family, LineHeight: DefaultLineHeight}
}

// DefaultLineHeight is the line height multiplier applied to the font size.
const DefaultLineHeight = 1.16

// Lines splits the text on newlines.
func (o *Text) Lines() []string { return strings.Split(o.Text, "\n") }

func (o *Text) Kind() Kind    { return KindText }
func (o *Text) Props() *Base  { return &o.Base }
func (o *Text) Bounds() Rect  { return o.bounds() }
func (o *Text) Hit(p Pt) bool { return o.hitBox(p) }

// Image draws a bitmap referenced by Src (a data URL or a remote URL).
// Width and Height are the bitmap's natural size.
type Image struct {
	Base
	Src string
}

// NewImage returns an image object of natural size w×h.
func NewImage(left, top float64, w, h int, src string) *Image {
	b := defaultBase()
	b.Left, b.Top, b.Width, b.Height = left, top, float64(w), float64(h)
	return &Image{Base: b, Src: src}
}

func (o *Image) Kind() Kind    { return KindImage }
func (o *Image) Props() *Base  { return &o.Base }
func (o *Image) Bounds() Rect  { return o.bounds() }
func (o *Image) Hit(p Pt) bool { return o.hitBox(p) }

// Unknown is a descriptor of a type this editor does not draw. Its raw JSON
// is kept verbatim; Base is decoded only so it can be hit-tested and moved
// along with the rest of the document.
type Unknown struct {
	Base
	Type string
	Raw  json.RawMessage
}

func (o *Unknown) Kind() Kind    { return KindUnknown }
func (o *Unknown) Props() *Base  { return &o.Base }
func (o *Unknown) Bounds() Rect  { return o.bounds() }
func (o *Unknown) Hit(p Pt) bool { return o.hitBox(p) }
