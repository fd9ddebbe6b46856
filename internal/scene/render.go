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
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const maxBitmapSide = 8192

func (c *Canvas) renderLocked(opts RenderOptions) image.Image {
	m := opts.Multiplier
	w := int(math.Round(float64(c.width) * m))
	h := int(math.Round(float64(c.height) * m))
	dc := gg.NewContext(max(w, 1), max(h, 1))
	bg, err := ParseColor(c.background)
	if err != nil {
		bg = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	dc.SetColor(bg)
	dc.Clear()
	dc.Scale(m, m)
	for _, o := range c.objects {
		dc.Push()
		c.drawObject(dc, o, m)
		dc.Pop()
	}
	if opts.Controls && c.active != nil {
		drawControls(dc, c.active.Props(), m)
	}
	return dc.Image()
}

// drawObject draws o in its local frame: origin at its top-left corner,
// x/y scaled and rotated by the object's transform.
func (c *Canvas) drawObject(dc *gg.Context, o Object, m float64) {
	b := o.Props()
	if b.Opacity <= 0 || b.ScaleX == 0 || b.ScaleY == 0 {
		return
	}
	dc.Translate(b.Left, b.Top)
	if b.Angle != 0 {
		dc.Rotate(gg.Radians(b.Angle))
	}
	dc.Scale(b.ScaleX, b.ScaleY)

	switch v := o.(type) {
	case *Rectangle:
		dc.DrawRectangle(0, 0, v.Width, v.Height)
		paint(dc, &v.Base)
	case *Circle:
		dc.DrawCircle(v.Radius, v.Radius, v.Radius)
		paint(dc, &v.Base)
	case *Text:
		c.drawText(dc, v)
	case *Image:
		c.drawImage(dc, v, m)
	case *Unknown:
		// not drawable
	}
}

func (c *Canvas) drawText(dc *gg.Context, t *Text) {
	col, ok := colorOf(t.Fill, t.Opacity)
	if !ok {
		return
	}
	dc.SetFontFace(c.fonts.Face(t.FontFamily, t.FontSize))
	dc.SetColor(col)
	lh := t.LineHeight
	if lh <= 0 {
		lh = DefaultLineHeight
	}
	for i, line := range strings.Split(t.Text, "\n") {
		dc.DrawStringAnchored(line, 0, float64(i)*t.FontSize*lh, 0, 1)
	}
}

// drawImage resamples the bitmap to its on-screen pixel size with imaging
// before handing it to gg, which only does nearest/bilinear sampling.
func (c *Canvas) drawImage(dc *gg.Context, im *Image, m float64) {
	src := c.bitmaps[im.Src]
	if src == nil || im.Width <= 0 || im.Height <= 0 {
		return
	}
	tw := clampSide(im.Width * math.Abs(im.ScaleX) * m)
	th := clampSide(im.Height * math.Abs(im.ScaleY) * m)
	sb := src.Bounds()
	var bmp image.Image = src
	if sb.Dx() != tw || sb.Dy() != th {
		bmp = imaging.Resize(src, tw, th, imaging.Lanczos)
	}
	dc.Scale(im.Width/float64(tw), im.Height/float64(th))
	dc.DrawImage(bmp, 0, 0)
}

func clampSide(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	if n > maxBitmapSide {
		return maxBitmapSide
	}
	return n
}

// paint fills and strokes the current path.
func paint(dc *gg.Context, b *Base) {
	fill, hasFill := colorOf(b.Fill, b.Opacity)
	stroke, hasStroke := colorOf(b.Stroke, b.Opacity)
	hasStroke = hasStroke && b.StrokeWidth > 0
	switch {
	case hasFill && hasStroke:
		dc.SetColor(fill)
		dc.FillPreserve()
		dc.SetColor(stroke)
		dc.SetLineWidth(b.StrokeWidth)
		dc.Stroke()
	case hasFill:
		dc.SetColor(fill)
		dc.Fill()
	case hasStroke:
		dc.SetColor(stroke)
		dc.SetLineWidth(b.StrokeWidth)
		dc.Stroke()
	default:
		dc.ClearPath()
	}
}

// colorOf parses s and applies opacity; empty, "transparent" and
// unparsable colours report false.
func colorOf(s string, opacity float64) (color.NRGBA, bool) {
	if s == "" || strings.EqualFold(s, "transparent") {
		return color.NRGBA{}, false
	}
	col, err := ParseColor(s)
	if err != nil {
		return color.NRGBA{}, false
	}
	if opacity < 1 {
		col.A = uint8(math.Round(float64(col.A) * math.Max(opacity, 0)))
	}
	return col, col.A > 0
}

// drawControls outlines the selection and its four corner handles.
func drawControls(dc *gg.Context, b *Base, m float64) {
	col, ok := colorOf(b.CornerColor, 1)
	if !ok {
		col = color.NRGBA{R: 0, G: 0, B: 255, A: 255}
	}
	size := b.CornerSize
	if size <= 0 {
		size = 8
	}
	t := b.Transform()
	corners := [4]Pt{
		t.Apply(Pt{0, 0}),
		t.Apply(Pt{b.Width, 0}),
		t.Apply(Pt{b.Width, b.Height}),
		t.Apply(Pt{0, b.Height}),
	}
	dc.SetColor(col)
	dc.SetLineWidth(1 / m)
	dc.MoveTo(corners[0].X, corners[0].Y)
	for _, p := range corners[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.ClosePath()
	dc.Stroke()
	for _, p := range corners {
		dc.DrawRectangle(p.X-size/2, p.Y-size/2, size, size)
		dc.Fill()
	}
}
