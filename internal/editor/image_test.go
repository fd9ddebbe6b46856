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
	"bytes"
	"context"
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"mattydesign/internal/scene"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func close8(got uint32, want int) bool { return math.Abs(float64(got)-float64(want)) <= 2 }

func TestAddImageData_PerAxisScale(t *testing.T) {
	cases := []struct {
		w, h   int
		sx, sy float64
	}{
		{400, 800, 0.5, 0.25},
		{800, 600, 0.25, 200.0 / 600},
		{400, 100, 0.5, 1},
		{50, 50, 1, 1},
		{200, 200, 1, 1},
	}
	for _, tc := range cases {
		h := newHarness(t, "")
		h.ed.Mount(context.Background(), "")
		obj, err := h.ed.AddImageData(context.Background(), "a.png", pngBytes(t, tc.w, tc.h))
		if err != nil {
			t.Fatalf("%dx%d: %v", tc.w, tc.h, err)
		}
		im := obj.(*scene.Image)
		if !near(im.ScaleX, tc.sx) || !near(im.ScaleY, tc.sy) {
			t.Fatalf("%dx%d: scale %v,%v want %v,%v", tc.w, tc.h, im.ScaleX, im.ScaleY, tc.sx, tc.sy)
		}
		if im.Width != float64(tc.w) || im.Height != float64(tc.h) {
			t.Fatalf("%dx%d: natural size lost: %vx%v", tc.w, tc.h, im.Width, im.Height)
		}
		sw, sh := im.ScaledSize()
		if !near(im.Left+sw/2, 400) || !near(im.Top+sh/2, 300) {
			t.Fatalf("%dx%d: not centered: %v,%v", tc.w, tc.h, im.Left, im.Top)
		}
		if h.ed.Canvas().Active() != scene.Object(im) {
			t.Fatalf("%dx%d: image should be selected", tc.w, tc.h)
		}
		if !strings.HasPrefix(im.Src, "data:image/png;base64,") {
			t.Fatalf("src = %.40q", im.Src)
		}
	}
}

func TestAddImageData_RendersPrimedBitmap(t *testing.T) {
	h := newHarness(t, "")
	h.ed.Mount(context.Background(), "")
	if _, err := h.ed.AddImageData(context.Background(), "a.png", pngBytes(t, 100, 100)); err != nil {
		t.Fatal(err)
	}
	img, err := h.ed.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := img.At(400, 300).RGBA()
	if !close8(r>>8, 200) || !close8(g>>8, 40) || !close8(b>>8, 40) {
		t.Fatalf("center pixel = %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestAddImageData_RejectsNonImages(t *testing.T) {
	h := newHarness(t, "")
	h.ed.Mount(context.Background(), "")
	_, err := h.ed.AddImageData(context.Background(), "notes.txt", []byte("hello, world"))
	if !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
	// PNG signature with a truncated body sniffs as an image but cannot decode.
	broken := pngBytes(t, 10, 10)[:24]
	if _, err := h.ed.AddImageData(context.Background(), "broken.png", broken); err == nil {
		t.Fatalf("expected decode error")
	}
	if h.ed.Canvas().Len() != 0 {
		t.Fatalf("nothing should be inserted")
	}
}

func TestAddImage_ResetsInput(t *testing.T) {
	h := newHarness(t, "")
	h.ed.Mount(context.Background(), "")
	path := filepath.Join(t.TempDir(), "logo.png")
	if err := os.WriteFile(path, pngBytes(t, 300, 150), 0o644); err != nil {
		t.Fatal(err)
	}
	in := &ImageInput{}
	if obj, err := h.ed.AddImage(context.Background(), in); obj != nil || err != nil {
		t.Fatalf("no selection should be a no-op")
	}

	in.Select(path)
	obj, err := h.ed.AddImage(context.Background(), in)
	if err != nil || obj == nil {
		t.Fatalf("insert failed: %v", err)
	}
	if in.Selected() != "" {
		t.Fatalf("input should be reset after insertion")
	}

	in.Select(filepath.Join(t.TempDir(), "missing.png"))
	if _, err := h.ed.AddImage(context.Background(), in); err == nil {
		t.Fatalf("expected read error")
	}
	if in.Selected() != "" {
		t.Fatalf("input should be reset even when reading fails")
	}
}

func TestAddImage_NoCanvasKeepsSelection(t *testing.T) {
	h := newHarness(t, "")
	in := &ImageInput{}
	in.Select("/tmp/whatever.png")
	if obj, err := h.ed.AddImage(context.Background(), in); obj != nil || err != nil {
		t.Fatalf("expected no-op, got %v %v", obj, err)
	}
	if in.Selected() == "" {
		t.Fatalf("selection should survive a no-op")
	}
}
