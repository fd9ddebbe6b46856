/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontLibrary maps font family names to parsed OpenType fonts and hands out
// sized faces. Families that were never registered resolve to the Go Regular
// fallback so text always renders and measures deterministically.
type FontLibrary struct {
	mu       sync.Mutex
	fonts    map[string]*opentype.Font
	faces    map[faceKey]font.Face
	fallback *opentype.Font
	dpi      float64
}

type faceKey struct {
	family string
	size   float64
}

// NewFontLibrary returns a library with the Go Regular fallback loaded.
func NewFontLibrary() *FontLibrary {
	fl := &FontLibrary{fonts: make(map[string]*opentype.Font), faces: make(map[faceKey]font.Face), dpi: 72}
	if f, err := opentype.Parse(goregular.TTF); err == nil {
		fl.fallback = f
		fl.fonts["go"] = f
	}
	return fl
}

// LoadTTF loads a font file into the library under the given family.
func (fl *FontLibrary) LoadTTF(family, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.Register(family, data)
}

// Register parses TTF/OTF data and files it under family.
func (fl *FontLibrary) Register(family string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	key := normFamily(family)
	fl.fonts[key] = f
	for k := range fl.faces {
		if k.family == key {
			delete(fl.faces, k)
		}
	}
	return nil
}

// Has reports whether family was registered (the fallback does not count).
func (fl *FontLibrary) Has(family string) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	_, ok := fl.fonts[normFamily(family)]
	return ok
}

// Face returns a face for family at size pixels. Faces are cached and shared;
// callers must not Close them.
func (fl *FontLibrary) Face(family string, size float64) font.Face {
	if size <= 0 {
		size = 12
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	key := faceKey{family: normFamily(family), size: size}
	if f, ok := fl.faces[key]; ok {
		return f
	}
	src := fl.fonts[key.family]
	if src == nil {
		src = fl.fallback
	}
	var face font.Face = basicfont.Face7x13
	if src != nil {
		if f, err := opentype.NewFace(src, &opentype.FaceOptions{Size: size, DPI: fl.dpi, Hinting: font.HintingFull}); err == nil {
			face = f
		}
	}
	fl.faces[key] = face
	return face
}

// Measure returns the box a block of text occupies: the widest line and
// lines × size × lineHeight.
func (fl *FontLibrary) Measure(family string, size, lineHeight float64, text string) (float64, float64) {
	face := fl.Face(family, size)
	lines := strings.Split(text, "\n")
	var w float64
	fl.mu.Lock()
	for _, ln := range lines {
		adv := font.MeasureString(face, ln)
		w = math.Max(w, float64(adv)/64)
	}
	fl.mu.Unlock()
	if lineHeight <= 0 {
		lineHeight = 1
	}
	return math.Ceil(w), float64(len(lines)) * size * lineHeight
}

func normFamily(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.Trim(s, `"' `))
}
