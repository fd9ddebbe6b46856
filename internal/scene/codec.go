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
	"encoding/json"
	"errors"
	"fmt"
)

// DocumentVersion is written into documents produced by this editor. It
// matches the scene format version understood by the web client sharing the
// same backend.
const DocumentVersion = "6.7.1"

// Document is the serialized scene: the document body of a design.
type Document struct {
	Version    string
	Objects    []Object
	Background string
	// Extra keeps top-level keys this package does not model.
	Extra map[string]json.RawMessage
}

// ErrNotObject is returned when a document or descriptor is not a JSON object.
var ErrNotObject = errors.New("scene: expected a JSON object")

// DecodeDocument validates raw against the document schema and decodes it.
func DecodeDocument(raw []byte) (Document, error) {
	if err := Validate(raw); err != nil {
		return Document{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if fields == nil {
		return Document{}, ErrNotObject
	}
	doc := Document{}
	takeString(fields, "version", &doc.Version)
	takeString(fields, "background", &doc.Background)
	if rawObjs, ok := fields["objects"]; ok {
		delete(fields, "objects")
		var items []json.RawMessage
		if !isNull(rawObjs) {
			if err := json.Unmarshal(rawObjs, &items); err != nil {
				return Document{}, fmt.Errorf("decode objects: %w", err)
			}
		}
		doc.Objects = make([]Object, 0, len(items))
		for i, item := range items {
			obj, err := DecodeObject(item)
			if err != nil {
				return Document{}, fmt.Errorf("object %d: %w", i, err)
			}
			doc.Objects = append(doc.Objects, obj)
		}
	}
	if len(fields) > 0 {
		doc.Extra = fields
	}
	return doc, nil
}

// MarshalJSON writes the document as a JSON object. Objects is always an array.
func (d Document) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		m[k] = v
	}
	objs := d.Objects
	if objs == nil {
		objs = []Object{}
	}
	m["objects"] = objs
	if d.Version != "" {
		m["version"] = d.Version
	}
	if d.Background != "" {
		m["background"] = d.Background
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler via DecodeDocument.
func (d *Document) UnmarshalJSON(b []byte) error {
	doc, err := DecodeDocument(b)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

// Clone returns a deep copy by re-decoding the document's own encoding.
func (d Document) Clone() (Document, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return Document{}, err
	}
	return DecodeDocument(b)
}

// DecodeObject decodes one descriptor, choosing the variant from its type tag.
func DecodeObject(raw []byte) (Object, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	if fields == nil {
		return nil, ErrNotObject
	}
	var tag string
	if t, ok := fields["type"]; ok {
		_ = json.Unmarshal(t, &tag)
	}
	switch KindOf(tag) {
	case KindRect:
		o := &Rectangle{}
		o.Base.decode(fields)
		return o, nil
	case KindCircle:
		o := &Circle{}
		takeFloat(fields, "radius", &o.Radius)
		o.Base.decode(fields)
		return o, nil
	case KindText:
		o := &Text{LineHeight: DefaultLineHeight}
		takeString(fields, "text", &o.Text)
		takeFloat(fields, "fontSize", &o.FontSize)
		takeString(fields, "fontFamily", &o.FontFamily)
		takeFloat(fields, "lineHeight", &o.LineHeight)
		o.Base.decode(fields)
		return o, nil
	case KindImage:
		o := &Image{}
		takeString(fields, "src", &o.Src)
		o.Base.decode(fields)
		return o, nil
	default:
		o := &Unknown{Type: tag, Raw: append(json.RawMessage(nil), bytes.TrimSpace(raw)...)}
		o.Base.decode(fields)
		o.Base.Extra = nil
		return o, nil
	}
}

func (o *Rectangle) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Base.encode(KindRect.String()))
}

func (o *Circle) MarshalJSON() ([]byte, error) {
	m := o.Base.encode(KindCircle.String())
	m["radius"] = o.Radius
	return json.Marshal(m)
}

func (o *Text) MarshalJSON() ([]byte, error) {
	m := o.Base.encode(KindText.String())
	m["text"] = o.Text
	m["fontSize"] = o.FontSize
	m["fontFamily"] = o.FontFamily
	m["lineHeight"] = o.LineHeight
	return json.Marshal(m)
}

func (o *Image) MarshalJSON() ([]byte, error) {
	m := o.Base.encode(KindImage.String())
	m["src"] = o.Src
	return json.Marshal(m)
}

// MarshalJSON re-emits the descriptor exactly as it was read.
func (o *Unknown) MarshalJSON() ([]byte, error) {
	if len(o.Raw) == 0 {
		return []byte("{}"), nil
	}
	return o.Raw, nil
}

// decode consumes the common keys from fields; whatever is left (apart from
// the type tag) lands in Extra.
func (b *Base) decode(fields map[string]json.RawMessage) {
	*b = defaultBase()
	delete(fields, "type")
	takeFloat(fields, "left", &b.Left)
	takeFloat(fields, "top", &b.Top)
	takeFloat(fields, "width", &b.Width)
	takeFloat(fields, "height", &b.Height)
	takeFloat(fields, "scaleX", &b.ScaleX)
	takeFloat(fields, "scaleY", &b.ScaleY)
	takeFloat(fields, "angle", &b.Angle)
	takeString(fields, "fill", &b.Fill)
	takeString(fields, "stroke", &b.Stroke)
	takeFloat(fields, "strokeWidth", &b.StrokeWidth)
	takeFloat(fields, "opacity", &b.Opacity)
	takeString(fields, "cornerColor", &b.CornerColor)
	takeFloat(fields, "cornerSize", &b.CornerSize)
	if len(fields) > 0 {
		b.Extra = fields
	}
}

func (b *Base) encode(tag string) map[string]any {
	m := make(map[string]any, len(b.Extra)+16)
	for k, v := range b.Extra {
		m[k] = v
	}
	m["type"] = tag
	m["left"] = b.Left
	m["top"] = b.Top
	m["width"] = b.Width
	m["height"] = b.Height
	m["scaleX"] = b.ScaleX
	m["scaleY"] = b.ScaleY
	m["angle"] = b.Angle
	m["opacity"] = b.Opacity
	// fill/stroke may hold gradients or null in Extra; a typed value wins only when set.
	if _, kept := m["fill"]; b.Fill != "" || !kept {
		m["fill"] = b.Fill
	}
	if b.Stroke != "" {
		m["stroke"] = b.Stroke
	}
	if b.StrokeWidth != 0 {
		m["strokeWidth"] = b.StrokeWidth
	}
	if b.CornerColor != "" {
		m["cornerColor"] = b.CornerColor
	}
	if b.CornerSize != 0 {
		m["cornerSize"] = b.CornerSize
	}
	return m
}

// takeFloat moves a numeric key into dst. Keys holding anything else stay in fields.
func takeFloat(fields map[string]json.RawMessage, key string, dst *float64) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || isNull(raw) {
		return
	}
	*dst = v
	delete(fields, key)
}

// takeString moves a string key into dst. Keys holding anything else stay in fields.
func takeString(fields map[string]json.RawMessage, key string, dst *string) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil || isNull(raw) {
		return
	}
	*dst = v
	delete(fields, key)
}

func isNull(raw json.RawMessage) bool { return bytes.Equal(bytes.TrimSpace(raw), []byte("null")) }

// RewriteInlineImages points every image whose source is an inline data URL
// at src and returns how many were rewritten.
func RewriteInlineImages(doc *Document, src string) int {
	n := 0
	for _, o := range doc.Objects {
		if im, ok := o.(*Image); ok && IsDataURL(im.Src) {
			im.Src = src
			n++
		}
	}
	return n
}
