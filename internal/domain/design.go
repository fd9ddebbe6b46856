/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the design record exchanged with the designs service and
// kept in the local cache, together with its scene body and save payload.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"mattydesign/internal/scene"
)

// DefaultTitle is offered when saving a design that has no title yet.
const DefaultTitle = "Untitled Design"

// Design is one saved composition.
type Design struct {
	// ID is empty until the service has persisted the design.
	ID       string    `json:"_id,omitempty"`
	Title    string    `json:"title"`
	JSONData SceneData `json:"jsonData"`
	// S3URL references the rendered asset (a URL or a data URL).
	S3URL string `json:"s3Url,omitempty"`
}

// Persisted reports whether the design has a service-assigned identifier.
func (d Design) Persisted() bool { return d.ID != "" }

// Normalized decodes the scene body and, when the design has a rendered asset
// reference, points image objects still carrying inline data URLs at it.
func (d Design) Normalized() (scene.Document, error) {
	doc, err := d.JSONData.Decode()
	if err != nil {
		return scene.Document{}, err
	}
	if d.S3URL != "" {
		scene.RewriteInlineImages(&doc, d.S3URL)
	}
	return doc, nil
}

// ErrNoBody is returned by SceneData.Decode when the design has no scene.
var ErrNoBody = errors.New("design has no scene data")

// SceneData is the scene body of a design. On the wire it is either the
// scene document object or a JSON string holding that document; both forms
// decode to the same scene.Document. null, false, 0 and "" mean no body.
type SceneData struct {
	raw    json.RawMessage
	quoted bool
}

// NewSceneData wraps a scene document.
func NewSceneData(doc scene.Document) (SceneData, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return SceneData{}, fmt.Errorf("encode scene: %w", err)
	}
	return SceneData{raw: b}, nil
}

// SceneDataFromJSON wraps an already encoded scene document.
func SceneDataFromJSON(raw []byte) SceneData {
	return SceneData{raw: append(json.RawMessage(nil), bytes.TrimSpace(raw)...)}
}

func (s SceneData) Empty() bool { return len(s.raw) == 0 }

// Quoted reports whether the body arrived text-encoded.
func (s SceneData) Quoted() bool { return s.quoted }

// Raw returns the document bytes, unquoted.
func (s SceneData) Raw() json.RawMessage { return s.raw }

// Decode parses and validates the body.
func (s SceneData) Decode() (scene.Document, error) {
	if s.Empty() {
		return scene.Document{}, ErrNoBody
	}
	return scene.DecodeDocument(s.raw)
}

// MarshalJSON always writes the object form.
func (s SceneData) MarshalJSON() ([]byte, error) {
	if s.Empty() {
		return []byte("null"), nil
	}
	if !json.Valid(s.raw) {
		// a text body that never parsed is sent back as the string it was
		return json.Marshal(string(s.raw))
	}
	return s.raw, nil
}

func (s *SceneData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*s = SceneData{}
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")), bytes.Equal(b, []byte("false")), bytes.Equal(b, []byte("0")):
		return nil
	case b[0] == '"':
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return fmt.Errorf("jsonData: %w", err)
		}
		text = string(bytes.TrimSpace([]byte(text)))
		if text == "" {
			return nil
		}
		s.raw, s.quoted = json.RawMessage(text), true
		return nil
	default:
		s.raw = append(json.RawMessage(nil), b...)
		return nil
	}
}

// SavePayload is the body of create and update requests.
type SavePayload struct {
	Name  string         `json:"name"`
	Image string         `json:"image"`
	Data  scene.Document `json:"data"`
}

// DesignPatch lists the fields to change on a cached design; nil fields are kept.
type DesignPatch struct {
	Title    *string
	JSONData *SceneData
	S3URL    *string
}

// Apply writes the set fields of p onto d.
func (p DesignPatch) Apply(d *Design) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.JSONData != nil {
		d.JSONData = *p.JSONData
	}
	if p.S3URL != nil {
		d.S3URL = *p.S3URL
	}
}
