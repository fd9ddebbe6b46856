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
	"log/slog"

	"mattydesign/internal/scene"
	"mattydesign/internal/telemetry"
)

// Shape selects the geometric primitive AddShape inserts.
type Shape int

const (
	ShapeRectangle Shape = iota
	ShapeCircle
)

func (s Shape) String() string {
	switch s {
	case ShapeRectangle:
		return "rectangle"
	case ShapeCircle:
		return "circle"
	default:
		return "unknown"
	}
}

// Defaults of inserted objects.
const (
	RectangleFill  = "#8B5CF6"
	CircleFill     = "#3B82F6"
	TextFill       = "#000000"
	TextContent    = "Type here..."
	TextFontSize   = 32
	TextFontFamily = "Inter"

	cornerColor = "blue"
	cornerSize  = 8
)

// AddShape inserts a rectangle or circle with the default geometry, selects
// it and redraws. It returns nil when no canvas is live.
func (e *Editor) AddShape(s Shape) scene.Object {
	var obj scene.Object
	switch s {
	case ShapeRectangle:
		obj = scene.NewRectangle(100, 100, 100, 100, RectangleFill)
	case ShapeCircle:
		obj = scene.NewCircle(150, 150, 50, CircleFill)
	default:
		e.log.Warn("unknown shape", slog.Int("shape", int(s)))
		return nil
	}
	return e.insert(obj)
}

// AddText inserts an editable text box with the placeholder content.
func (e *Editor) AddText() scene.Object {
	return e.insert(scene.NewText(100, 100, TextContent, TextFontSize, TextFontFamily, TextFill))
}

// insert adds obj with the selection handle style, selects it and redraws.
func (e *Editor) insert(obj scene.Object) scene.Object {
	c := e.live()
	if c == nil {
		return nil
	}
	b := obj.Props()
	b.CornerColor, b.CornerSize = cornerColor, cornerSize
	if err := c.Add(obj); err != nil {
		return nil
	}
	if err := c.SetActive(obj); err != nil {
		return nil
	}
	c.RequestRender()
	e.deps.Events.Event(telemetry.EventObjectAdded, map[string]any{"kind": obj.Kind().String()})
	return obj
}

// SelectAt selects the top-most object under p, or clears the selection.
func (e *Editor) SelectAt(p scene.Pt) scene.Object {
	c := e.live()
	if c == nil {
		return nil
	}
	obj := c.ObjectAt(p)
	if obj == nil {
		c.ClearActive()
	} else if err := c.SetActive(obj); err != nil {
		return nil
	}
	c.RequestRender()
	return obj
}

// MoveSelected translates the active object.
func (e *Editor) MoveSelected(dx, dy float64) bool {
	c := e.live()
	if c == nil {
		return false
	}
	obj := c.Active()
	if obj == nil {
		return false
	}
	if err := c.Translate(obj, dx, dy); err != nil {
		return false
	}
	c.RequestRender()
	return true
}

// DeleteSelected removes the active object.
func (e *Editor) DeleteSelected() bool {
	c := e.live()
	if c == nil {
		return false
	}
	obj := c.Active()
	if obj == nil {
		return false
	}
	if !c.Remove(obj) {
		return false
	}
	c.RequestRender()
	return true
}
