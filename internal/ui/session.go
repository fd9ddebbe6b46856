/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui hosts the editor behind a front end: a line-oriented console
// that always builds, and a Fyne desktop window behind the "fyne" build tag.
package ui

import (
	"context"

	"mattydesign/internal/domain"
	"mattydesign/internal/editor"
)

// DesignLister backs the dashboard view.
type DesignLister interface {
	ListDesigns(ctx context.Context) ([]domain.Design, error)
}

// Session is what a front end needs to host one editing session. The front
// end supplies its own Notifier, Prompter and Navigator.
type Session struct {
	Deps     editor.Deps
	Options  editor.Options
	Designs  DesignLister
	DesignID string
	// CrashDir receives crash reports; empty means the temp dir.
	CrashDir string
}
