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
	"fmt"
	"path/filepath"
	"strings"

	"mattydesign/internal/domain"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls batch export of several stored designs.
//
// Path semantics:
//   - OutDir is the base directory; files land in <OutDir>/<preset>/.
//   - Each design is written as <prefix>-<id>.png so reruns overwrite.
type BatchOptions struct {
	Preset PresetName
	// MultiplierOverride, when > 0, replaces the preset's pixel density.
	MultiplierOverride float64
	OutDir             string
	PNG                PNGOptions
}

// BatchResult reports one exported design.
type BatchResult struct {
	ID   string
	Path string
	Err  error
}

// BatchExport renders each design with the preset. A failing design does
// not stop the batch; its error is reported in the result.
func BatchExport(ctx context.Context, designs []domain.Design, opt BatchOptions) []BatchResult {
	preset := opt.Preset
	if preset == "" {
		preset = PresetWeb
	}
	po := opt.PNG
	po.Multiplier = presetMultiplier(preset)
	if opt.MultiplierOverride > 0 {
		po.Multiplier = opt.MultiplierOverride
	}
	dir := filepath.Join(opt.OutDir, string(preset))
	prefix := po.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	out := make([]BatchResult, 0, len(designs))
	for _, d := range designs {
		if err := ctx.Err(); err != nil {
			out = append(out, BatchResult{ID: d.ID, Err: err})
			continue
		}
		one := po
		one.Name = fmt.Sprintf("%s-%s.png", prefix, strings.NewReplacer("/", "_", `\`, "_").Replace(d.ID))
		path, err := ExportDesignPNG(ctx, d, dir, one)
		out = append(out, BatchResult{ID: d.ID, Path: path, Err: err})
	}
	return out
}

func presetMultiplier(p PresetName) float64 {
	switch p {
	case PresetPrint:
		return 3
	default:
		return 1
	}
}
