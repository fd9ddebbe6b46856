/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report describing the editor
// state at the time of failure.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	applog "mattydesign/internal/log"
	"mattydesign/internal/scene"
	"mattydesign/internal/storage"
	"mattydesign/internal/telemetry"
	"mattydesign/internal/version"
)

// Snapshotter exposes the editor state worth describing in a report.
type Snapshotter interface {
	Snapshot() (scene.Document, bool)
	DesignID() string
}

// DirName is the folder, under the chosen base directory, receiving reports.
const DirName = "crash"

var (
	exitFn   = os.Exit
	uploadFn = func(report []byte) bool { return telemetry.Default().UploadCrash(report) }
	nowFn    = time.Now
)

// Recover captures a panic, logs it with its stack, writes a crash report
// under dir (the temp dir when empty) and exits with code 2. s may be nil.
// The scene itself is never written out; the report only summarizes it.
//
// Usage: defer crash.Recover(ed, dir)
func Recover(s Snapshotter, dir string) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	if dir == "" {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, DirName)
	stamp := nowFn().Format("20060102-150405")

	id, summary := describe(s)
	report := buildReport(id, summary, r, stack)
	reportPath := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))
	if err := storage.WriteFileAtomic(reportPath, report); err != nil {
		l.Error("write crash report failed", slog.String("path", reportPath), slog.Any("err", err))
	}
	if uploadFn(report) {
		l.Info("crash report uploaded")
	}

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func buildReport(designID, summary string, panicVal any, stack []byte) []byte {
	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Matty Design Editor Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", nowFn().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if designID != "" {
		_, _ = fmt.Fprintf(&buf, "Design: %s\n", designID)
	}
	if summary != "" {
		_, _ = fmt.Fprintf(&buf, "Scene: %s\n", summary)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", stack)
	return buf.Bytes()
}

// describe reports the design id and a one-line census of the scene, such as
// "3 objects (circle 1, rect 2)".
func describe(s Snapshotter) (id, summary string) {
	if s == nil {
		return "", ""
	}
	defer func() {
		// the editor state may be what panicked
		if r := recover(); r != nil {
			summary = fmt.Sprintf("unavailable (%v)", r)
		}
	}()
	id = s.DesignID()
	doc, ok := s.Snapshot()
	if !ok {
		return id, "no canvas"
	}
	counts := map[string]int{}
	for _, o := range doc.Objects {
		counts[o.Kind().String()]++
	}
	kinds := make([]string, 0, len(counts))
	for k, n := range counts {
		kinds = append(kinds, fmt.Sprintf("%s %d", k, n))
	}
	sort.Strings(kinds)
	summary = fmt.Sprintf("%d objects", len(doc.Objects))
	if len(kinds) > 0 {
		summary += " (" + strings.Join(kinds, ", ") + ")"
	}
	return id, summary
}
