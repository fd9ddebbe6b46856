/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mattydesign/internal/scene"
)

type fakeEditor struct {
	id    string
	doc   scene.Document
	live  bool
	panic bool
}

func (f *fakeEditor) Snapshot() (scene.Document, bool) {
	if f.panic {
		panic("snapshot broke")
	}
	return f.doc, f.live
}
func (f *fakeEditor) DesignID() string { return f.id }

// hook silences stderr and intercepts exit, upload and time for one test.
func hook(t *testing.T) (exitCode *int, uploads *[][]byte) {
	t.Helper()
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	code := -1
	var sent [][]byte
	oldExit, oldUpload, oldNow := exitFn, uploadFn, nowFn
	exitFn = func(c int) { code = c }
	uploadFn = func(b []byte) bool { sent = append(sent, b); return true }
	nowFn = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	t.Cleanup(func() {
		exitFn, uploadFn, nowFn = oldExit, oldUpload, oldNow
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	})
	return &code, &sent
}

func TestRecover_WritesReport(t *testing.T) {
	code, uploads := hook(t)
	dir := t.TempDir()
	ed := &fakeEditor{id: "d42", live: true, doc: scene.Document{Objects: []scene.Object{
		scene.NewRectangle(1, 2, 3, 4, "#fff"),
		scene.NewCircle(0, 0, 5, "#000"),
		scene.NewRectangle(5, 6, 7, 8, "#fff"),
	}}}

	func() {
		defer Recover(ed, dir)
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	report, err := os.ReadFile(filepath.Join(dir, DirName, "crash-20250304-050607.log"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{
		"Matty Design Editor Crash Report",
		"Panic: boom",
		"Design: d42",
		"Scene: 3 objects (circle 1, rect 2)",
		"Stack:",
	} {
		if !bytes.Contains(report, []byte(want)) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
	if len(*uploads) != 1 || !bytes.Equal((*uploads)[0], report) {
		t.Fatalf("report should be offered for upload once")
	}
	entries, _ := os.ReadDir(filepath.Join(dir, DirName))
	if len(entries) != 1 {
		t.Fatalf("only the report belongs in the crash dir, got %d entries", len(entries))
	}
}

func TestRecover_NilSnapshotterUsesTempDir(t *testing.T) {
	code, _ := hook(t)
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	func() {
		defer Recover(nil, "")
		panic("kaboom")
	}()
	if *code != 2 {
		t.Fatalf("expected exit 2, got %d", *code)
	}
	report, err := os.ReadFile(filepath.Join(os.TempDir(), DirName, "crash-20250304-050607.log"))
	if err != nil {
		t.Fatalf("report missing: %v", err)
	}
	if strings.Contains(string(report), "Design:") || strings.Contains(string(report), "Scene:") {
		t.Fatalf("no editor state expected:\n%s", report)
	}
}

func TestRecover_SurvivesBrokenSnapshot(t *testing.T) {
	code, _ := hook(t)
	dir := t.TempDir()
	func() {
		defer Recover(&fakeEditor{panic: true}, dir)
		panic("first")
	}()
	if *code != 2 {
		t.Fatalf("expected exit 2, got %d", *code)
	}
	report, err := os.ReadFile(filepath.Join(dir, DirName, "crash-20250304-050607.log"))
	if err != nil {
		t.Fatalf("report should still be written: %v", err)
	}
	if !strings.Contains(string(report), "Scene: unavailable (snapshot broke)") {
		t.Fatalf("broken snapshot not noted:\n%s", report)
	}
}

func TestRecover_NoPanicIsNoop(t *testing.T) {
	code, uploads := hook(t)
	func() {
		defer Recover(&fakeEditor{live: true}, t.TempDir())
	}()
	if *code != -1 || len(*uploads) != 0 {
		t.Fatalf("nothing should happen without a panic")
	}
}

func TestDescribe_NoCanvas(t *testing.T) {
	id, summary := describe(&fakeEditor{id: "d1"})
	if id != "d1" || summary != "no canvas" {
		t.Fatalf("got %q %q", id, summary)
	}
	_, summary = describe(&fakeEditor{live: true})
	if summary != "0 objects" {
		t.Fatalf("empty scene summary = %q", summary)
	}
}
