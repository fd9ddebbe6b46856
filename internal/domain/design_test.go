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

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"mattydesign/internal/scene"
)

const body = `{"version":"5.3.0","objects":[{"type":"rect","left":1,"top":2,"width":3,"height":4,"fill":"#000"}]}`

func TestDesign_StringAndObjectBodiesAreEquivalent(t *testing.T) {
	quoted, _ := json.Marshal(body)
	var a, b Design
	if err := json.Unmarshal([]byte(`{"_id":"d1","title":"A","jsonData":`+string(quoted)+`}`), &a); err != nil {
		t.Fatalf("string form: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"_id":"d1","title":"A","jsonData":`+body+`}`), &b); err != nil {
		t.Fatalf("object form: %v", err)
	}
	if !a.JSONData.Quoted() || b.JSONData.Quoted() {
		t.Fatalf("quoted flag wrong")
	}
	da, err := a.JSONData.Decode()
	if err != nil {
		t.Fatalf("decode string body: %v", err)
	}
	db, err := b.JSONData.Decode()
	if err != nil {
		t.Fatalf("decode object body: %v", err)
	}
	ja, _ := json.Marshal(da)
	jb, _ := json.Marshal(db)
	if string(ja) != string(jb) {
		t.Fatalf("bodies differ:\n%s\n%s", ja, jb)
	}
}

func TestSceneData_NoBody(t *testing.T) {
	for _, v := range []string{`null`, `""`, `"  "`, `false`, `0`} {
		var d Design
		if err := json.Unmarshal([]byte(`{"title":"x","jsonData":`+v+`}`), &d); err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		if !d.JSONData.Empty() {
			t.Fatalf("%s should mean no body", v)
		}
		if _, err := d.JSONData.Decode(); !errors.Is(err, ErrNoBody) {
			t.Fatalf("%s: expected ErrNoBody, got %v", v, err)
		}
	}
	var d Design
	_ = json.Unmarshal([]byte(`{"title":"x"}`), &d)
	if !d.JSONData.Empty() || d.Persisted() {
		t.Fatalf("absent jsonData should be empty and design unpersisted")
	}
}

func TestSceneData_MarshalWritesObject(t *testing.T) {
	quoted, _ := json.Marshal(body)
	var sd SceneData
	if err := json.Unmarshal(quoted, &sd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(Design{ID: "d1", Title: "A", JSONData: sd})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"jsonData":{"version"`) {
		t.Fatalf("expected object form, got %s", out)
	}
	bad := SceneData{}
	_ = json.Unmarshal([]byte(`"{broken"`), &bad)
	out, err = json.Marshal(bad)
	if err != nil || string(out) != `"{broken"` {
		t.Fatalf("unparsable text body should be re-quoted, got %s (%v)", out, err)
	}
	if _, err := bad.Decode(); err == nil {
		t.Fatalf("expected decode error for broken body")
	}
}

func TestNewSceneData_And_Patch(t *testing.T) {
	doc := scene.Document{Objects: []scene.Object{scene.NewRectangle(0, 0, 1, 1, "#fff")}}
	sd, err := NewSceneData(doc)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	d := Design{ID: "d1", Title: "Old", S3URL: "old"}
	title, url := "New", "https://s3/x.png"
	DesignPatch{Title: &title, JSONData: &sd, S3URL: &url}.Apply(&d)
	if d.Title != "New" || d.S3URL != url || d.JSONData.Empty() {
		t.Fatalf("patch not applied: %+v", d)
	}
	DesignPatch{}.Apply(&d)
	if d.Title != "New" {
		t.Fatalf("empty patch must not change the design")
	}
}

func TestSavePayload_Shape(t *testing.T) {
	b, err := json.Marshal(SavePayload{Name: "n", Image: "data:image/png;base64,AA==", Data: scene.Document{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	_ = json.Unmarshal(b, &m)
	for _, k := range []string{"name", "image", "data"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("missing %q in %s", k, b)
		}
	}
	if string(m["data"]) != `{"objects":[]}` {
		t.Fatalf("unexpected data %s", m["data"])
	}
}

func TestNormalized_RewritesInlineImages(t *testing.T) {
	raw := `{"objects":[
		{"type":"image","src":"data:image/png;base64,AAAA"},
		{"type":"Image","src":"https://cdn/a.png"},
		{"type":"rect","left":3}
	]}`
	d := Design{ID: "d1", JSONData: SceneDataFromJSON([]byte(raw)), S3URL: "https://s3/d1.png"}
	doc, err := d.Normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if src := doc.Objects[0].(*scene.Image).Src; src != "https://s3/d1.png" {
		t.Fatalf("inline source not rewritten: %s", src)
	}
	if src := doc.Objects[1].(*scene.Image).Src; src != "https://cdn/a.png" {
		t.Fatalf("remote source must be kept: %s", src)
	}
	if doc.Objects[2].Props().Left != 3 {
		t.Fatalf("non-image objects must be untouched")
	}

	d.S3URL = ""
	doc, _ = d.Normalized()
	if src := doc.Objects[0].(*scene.Image).Src; src != "data:image/png;base64,AAAA" {
		t.Fatalf("without s3Url inline sources stay: %s", src)
	}
}
