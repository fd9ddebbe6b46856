/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mattydesign/internal/domain"
)

// designResponse is the body of every design endpoint. The service answers
// either {"design": {...}} or the bare design; both are accepted here and
// nowhere else.
type designResponse struct {
	Design domain.Design
}

func (r *designResponse) UnmarshalJSON(b []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return fmt.Errorf("design response: %w", err)
	}
	if probe == nil {
		return fmt.Errorf("design response: expected an object")
	}
	if inner, ok := probe["design"]; ok && !bytes.Equal(bytes.TrimSpace(inner), []byte("null")) {
		b = inner
	}
	var d domain.Design
	if err := json.Unmarshal(b, &d); err != nil {
		return fmt.Errorf("design response: %w", err)
	}
	r.Design = d
	return nil
}
