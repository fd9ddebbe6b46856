/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"sync"

	"mattydesign/internal/domain"
)

// ErrNoID is returned when a design without identifier is added to a cache.
var ErrNoID = errors.New("design has no identifier")

// MemoryCache is a process-local design cache.
type MemoryCache struct {
	mu      sync.RWMutex
	designs map[string]domain.Design
	order   []string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{designs: make(map[string]domain.Design)}
}

// AddDesign inserts d, replacing any cached design with the same id.
func (m *MemoryCache) AddDesign(_ context.Context, d domain.Design) error {
	if d.ID == "" {
		return ErrNoID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.designs[d.ID]; !ok {
		m.order = append(m.order, d.ID)
	}
	m.designs[d.ID] = d
	return nil
}

// UpdateDesign applies p to the design with id, creating it when absent.
func (m *MemoryCache) UpdateDesign(_ context.Context, id string, p domain.DesignPatch) error {
	if id == "" {
		return ErrNoID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.designs[id]
	if !ok {
		d = domain.Design{ID: id}
		m.order = append(m.order, id)
	}
	p.Apply(&d)
	m.designs[id] = d
	return nil
}

func (m *MemoryCache) GetDesignByID(_ context.Context, id string) (domain.Design, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.designs[id]
	return d, ok, nil
}

// ListDesigns returns cached designs, most recently added first.
func (m *MemoryCache) ListDesigns(_ context.Context) ([]domain.Design, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Design, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.designs[m.order[i]])
	}
	return out, nil
}


// Close is a no-op for the memory cache.
func (m *MemoryCache) Close() error { return nil }
