/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"sort"
	"sync"
)

var defaultRegistry = &modelRegistry{}

// SQLModel is a bun model whose table the migration manager creates.
// Models are created in ascending Priority order.
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

type modelRegistry struct {
	mu     sync.RWMutex
	models []SQLModel
}

func (r *modelRegistry) register(models ...SQLModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = append(r.models, models...)
}

func (r *modelRegistry) sorted() []SQLModel {
	r.mu.RLock()
	out := make([]SQLModel, len(r.models))
	copy(out, r.models)
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out
}

type modelAdapter struct {
	instance interface{}
	priority int
}

func (a *modelAdapter) Instance() interface{} { return a.instance }

func (a *modelAdapter) Priority() int { return a.priority }

// NewModelAdapter wraps a bun model pointer, e.g. (*User)(nil), and its
// priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int) SQLModel {
	return &modelAdapter{instance: instance, priority: priority}
}

// RegisterModel adds models to the default registry.
func RegisterModel(models ...SQLModel) {
	defaultRegistry.register(models...)
}

// GetRegisteredModels returns the registered models by ascending priority.
func GetRegisteredModels() []SQLModel {
	return defaultRegistry.sorted()
}

// RegisteredModelInstances returns the bun model of each registered model.
func RegisteredModelInstances() []interface{} {
	models := GetRegisteredModels()
	out := make([]interface{}, len(models))
	for i, m := range models {
		out[i] = m.Instance()
	}
	return out
}
