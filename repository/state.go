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

package repository

// modifiers is the one-shot bundle read by the next applyPendingState.
type modifiers struct {
	skipGlobalScope bool
	skipOrderBy     bool
}

// consume returns the bundle and clears it.
func (m *modifiers) consume() modifiers {
	out := *m
	*m = modifiers{}
	return out
}

// setOrder queues an explicit order on the handle and suppresses the
// default order for the next terminal call.
func (r *Repository[T]) setOrder(column string, dir Direction) {
	r.handle = r.handle.OrderBy(column, dir)
	r.pending.skipOrderBy = true
}

// applyPendingState runs immediately before a terminal call.
func (r *Repository[T]) applyPendingState() {
	m := r.pending.consume()
	if !m.skipOrderBy && r.defaultOrder != nil {
		r.handle = r.handle.AddOrder(*r.defaultOrder)
	}
	if !m.skipGlobalScope && r.scope != nil {
		if h := r.scope(r.handle); h != nil {
			r.handle = h
		}
	}
}

// reset discards the handle and pending modifiers.
func (r *Repository[T]) reset() {
	r.handle = newHandle[T](r.table)
	r.pending = modifiers{}
}
