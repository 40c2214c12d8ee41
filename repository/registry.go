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

import (
	"context"
	"reflect"
	"sync"

	"github.com/uptrace/bun"
)

// Source is where a probed method name was found.
type Source int

const (
	// SourceEntity holds scopes declared by the entity through Scoper.
	SourceEntity Source = iota
	// SourceBuilder holds Handle chain operations.
	SourceBuilder
	// SourceRawQuery holds expression operations of *bun.SelectQuery.
	SourceRawQuery
	// SourceRelation holds operations on the current relation's base
	// query. Only consulted for relation-typed handles.
	SourceRelation

	sourceCount
)

func (s Source) String() string {
	switch s {
	case SourceEntity:
		return "entity"
	case SourceBuilder:
		return "builder"
	case SourceRawQuery:
		return "raw"
	case SourceRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// ScopeFunc is a named query scope declared by an entity.
type ScopeFunc func(q *bun.SelectQuery, args ...any) *bun.SelectQuery

// Scoper is implemented by entities (on the pointer receiver) that declare
// named scopes callable through the repository, e.g. Call(ctx, "Active").
type Scoper interface {
	Scopes() map[string]ScopeFunc
}

type chainFunc[T any] func(h *Handle[T], args []any) (*Handle[T], error)

type execFunc[T any] func(ctx context.Context, r *Repository[T], args []any) (any, error)

type capability[T any] struct {
	name   string
	source Source
	chain  chainFunc[T]
	exec   execFunc[T]
}

func (c capability[T]) terminal() bool { return c.exec != nil }

type registry[T any] struct {
	terminals map[string]capability[T]
	sources   [sourceCount]map[string]capability[T]
}

var registries sync.Map // reflect.Type -> *registry[T]

// registryFor returns the capability registry of T, building it on first
// use.
func registryFor[T any]() *registry[T] {
	typ := reflect.TypeFor[T]()
	if reg, ok := registries.Load(typ); ok {
		return reg.(*registry[T])
	}
	reg, _ := registries.LoadOrStore(typ, buildRegistry[T]())
	return reg.(*registry[T])
}

func buildRegistry[T any]() *registry[T] {
	reg := &registry[T]{terminals: make(map[string]capability[T])}
	for i := range reg.sources {
		reg.sources[i] = make(map[string]capability[T])
	}
	for name, fn := range terminalHandlers[T]() {
		reg.terminals[name] = capability[T]{name: name, exec: fn}
	}
	if s, ok := any(new(T)).(Scoper); ok {
		for name, scope := range s.Scopes() {
			reg.add(SourceEntity, name, func(h *Handle[T], args []any) (*Handle[T], error) {
				return h.Apply(func(q *bun.SelectQuery) *bun.SelectQuery { return scope(q, args...) }), nil
			})
		}
	}
	for name, fn := range builderChains[T]() {
		reg.add(SourceBuilder, name, fn)
	}
	for name, fn := range rawChains[T]() {
		reg.add(SourceRawQuery, name, fn)
	}
	for name, fn := range relationChains[T]() {
		reg.add(SourceRelation, name, fn)
	}
	return reg
}

func (reg *registry[T]) add(src Source, name string, fn chainFunc[T]) {
	reg.sources[src][name] = capability[T]{name: name, source: src, chain: fn}
}

// lookup resolves name for the handle h.
func (reg *registry[T]) lookup(name string, h *Handle[T]) (capability[T], bool) {
	switch Classify(name) {
	case GetMethod:
		c, ok := reg.terminals[name]
		return c, ok
	case DynamicMethod:
		c, ok := reg.sources[SourceBuilder][name]
		return c, ok
	}
	for src := SourceEntity; src < sourceCount; src++ {
		if src == SourceRelation && !h.IsRelation() {
			continue
		}
		if c, ok := reg.sources[src][name]; ok {
			return c, true
		}
	}
	return capability[T]{}, false
}

func queryChain[T any](method string, fn func(*Handle[T], string, ...any) *Handle[T]) chainFunc[T] {
	return func(h *Handle[T], args []any) (*Handle[T], error) {
		query, err := argAt[string](method, args, 0)
		if err != nil {
			return nil, err
		}
		return fn(h, query, args[1:]...), nil
	}
}

func columnChain[T any](method string, fn func(*Handle[T], string) *Handle[T]) chainFunc[T] {
	return func(h *Handle[T], args []any) (*Handle[T], error) {
		column, err := argAt[string](method, args, 0)
		if err != nil {
			return nil, err
		}
		return fn(h, column), nil
	}
}

func columnsChain[T any](method string, fn func(*Handle[T], ...string) *Handle[T]) chainFunc[T] {
	return func(h *Handle[T], args []any) (*Handle[T], error) {
		columns, err := stringArgs(method, args)
		if err != nil {
			return nil, err
		}
		return fn(h, columns...), nil
	}
}

func valuesChain[T any](method string, fn func(*Handle[T], string, any) *Handle[T]) chainFunc[T] {
	return func(h *Handle[T], args []any) (*Handle[T], error) {
		column, err := argAt[string](method, args, 0)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, invalidArgument(method, "missing values")
		}
		return fn(h, column, args[1]), nil
	}
}

func intChain[T any](method string, fn func(*Handle[T], int) *Handle[T]) chainFunc[T] {
	return func(h *Handle[T], args []any) (*Handle[T], error) {
		n, err := argAt[int](method, args, 0)
		if err != nil {
			return nil, err
		}
		return fn(h, n), nil
	}
}

func noArgChain[T any](fn func(*Handle[T]) *Handle[T]) chainFunc[T] {
	return func(h *Handle[T], _ []any) (*Handle[T], error) { return fn(h), nil }
}

func handleChain[T any](method string, fn func(*Handle[T], *Handle[T]) *Handle[T]) chainFunc[T] {
	return func(h *Handle[T], args []any) (*Handle[T], error) {
		other, err := argAt[*Handle[T]](method, args, 0)
		if err != nil {
			return nil, err
		}
		return fn(h, other), nil
	}
}

func orderChain[T any](method string, fixed *Direction, defColumn string) chainFunc[T] {
	return func(h *Handle[T], args []any) (*Handle[T], error) {
		column, err := optionalArg(method, args, 0, defColumn)
		if err != nil {
			return nil, err
		}
		if column == "" {
			return nil, invalidArgument(method, "missing column")
		}
		dir := Ascending
		if fixed != nil {
			dir = *fixed
		} else if dir, err = directionArg(method, args, 1); err != nil {
			return nil, err
		}
		return h.OrderBy(column, dir), nil
	}
}

func builderChains[T any]() map[string]chainFunc[T] {
	asc, desc := Ascending, Descending
	return map[string]chainFunc[T]{
		"Where":        queryChain("Where", (*Handle[T]).Where),
		"OrWhere":      queryChain("OrWhere", (*Handle[T]).WhereOr),
		"WhereIn":      valuesChain("WhereIn", (*Handle[T]).WhereIn),
		"WhereNotIn":   valuesChain("WhereNotIn", (*Handle[T]).WhereNotIn),
		"WhereNull":    columnChain("WhereNull", (*Handle[T]).WhereNull),
		"WhereNotNull": columnChain("WhereNotNull", (*Handle[T]).WhereNotNull),
		"WhereKey": func(h *Handle[T], args []any) (*Handle[T], error) {
			ids := normalizeIDs(args...)
			if len(ids) == 0 {
				return nil, invalidArgument("WhereKey", "missing id")
			}
			return h.WhereKey(ids...), nil
		},
		"WithTrashed": noArgChain((*Handle[T]).WithTrashed),
		"OnlyTrashed": noArgChain((*Handle[T]).OnlyTrashed),
		"Select":      columnsChain("Select", (*Handle[T]).Columns),
		"GroupBy":     columnsChain("GroupBy", (*Handle[T]).GroupBy),
		"Limit":       intChain("Limit", (*Handle[T]).Limit),
		"Offset":      intChain("Offset", (*Handle[T]).Offset),
		"ForPage": func(h *Handle[T], args []any) (*Handle[T], error) {
			page, err := argAt[int]("ForPage", args, 0)
			if err != nil {
				return nil, err
			}
			perPage, err := argAt[int]("ForPage", args, 1)
			if err != nil {
				return nil, err
			}
			if page < 1 {
				page = 1
			}
			return h.Offset((page - 1) * perPage).Limit(perPage), nil
		},
		"OrderByDesc": orderChain[T]("OrderByDesc", &desc, ""),
		"Latest":      orderChain[T]("Latest", &desc, "created_at"),
		"Oldest":      orderChain[T]("Oldest", &asc, "created_at"),
		"Relation":    columnChain("Relation", (*Handle[T]).Relation),
		"Union":       handleChain("Union", (*Handle[T]).Union),
		"UnionAll":    handleChain("UnionAll", (*Handle[T]).UnionAll),
	}
}

func rawQueryChain[T any](method string, fn func(*bun.SelectQuery, string, ...any) *bun.SelectQuery) chainFunc[T] {
	return func(h *Handle[T], args []any) (*Handle[T], error) {
		query, err := argAt[string](method, args, 0)
		if err != nil {
			return nil, err
		}
		rest := args[1:]
		return h.Apply(func(q *bun.SelectQuery) *bun.SelectQuery { return fn(q, query, rest...) }), nil
	}
}

func rawChains[T any]() map[string]chainFunc[T] {
	return map[string]chainFunc[T]{
		"ColumnExpr": rawQueryChain[T]("ColumnExpr", (*bun.SelectQuery).ColumnExpr),
		"GroupExpr":  rawQueryChain[T]("GroupExpr", (*bun.SelectQuery).GroupExpr),
		"Having":     rawQueryChain[T]("Having", (*bun.SelectQuery).Having),
		"DistinctOn": rawQueryChain[T]("DistinctOn", (*bun.SelectQuery).DistinctOn),
		"Join":       rawQueryChain[T]("Join", (*bun.SelectQuery).Join),
		"For":        rawQueryChain[T]("For", (*bun.SelectQuery).For),
		"Distinct": func(h *Handle[T], _ []any) (*Handle[T], error) {
			return h.Apply(func(q *bun.SelectQuery) *bun.SelectQuery { return q.Distinct() }), nil
		},
		"WhereGroup": func(h *Handle[T], args []any) (*Handle[T], error) {
			sep, err := argAt[string]("WhereGroup", args, 0)
			if err != nil {
				return nil, err
			}
			fn, err := argAt[func(*bun.SelectQuery) *bun.SelectQuery]("WhereGroup", args, 1)
			if err != nil {
				return nil, err
			}
			return h.Apply(func(q *bun.SelectQuery) *bun.SelectQuery { return q.WhereGroup(sep, fn) }), nil
		},
	}
}

func relationChains[T any]() map[string]chainFunc[T] {
	return map[string]chainFunc[T]{
		"RelatedWhere":   queryChain("RelatedWhere", (*Handle[T]).RelatedWhere),
		"RelatedColumns": columnsChain("RelatedColumns", (*Handle[T]).RelatedColumns),
		"RelatedOrder": func(h *Handle[T], args []any) (*Handle[T], error) {
			column, err := argAt[string]("RelatedOrder", args, 0)
			if err != nil {
				return nil, err
			}
			dir, err := directionArg("RelatedOrder", args, 1)
			if err != nil {
				return nil, err
			}
			return h.RelatedOrder(column, dir), nil
		},
	}
}
