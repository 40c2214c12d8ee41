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

	"github.com/tomoncle/fluentrepo/database"
	"github.com/tomoncle/fluentrepo/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// DefaultPerPage is the page size Paginate uses when none is configured.
const DefaultPerPage = 15

// ScopeHook rewrites the handle before every terminal call unless the call
// was preceded by SkipGlobalScope.
type ScopeHook[T any] func(h *Handle[T]) *Handle[T]

type options struct {
	perPage      int
	defaultOrder *OrderSpec
	name         string
	logger       database.Logger
	scope        any
}

// Option configures a Repository.
type Option func(*options)

// WithPerPage sets the default Paginate page size.
func WithPerPage(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.perPage = n
		}
	}
}

// WithDefaultOrder sets the order applied to every terminal call that was
// not preceded by OrderBy or SkipOrderBy.
func WithDefaultOrder(column string, dir Direction) Option {
	return func(o *options) {
		if column != "" {
			o.defaultOrder = &OrderSpec{Column: column, Direction: dir}
		}
	}
}

// WithName overrides the name used in errors and logs. It defaults to the
// entity type name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithLogger(l database.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGlobalScope installs hook as the repository's scope hook. The hook
// must be typed for the repository's entity; a hook for another type is
// ignored with a warning.
func WithGlobalScope[T any](hook ScopeHook[T]) Option {
	return func(o *options) { o.scope = hook }
}

// Repository is a stateful query surface over the entity type T. It holds
// one pending query handle, which every terminal call consumes. A
// Repository is meant for one unit of work and is not safe for concurrent
// use.
type Repository[T any] struct {
	db           bun.IDB
	table        *schema.Table
	registry     *registry[T]
	handle       *Handle[T]
	pending      modifiers
	defaultOrder *OrderSpec
	scope        ScopeHook[T]
	perPage      int
	name         string
	logger       database.Logger
}

// New returns a repository for T over db, which may be a *bun.DB, a bun.Tx
// or a bun.Conn.
func New[T any](db bun.IDB, opts ...Option) *Repository[T] {
	o := options{perPage: DefaultPerPage}
	for _, opt := range opts {
		opt(&o)
	}
	typ := reflect.TypeFor[T]()
	if o.name == "" {
		o.name = typ.Name()
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}
	r := &Repository[T]{
		db:           db,
		table:        db.Dialect().Tables().Get(typ),
		registry:     registryFor[T](),
		defaultOrder: o.defaultOrder,
		perPage:      o.perPage,
		name:         o.name,
		logger:       o.logger,
	}
	switch hook := o.scope.(type) {
	case nil:
	case ScopeHook[T]:
		r.scope = hook
	default:
		r.logger.Warn("Ignoring global scope for another entity type", "repository", r.name)
	}
	r.reset()
	return r
}

// DB returns the bun handle the repository executes against.
func (r *Repository[T]) DB() bun.IDB { return r.db }

// Name returns the repository display name.
func (r *Repository[T]) Name() string { return r.name }

// Handle returns the pending query handle.
func (r *Repository[T]) Handle() *Handle[T] { return r.handle }

// NewHandle returns an empty handle bound to T, e.g. for Union.
func (r *Repository[T]) NewHandle() *Handle[T] { return newHandle[T](r.table) }

// OrderBy orders the pending query and suppresses the default order for
// the next terminal call.
func (r *Repository[T]) OrderBy(column string, dir Direction) *Repository[T] {
	r.setOrder(column, dir)
	return r
}

// SkipGlobalScope disables the scope hook for the next terminal call only.
func (r *Repository[T]) SkipGlobalScope() *Repository[T] {
	r.pending.skipGlobalScope = true
	return r
}

// SkipOrderBy disables the default order for the next terminal call only.
func (r *Repository[T]) SkipOrderBy() *Repository[T] {
	r.pending.skipOrderBy = true
	return r
}

// NewQuery discards the pending query and modifiers.
func (r *Repository[T]) NewQuery() *Repository[T] {
	r.reset()
	return r
}

// Paginate returns one page of the pending query. A perPage below one uses
// the configured page size.
func (r *Repository[T]) Paginate(ctx context.Context, page, perPage int, columns ...string) (*types.Pagination[T], error) {
	r.applyPendingState()
	defer r.reset()
	if err := r.handle.Err(); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = r.perPage
	}
	pagination := types.NewDefaultPagination[T](page, perPage)
	total, err := r.handle.build(r.db, (*T)(nil), compileOptions{unordered: true}).Count(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	if total == 0 {
		return pagination, nil
	}
	r.handle = r.handle.Offset((page - 1) * perPage).Limit(perPage)
	items, err := r.fetch(ctx, columns)
	if err != nil {
		return nil, err
	}
	pagination.Items = items
	return pagination, nil
}

func (r *Repository[T]) Where(query string, args ...any) *Repository[T] {
	return r.chain("Where", append([]any{query}, args...)...)
}

func (r *Repository[T]) OrWhere(query string, args ...any) *Repository[T] {
	return r.chain("OrWhere", append([]any{query}, args...)...)
}

func (r *Repository[T]) WhereIn(column string, values any) *Repository[T] {
	return r.chain("WhereIn", column, values)
}

func (r *Repository[T]) WhereNotIn(column string, values any) *Repository[T] {
	return r.chain("WhereNotIn", column, values)
}

func (r *Repository[T]) WhereNull(column string) *Repository[T] {
	return r.chain("WhereNull", column)
}

func (r *Repository[T]) WhereNotNull(column string) *Repository[T] {
	return r.chain("WhereNotNull", column)
}

func (r *Repository[T]) WhereKey(ids ...any) *Repository[T] {
	return r.chain("WhereKey", ids...)
}

func (r *Repository[T]) WithTrashed() *Repository[T] { return r.chain("WithTrashed") }

func (r *Repository[T]) OnlyTrashed() *Repository[T] { return r.chain("OnlyTrashed") }

func (r *Repository[T]) Select(columns ...string) *Repository[T] {
	return r.chain("Select", columns)
}

func (r *Repository[T]) GroupBy(columns ...string) *Repository[T] {
	return r.chain("GroupBy", columns)
}

func (r *Repository[T]) Limit(n int) *Repository[T] { return r.chain("Limit", n) }

func (r *Repository[T]) Offset(n int) *Repository[T] { return r.chain("Offset", n) }

func (r *Repository[T]) ForPage(page, perPage int) *Repository[T] {
	return r.chain("ForPage", page, perPage)
}

// Latest orders by column, or created_at when omitted, descending. Unlike
// OrderBy it does not suppress the default order.
func (r *Repository[T]) Latest(column ...string) *Repository[T] {
	return r.chain("Latest", firstOf(column)...)
}

func (r *Repository[T]) Oldest(column ...string) *Repository[T] {
	return r.chain("Oldest", firstOf(column)...)
}

func (r *Repository[T]) Relation(name string) *Repository[T] { return r.chain("Relation", name) }

func (r *Repository[T]) RelatedWhere(query string, args ...any) *Repository[T] {
	return r.chain("RelatedWhere", append([]any{query}, args...)...)
}

func (r *Repository[T]) Union(other *Handle[T]) *Repository[T] { return r.chain("Union", other) }

func (r *Repository[T]) UnionAll(other *Handle[T]) *Repository[T] {
	return r.chain("UnionAll", other)
}

// Scope applies a scope declared by the entity through Scoper.
func (r *Repository[T]) Scope(name string, args ...any) *Repository[T] {
	return r.chain(name, args...)
}

func (r *Repository[T]) Get(ctx context.Context, columns ...string) ([]*T, error) {
	return terminal[[]*T](ctx, r, "Get", columns)
}

func (r *Repository[T]) All(ctx context.Context) ([]*T, error) {
	return terminal[[]*T](ctx, r, "All")
}

// First returns the first matching entity, or nil when nothing matches.
func (r *Repository[T]) First(ctx context.Context) (*T, error) {
	return terminal[*T](ctx, r, "First")
}

func (r *Repository[T]) FirstOrFail(ctx context.Context) (*T, error) {
	return terminal[*T](ctx, r, "FirstOrFail")
}

func (r *Repository[T]) FirstOrNew(ctx context.Context, attrs Attributes, values ...Attributes) (*T, error) {
	return terminal[*T](ctx, r, "FirstOrNew", attrs, firstAttrs(values))
}

func (r *Repository[T]) FirstOrCreate(ctx context.Context, attrs Attributes, values ...Attributes) (*T, error) {
	return terminal[*T](ctx, r, "FirstOrCreate", attrs, firstAttrs(values))
}

func (r *Repository[T]) UpdateOrCreate(ctx context.Context, attrs Attributes, values Attributes) (*T, error) {
	return terminal[*T](ctx, r, "UpdateOrCreate", attrs, values)
}

// Find returns the entity with the primary key id, or nil when absent.
func (r *Repository[T]) Find(ctx context.Context, id any) (*T, error) {
	return terminal[*T](ctx, r, "Find", id)
}

func (r *Repository[T]) FindOrNew(ctx context.Context, id any) (*T, error) {
	return terminal[*T](ctx, r, "FindOrNew", id)
}

func (r *Repository[T]) FindOrFail(ctx context.Context, id any) (*T, error) {
	return terminal[*T](ctx, r, "FindOrFail", id)
}

func (r *Repository[T]) Pluck(ctx context.Context, column string) ([]any, error) {
	return terminal[[]any](ctx, r, "Pluck", column)
}

func (r *Repository[T]) Value(ctx context.Context, column string) (any, error) {
	return r.Call(ctx, "Value", column)
}

func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	return terminal[int](ctx, r, "Count")
}

func (r *Repository[T]) Exists(ctx context.Context) (bool, error) {
	return terminal[bool](ctx, r, "Exists")
}

func (r *Repository[T]) Sum(ctx context.Context, column string) (any, error) {
	return r.Call(ctx, "Sum", column)
}

func (r *Repository[T]) Max(ctx context.Context, column string) (any, error) {
	return r.Call(ctx, "Max", column)
}

func (r *Repository[T]) Min(ctx context.Context, column string) (any, error) {
	return r.Call(ctx, "Min", column)
}

func (r *Repository[T]) Avg(ctx context.Context, column string) (any, error) {
	return r.Call(ctx, "Avg", column)
}

// Update sets values on every row the pending query matches and returns
// the number of affected rows.
func (r *Repository[T]) Update(ctx context.Context, values Attributes) (int64, error) {
	return terminal[int64](ctx, r, "Update", values)
}

// Delete removes every row the pending query matches, softly when the
// entity has a soft_delete column.
func (r *Repository[T]) Delete(ctx context.Context) (int64, error) {
	return terminal[int64](ctx, r, "Delete")
}

// Save updates entity by primary key, inserting it when no row exists.
func (r *Repository[T]) Save(ctx context.Context, entity *T) (*T, error) {
	return terminal[*T](ctx, r, "Save", entity)
}

func (r *Repository[T]) Trashed(ctx context.Context, entity *T) (bool, error) {
	return terminal[bool](ctx, r, "Trashed", entity)
}

func (r *Repository[T]) GetDeletedAtColumn(ctx context.Context) (string, error) {
	return terminal[string](ctx, r, "GetDeletedAtColumn")
}

func (r *Repository[T]) GetQualifiedDeletedAtColumn(ctx context.Context) (string, error) {
	return terminal[string](ctx, r, "GetQualifiedDeletedAtColumn")
}

// IsForceDeleting reports whether Delete on the pending query removes rows
// instead of soft-deleting them.
func (r *Repository[T]) IsForceDeleting(ctx context.Context) (bool, error) {
	return terminal[bool](ctx, r, "IsForceDeleting")
}

func firstOf(column []string) []any {
	if len(column) == 0 {
		return nil
	}
	return []any{column[0]}
}

func firstAttrs(values []Attributes) Attributes {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
