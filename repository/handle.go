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
	"fmt"
	"slices"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

type trashedMode int

const (
	withoutTrashed trashedMode = iota
	withTrashed
	onlyTrashed
)

type selectOp func(*bun.SelectQuery) *bun.SelectQuery

type relation struct {
	name string
	ops  []selectOp
}

type unionPart[T any] struct {
	all    bool
	handle *Handle[T]
}

// Handle is an unexecuted query over the entity type T. It records chain
// operations and is compiled into a *bun.SelectQuery only when a terminal
// operation runs. Chain methods mutate the handle and return it.
type Handle[T any] struct {
	table       *schema.Table
	ops         []selectOp
	columns     []string
	orders      []OrderSpec
	unionOrders []OrderSpec
	unions      []unionPart[T]
	limit       int
	offset      int
	trashed     trashedMode
	relations   []*relation
	current     *relation
	err         error
}

func newHandle[T any](table *schema.Table) *Handle[T] {
	return &Handle[T]{table: table}
}

// Err returns the first error recorded while chaining.
func (h *Handle[T]) Err() error { return h.err }

func (h *Handle[T]) setErr(err error) *Handle[T] {
	if h.err == nil {
		h.err = err
	}
	return h
}

// Table returns the bun table metadata the handle is bound to.
func (h *Handle[T]) Table() *schema.Table { return h.table }

// IsUnion reports whether the handle combines other queries. Orders added
// to a union handle go to the union order list.
func (h *Handle[T]) IsUnion() bool { return len(h.unions) > 0 }

// IsRelation reports whether the handle currently targets a relation.
func (h *Handle[T]) IsRelation() bool { return h.current != nil }

// Orders returns a copy of the active order list.
func (h *Handle[T]) Orders() []OrderSpec {
	if h.IsUnion() {
		return slices.Clone(h.unionOrders)
	}
	return slices.Clone(h.orders)
}

// AddOrder appends o to the active order list unless an equal OrderSpec is
// already present.
func (h *Handle[T]) AddOrder(o OrderSpec) *Handle[T] {
	if !o.Direction.IsValid() {
		return h.setErr(fmt.Errorf("%w: OrderBy: direction %d", ErrInvalidArgument, o.Direction))
	}
	list := &h.orders
	if h.IsUnion() {
		list = &h.unionOrders
	}
	if !slices.Contains(*list, o) {
		*list = append(*list, o)
	}
	return h
}

// OrderBy is AddOrder for a column and direction.
func (h *Handle[T]) OrderBy(column string, dir Direction) *Handle[T] {
	return h.AddOrder(OrderSpec{Column: column, Direction: dir})
}

// Apply records a raw operation on the underlying bun query.
func (h *Handle[T]) Apply(op func(*bun.SelectQuery) *bun.SelectQuery) *Handle[T] {
	h.ops = append(h.ops, op)
	return h
}

func (h *Handle[T]) Where(query string, args ...any) *Handle[T] {
	return h.Apply(func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where(query, args...) })
}

func (h *Handle[T]) WhereOr(query string, args ...any) *Handle[T] {
	return h.Apply(func(q *bun.SelectQuery) *bun.SelectQuery { return q.WhereOr(query, args...) })
}

func (h *Handle[T]) WhereIn(column string, values any) *Handle[T] {
	return h.Where("? IN (?)", bun.Ident(column), bun.In(values))
}

func (h *Handle[T]) WhereNotIn(column string, values any) *Handle[T] {
	return h.Where("? NOT IN (?)", bun.Ident(column), bun.In(values))
}

func (h *Handle[T]) WhereNull(column string) *Handle[T] {
	return h.Where("? IS NULL", bun.Ident(column))
}

func (h *Handle[T]) WhereNotNull(column string) *Handle[T] {
	return h.Where("? IS NOT NULL", bun.Ident(column))
}

// WhereKey filters on the primary key.
func (h *Handle[T]) WhereKey(ids ...any) *Handle[T] {
	pk, err := primaryKey(h.table)
	if err != nil {
		return h.setErr(err)
	}
	if len(ids) == 1 {
		return h.Where("?TableAlias.? = ?", bun.Ident(pk), ids[0])
	}
	return h.Where("?TableAlias.? IN (?)", bun.Ident(pk), bun.In(ids))
}

// WithTrashed includes soft-deleted rows.
func (h *Handle[T]) WithTrashed() *Handle[T] {
	if h.table.SoftDeleteField == nil {
		return h.setErr(ErrNotSoftDeletable)
	}
	h.trashed = withTrashed
	return h
}

// OnlyTrashed restricts the query to soft-deleted rows.
func (h *Handle[T]) OnlyTrashed() *Handle[T] {
	if h.table.SoftDeleteField == nil {
		return h.setErr(ErrNotSoftDeletable)
	}
	h.trashed = onlyTrashed
	return h
}

func (h *Handle[T]) Columns(columns ...string) *Handle[T] {
	h.columns = append(h.columns, columns...)
	return h
}

func (h *Handle[T]) GroupBy(columns ...string) *Handle[T] {
	return h.Apply(func(q *bun.SelectQuery) *bun.SelectQuery { return q.Group(columns...) })
}

func (h *Handle[T]) Limit(n int) *Handle[T] {
	h.limit = n
	return h
}

func (h *Handle[T]) Offset(n int) *Handle[T] {
	h.offset = n
	return h
}

// Union appends other with UNION semantics. Later orders target the
// combined result.
func (h *Handle[T]) Union(other *Handle[T]) *Handle[T] {
	return h.union(other, false)
}

// UnionAll is Union with UNION ALL.
func (h *Handle[T]) UnionAll(other *Handle[T]) *Handle[T] {
	return h.union(other, true)
}

func (h *Handle[T]) union(other *Handle[T], all bool) *Handle[T] {
	if other == nil {
		return h.setErr(fmt.Errorf("%w: Union: nil handle", ErrInvalidArgument))
	}
	if other.err != nil {
		return h.setErr(other.err)
	}
	h.unions = append(h.unions, unionPart[T]{all: all, handle: other})
	return h
}

// Relation eager-loads the named bun relation and makes it the current
// relation, turning the handle relation-typed.
func (h *Handle[T]) Relation(name string) *Handle[T] {
	for _, rel := range h.relations {
		if rel.name == name {
			h.current = rel
			return h
		}
	}
	rel := &relation{name: name}
	h.relations = append(h.relations, rel)
	h.current = rel
	return h
}

// RelatedWhere filters the current relation's base query.
func (h *Handle[T]) RelatedWhere(query string, args ...any) *Handle[T] {
	return h.related("RelatedWhere", func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where(query, args...) })
}

// RelatedOrder orders the current relation's base query.
func (h *Handle[T]) RelatedOrder(column string, dir Direction) *Handle[T] {
	return h.related("RelatedOrder", OrderSpec{Column: column, Direction: dir}.apply)
}

// RelatedColumns selects columns of the current relation's base query.
func (h *Handle[T]) RelatedColumns(columns ...string) *Handle[T] {
	return h.related("RelatedColumns", func(q *bun.SelectQuery) *bun.SelectQuery { return q.Column(columns...) })
}

func (h *Handle[T]) related(method string, op selectOp) *Handle[T] {
	if h.current == nil {
		return h.setErr(fmt.Errorf("%w: %s: handle has no current relation", ErrInvalidArgument, method))
	}
	h.current.ops = append(h.current.ops, op)
	return h
}

// ToSelect compiles the handle into a bun select over T without executing
// it.
func (h *Handle[T]) ToSelect(db bun.IDB) *bun.SelectQuery {
	return h.build(db, (*T)(nil), compileOptions{})
}

type compileOptions struct {
	columns []string
	// unordered drops orders, limit and offset.
	unordered bool
	// member compiles one select of a compound: every column, no relations.
	member bool
}

// build compiles the handle. A union handle becomes an outer select over
// the derived table "(a UNION b ...) AS alias"; union orders, limit and
// offset apply to that outer select so they target the combined result.
func (h *Handle[T]) build(db bun.IDB, model any, opts compileOptions) *bun.SelectQuery {
	if !h.IsUnion() {
		return h.compile(db, model, opts)
	}
	q := db.NewSelect().Model(model).ModelTableExpr("(?) AS ?", h.compound(db), h.table.SQLAlias)
	if h.table.SoftDeleteField != nil {
		// Members already filtered trashed rows.
		q = q.WhereAllWithDeleted()
	}
	if !opts.member {
		q = h.selectColumns(q, opts)
		q = h.applyRelations(q)
	}
	if !opts.unordered {
		for _, o := range h.unionOrders {
			q = o.apply(q)
		}
		q = h.applyLimit(q)
	}
	return q
}

func (h *Handle[T]) compile(db bun.IDB, model any, opts compileOptions) *bun.SelectQuery {
	q := db.NewSelect().Model(model)
	if !opts.member {
		q = h.selectColumns(q, opts)
	}
	if h.table.SoftDeleteField != nil {
		switch h.trashed {
		case withTrashed:
			q = q.WhereAllWithDeleted()
		case onlyTrashed:
			q = q.WhereDeleted()
		}
	}
	for _, op := range h.ops {
		q = op(q)
	}
	if !opts.member {
		q = h.applyRelations(q)
	}
	if !opts.unordered {
		for _, o := range h.orders {
			q = o.apply(q)
		}
		q = h.applyLimit(q)
	}
	return q
}

func (h *Handle[T]) selectColumns(q *bun.SelectQuery, opts compileOptions) *bun.SelectQuery {
	switch {
	case len(opts.columns) > 0:
		return q.Column(opts.columns...)
	case len(h.columns) > 0:
		return q.Column(h.columns...)
	}
	return q
}

func (h *Handle[T]) applyRelations(q *bun.SelectQuery) *bun.SelectQuery {
	for _, rel := range h.relations {
		ops := rel.ops
		q = q.Relation(rel.name, func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, op := range ops {
				sq = op(sq)
			}
			return sq
		})
	}
	return q
}

func (h *Handle[T]) applyLimit(q *bun.SelectQuery) *bun.SelectQuery {
	if h.limit > 0 {
		q = q.Limit(h.limit)
	}
	if h.offset > 0 {
		q = q.Offset(h.offset)
	}
	return q
}

// compound joins the handle's own select and its union members. The
// handle's limit and offset belong to the outer select, so only its
// pre-union orders travel with the first member.
func (h *Handle[T]) compound(db bun.IDB) compoundSelect {
	first := h.compile(db, (*T)(nil), compileOptions{unordered: true, member: true})
	if len(h.orders) > 0 {
		for _, o := range h.orders {
			first = o.apply(first)
		}
		first = h.wrapMember(db, first, 0)
	}
	c := compoundSelect{members: []compoundMember{{query: first}}}
	for i, part := range h.unions {
		op := " UNION "
		if part.all {
			op = " UNION ALL "
		}
		c.members = append(c.members, compoundMember{op: op, query: part.handle.asMember(db, i+1)})
	}
	return c
}

// asMember compiles h for use after a UNION keyword. Members carrying their
// own order, limit, offset or unions are wrapped in a derived table, since
// a compound select member cannot hold them directly.
func (h *Handle[T]) asMember(db bun.IDB, n int) schema.QueryAppender {
	if h.IsUnion() {
		return h.wrapMember(db, h.build(db, (*T)(nil), compileOptions{member: true}), n)
	}
	if len(h.orders) == 0 && h.limit == 0 && h.offset == 0 {
		return h.compile(db, (*T)(nil), compileOptions{unordered: true, member: true})
	}
	return h.wrapMember(db, h.compile(db, (*T)(nil), compileOptions{member: true}), n)
}

func (h *Handle[T]) wrapMember(db bun.IDB, q *bun.SelectQuery, n int) *bun.SelectQuery {
	alias := fmt.Sprintf("%s_%d", h.table.Alias, n)
	return db.NewSelect().ColumnExpr("*").TableExpr("(?) AS ?", q, bun.Ident(alias))
}

type compoundMember struct {
	op    string
	query schema.QueryAppender
}

// compoundSelect renders "a UNION b UNION ALL c" without the parentheses
// bun puts around each member, which SQLite rejects.
type compoundSelect struct {
	members []compoundMember
}

func (c compoundSelect) AppendQuery(fmter schema.Formatter, b []byte) (_ []byte, err error) {
	for _, m := range c.members {
		b = append(b, m.op...)
		b, err = m.query.AppendQuery(fmter, b)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func primaryKey(table *schema.Table) (string, error) {
	if len(table.PKs) != 1 {
		return "", ErrCompositeKey
	}
	return table.PKs[0].Name, nil
}
