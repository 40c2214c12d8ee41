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
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/tomoncle/fluentrepo/database"
	"github.com/uptrace/bun"
)

// terminalHandlers holds every GetMethod the handle executes. Destroy,
// Restore and ForceDelete are repository-owned and dispatched before lookup.
func terminalHandlers[T any]() map[string]execFunc[T] {
	get := func(ctx context.Context, r *Repository[T], args []any) (any, error) {
		columns, err := stringArgs("Get", args)
		if err != nil {
			return nil, err
		}
		return r.fetch(ctx, columns)
	}
	aggregate := func(fn string) execFunc[T] {
		return func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			column, err := argAt[string](fn, args, 0)
			if err != nil {
				return nil, err
			}
			q := r.handle.build(r.db, (*T)(nil), compileOptions{unordered: true}).
				ColumnExpr(strings.ToUpper(fn)+"(?)", bun.Ident(column))
			return scanValue(ctx, q)
		}
	}
	return map[string]execFunc[T]{
		"Get": get,
		"All": get,
		"Pluck": func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			column, err := argAt[string]("Pluck", args, 0)
			if err != nil {
				return nil, err
			}
			return r.pluck(ctx, column)
		},
		"Value": func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			column, err := argAt[string]("Value", args, 0)
			if err != nil {
				return nil, err
			}
			values, err := r.pluck(ctx, column, 1)
			if err != nil || len(values) == 0 {
				return nil, err
			}
			return values[0], nil
		},
		"Find": func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			id, err := singleID("Find", args)
			if err != nil {
				return nil, err
			}
			return entityOrNil(r.find(ctx, id))
		},
		"FindOrNew": func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			id, err := singleID("FindOrNew", args)
			if err != nil {
				return nil, err
			}
			entity, err := r.find(ctx, id)
			if err != nil {
				return nil, err
			}
			if entity == nil {
				entity = new(T)
			}
			return entity, nil
		},
		"FindOrFail": func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			id, err := singleID("FindOrFail", args)
			if err != nil {
				return nil, err
			}
			entity, err := r.find(ctx, id)
			if err != nil {
				return nil, err
			}
			if entity == nil {
				return nil, &NotFoundError{Table: r.table.Name, ID: id}
			}
			return entity, nil
		},
		"First": func(ctx context.Context, r *Repository[T], _ []any) (any, error) {
			return entityOrNil(r.first(ctx))
		},
		"IsForceDeleting": func(_ context.Context, r *Repository[T], _ []any) (any, error) {
			return r.table.SoftDeleteField == nil, nil
		},
		"FirstOrFail": func(ctx context.Context, r *Repository[T], _ []any) (any, error) {
			entity, err := r.first(ctx)
			if err != nil {
				return nil, err
			}
			if entity == nil {
				return nil, &NotFoundError{Table: r.table.Name}
			}
			return entity, nil
		},
		"FirstOrNew": func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			attrs, values, err := attributePair("FirstOrNew", args)
			if err != nil {
				return nil, err
			}
			entity, err := r.whereAttributes(attrs).first(ctx)
			if err != nil || entity != nil {
				return entity, err
			}
			entity = new(T)
			if err := decodeAttributes(merge(attrs, values), entity); err != nil {
				return nil, err
			}
			return entity, nil
		},
		"FirstOrCreate": func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			attrs, values, err := attributePair("FirstOrCreate", args)
			if err != nil {
				return nil, err
			}
			entity, err := r.whereAttributes(attrs).first(ctx)
			if err != nil || entity != nil {
				return entity, err
			}
			return r.insert(ctx, merge(attrs, values))
		},
		"UpdateOrCreate": func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			attrs, values, err := attributePair("UpdateOrCreate", args)
			if err != nil {
				return nil, err
			}
			entity, err := r.whereAttributes(attrs).first(ctx)
			if err != nil {
				return nil, err
			}
			if entity == nil {
				return r.insert(ctx, merge(attrs, values))
			}
			if len(values) == 0 {
				return entity, nil
			}
			if err := decodeAttributes(values, entity); err != nil {
				return nil, err
			}
			q := r.db.NewUpdate().Model(entity).Column(sortedKeys(values)...).WherePK()
			if r.table.SoftDeleteField != nil {
				q = q.WhereAllWithDeleted()
			}
			if _, err := q.Exec(ctx); err != nil {
				return nil, err
			}
			return entity, nil
		},
		"Update": func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			values, err := attributesArg("Update", args, 0)
			if err != nil {
				return nil, err
			}
			if len(values) == 0 {
				return nil, invalidArgument("Update", "no values")
			}
			return r.updateMatching(ctx, values)
		},
		"Save": func(ctx context.Context, r *Repository[T], args []any) (any, error) {
			entity, err := argAt[*T]("Save", args, 0)
			if err != nil {
				return nil, err
			}
			if entity == nil {
				return nil, invalidArgument("Save", "nil entity")
			}
			return r.save(ctx, entity)
		},
		"Delete": func(ctx context.Context, r *Repository[T], _ []any) (any, error) {
			return r.deleteMatching(ctx, false)
		},
		"Count": func(ctx context.Context, r *Repository[T], _ []any) (any, error) {
			return r.handle.build(r.db, (*T)(nil), compileOptions{unordered: true}).Count(ctx)
		},
		"Exists": func(ctx context.Context, r *Repository[T], _ []any) (any, error) {
			return r.handle.build(r.db, (*T)(nil), compileOptions{unordered: true}).Exists(ctx)
		},
		"Sum": aggregate("Sum"),
		"Max": aggregate("Max"),
		"Min": aggregate("Min"),
		"Avg": aggregate("Avg"),
		"Trashed": func(_ context.Context, r *Repository[T], args []any) (any, error) {
			entity, err := argAt[*T]("Trashed", args, 0)
			if err != nil {
				return nil, err
			}
			return r.trashed(entity)
		},
		"GetDeletedAtColumn": func(_ context.Context, r *Repository[T], _ []any) (any, error) {
			if r.table.SoftDeleteField == nil {
				return nil, ErrNotSoftDeletable
			}
			return r.table.SoftDeleteField.Name, nil
		},
		"GetQualifiedDeletedAtColumn": func(_ context.Context, r *Repository[T], _ []any) (any, error) {
			if r.table.SoftDeleteField == nil {
				return nil, ErrNotSoftDeletable
			}
			return r.table.Name + "." + r.table.SoftDeleteField.Name, nil
		},
	}
}

func (r *Repository[T]) fetch(ctx context.Context, columns []string) ([]*T, error) {
	if len(columns) > 0 {
		r.handle = r.handle.Columns(columns...)
	}
	items := make([]*T, 0)
	if err := r.handle.build(r.db, &items, compileOptions{}).Scan(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

// entityOrNil keeps a missing entity an untyped nil inside any.
func entityOrNil[T any](entity *T, err error) (any, error) {
	if err != nil || entity == nil {
		return nil, err
	}
	return entity, nil
}

// first returns nil without error when nothing matches.
func (r *Repository[T]) first(ctx context.Context) (*T, error) {
	entity := new(T)
	err := r.handle.Limit(1).build(r.db, entity, compileOptions{}).Scan(ctx)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *Repository[T]) find(ctx context.Context, id any) (*T, error) {
	r.handle = r.handle.WhereKey(id)
	if err := r.handle.Err(); err != nil {
		return nil, err
	}
	return r.first(ctx)
}

func (r *Repository[T]) pluck(ctx context.Context, column string, limit ...int) ([]any, error) {
	if len(limit) > 0 {
		r.handle = r.handle.Limit(limit[0])
	}
	rows, err := r.handle.build(r.db, (*T)(nil), compileOptions{columns: []string{column}}).Rows(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]any, 0)
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, normalizeValue(v))
	}
	return values, rows.Err()
}

func scanValue(ctx context.Context, q *bun.SelectQuery) (any, error) {
	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var v any
	if rows.Next() {
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
	}
	return normalizeValue(v), rows.Err()
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// whereAttributes adds an equality filter per attribute, in key order.
func (r *Repository[T]) whereAttributes(attrs Attributes) *Repository[T] {
	for _, k := range sortedKeys(attrs) {
		if attrs[k] == nil {
			r.handle = r.handle.WhereNull(k)
			continue
		}
		r.handle = r.handle.Where("? = ?", bun.Ident(k), attrs[k])
	}
	return r
}

func (r *Repository[T]) insert(ctx context.Context, attrs Attributes) (*T, error) {
	entity := new(T)
	if err := decodeAttributes(attrs, entity); err != nil {
		return nil, err
	}
	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

// save updates entity by primary key and inserts it when no row matched.
func (r *Repository[T]) save(ctx context.Context, entity *T) (*T, error) {
	if len(r.table.PKs) != 1 {
		return nil, ErrCompositeKey
	}
	pk := reflect.ValueOf(entity).Elem().FieldByIndex(r.table.PKs[0].Index)
	if !pk.IsZero() {
		res, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
		if err != nil {
			return nil, err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return entity, nil
		}
	}
	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

// keys selects the primary keys of every row the handle matches.
func (r *Repository[T]) keys() (string, *bun.SelectQuery, error) {
	pk, err := primaryKey(r.table)
	if err != nil {
		return "", nil, err
	}
	return pk, r.handle.build(r.db, (*T)(nil), compileOptions{columns: []string{pk}}), nil
}

func (r *Repository[T]) updateMatching(ctx context.Context, values Attributes) (int64, error) {
	pk, sub, err := r.keys()
	if err != nil {
		return 0, err
	}
	q := r.db.NewUpdate().Model(new(T)).Where("? IN (?)", bun.Ident(pk), sub)
	for _, k := range sortedKeys(values) {
		q = q.Set("? = ?", bun.Ident(k), values[k])
	}
	if r.table.SoftDeleteField != nil {
		q = q.WhereAllWithDeleted()
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// deleteMatching soft-deletes matched rows when the entity supports it,
// unless force is set.
func (r *Repository[T]) deleteMatching(ctx context.Context, force bool) (int64, error) {
	pk, sub, err := r.keys()
	if err != nil {
		return 0, err
	}
	q := r.db.NewDelete().Model(new(T)).Where("? IN (?)", bun.Ident(pk), sub)
	if r.table.SoftDeleteField != nil {
		q = q.WhereAllWithDeleted()
		if force {
			q = q.ForceDelete()
		}
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository[T]) trashed(entity *T) (bool, error) {
	if r.table.SoftDeleteField == nil {
		return false, ErrNotSoftDeletable
	}
	if entity == nil {
		return false, invalidArgument("Trashed", "nil entity")
	}
	return !reflect.ValueOf(entity).Elem().FieldByIndex(r.table.SoftDeleteField.Index).IsZero(), nil
}

func singleID(method string, args []any) (any, error) {
	ids := normalizeIDs(args...)
	if len(ids) != 1 {
		return nil, invalidArgument(method, "want exactly one id, got %d", len(ids))
	}
	return ids[0], nil
}

func attributePair(method string, args []any) (Attributes, Attributes, error) {
	attrs, err := attributesArg(method, args, 0)
	if err != nil {
		return nil, nil, err
	}
	values, err := attributesArg(method, args, 1)
	if err != nil {
		return nil, nil, err
	}
	return attrs, values, nil
}

func merge(attrs, values Attributes) Attributes {
	out := make(Attributes, len(attrs)+len(values))
	for k, v := range attrs {
		out[k] = v
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}

func sortedKeys(attrs Attributes) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decodeAttributes sets the fields of dst whose bun column name matches an
// attribute key. Unknown keys are rejected.
func decodeAttributes[T any](attrs Attributes, dst *T) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "bun",
		Result:           dst,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(attrs)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}
