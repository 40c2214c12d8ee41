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

	"github.com/tomoncle/fluentrepo/database"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// Create inserts a new entity built from attrs. Pending query state is
// discarded before and after the insert.
func (r *Repository[T]) Create(ctx context.Context, attrs Attributes) (*T, error) {
	r.reset()
	defer r.reset()
	entity, err := r.insert(ctx, attrs)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Created entity", "repository", r.name, "table", r.table.Name)
	return entity, nil
}

// Destroy deletes the rows whose primary key is among ids in one statement.
// Ids may be given as values or slices. The pending query narrows the
// deletion but default order and global scope are not applied.
func (r *Repository[T]) Destroy(ctx context.Context, ids ...any) (int64, error) {
	defer r.reset()
	keys := normalizeIDs(ids...)
	if len(keys) == 0 {
		return 0, nil
	}
	r.handle = r.handle.WhereKey(keys...)
	if err := r.handle.Err(); err != nil {
		return 0, err
	}
	n, err := r.deleteMatching(ctx, false)
	if err != nil {
		return 0, err
	}
	r.logger.Info("Destroyed entities", "repository", r.name, "ids", len(keys), "rows", n)
	return n, nil
}

// Restore clears the soft-delete column of the entity with the primary key
// id. The lookup ignores pending query state and global scope.
func (r *Repository[T]) Restore(ctx context.Context, id any) error {
	field := r.table.SoftDeleteField
	if field == nil {
		return ErrNotSoftDeletable
	}
	h := newHandle[T](r.table).WithTrashed().WhereKey(id)
	if err := h.Err(); err != nil {
		return err
	}
	entity := new(T)
	err := h.Limit(1).build(r.db, entity, compileOptions{}).Scan(ctx)
	if database.IsNoRows(err) {
		return &NotFoundError{Table: r.table.Name, ID: id}
	}
	if err != nil {
		return err
	}
	_, err = r.db.NewUpdate().
		Model(entity).
		Set("? = NULL", bun.Ident(field.Name)).
		WherePK().
		WhereAllWithDeleted().
		Exec(ctx)
	if err != nil {
		return err
	}
	r.logger.Debug("Restored entity", "repository", r.name, "id", id)
	return nil
}

// ForceDelete permanently deletes the entity with the primary key id,
// including soft-deleted rows. The lookup goes through the pending query
// like any terminal call. A missing id is not an error.
func (r *Repository[T]) ForceDelete(ctx context.Context, id any) error {
	if r.table.SoftDeleteField != nil {
		r.chain("WithTrashed")
	}
	entity, err := r.Find(ctx, id)
	if err != nil || entity == nil {
		return err
	}
	q := r.db.NewDelete().Model(entity).WherePK()
	if r.table.SoftDeleteField != nil {
		q = q.WhereAllWithDeleted().ForceDelete()
	}
	if _, err := q.Exec(ctx); err != nil {
		return err
	}
	r.logger.Debug("Force deleted entity", "repository", r.name, "id", id)
	return nil
}

// Upsert inserts entities, updating fields on rows that collide on
// conflictKeys (the primary key when empty). The statement depends on the
// dialect: ON CONFLICT for PostgreSQL and SQLite, ON DUPLICATE KEY for
// MySQL, and insert-then-update otherwise.
func (r *Repository[T]) Upsert(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: Upsert: fields cannot be empty", ErrInvalidArgument)
	}
	if len(entities) == 0 {
		return nil
	}

	features := r.db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		return r.upsertOnConflict(ctx, fields, conflictKeys, entities)
	case features.Has(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, fields, entities)
	default:
		return r.upsertFallback(ctx, entities)
	}
}

func (r *Repository[T]) upsertOnDuplicateKey(ctx context.Context, fields []string, entities []*T) error {
	q := r.db.NewInsert().Model(&entities).On("DUPLICATE KEY UPDATE")
	for _, field := range fields {
		q = q.Set("? = VALUES(?)", bun.Ident(field), bun.Ident(field))
	}
	_, err := q.Exec(ctx)
	return err
}

func (r *Repository[T]) upsertOnConflict(ctx context.Context, fields []string, conflictKeys []string, entities []*T) error {
	if len(conflictKeys) == 0 {
		pk, err := primaryKey(r.table)
		if err != nil {
			return err
		}
		conflictKeys = []string{pk}
	}
	idents := make([]bun.Ident, 0, len(conflictKeys))
	for _, key := range conflictKeys {
		idents = append(idents, bun.Ident(key))
	}
	q := r.db.NewInsert().Model(&entities).On("CONFLICT (?) DO UPDATE", bun.In(idents))
	for _, field := range fields {
		q = q.Set("? = EXCLUDED.?", bun.Ident(field), bun.Ident(field))
	}
	_, err := q.Exec(ctx)
	return err
}

func (r *Repository[T]) upsertFallback(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
			if _, updateErr := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx); updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %v", err, updateErr)
			}
		}
	}
	return nil
}
