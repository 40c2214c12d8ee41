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

// Package fluentrepo wires repositories to a database for application
// services.
package fluentrepo

import (
	"context"

	"github.com/tomoncle/fluentrepo/database"
	"github.com/tomoncle/fluentrepo/repository"
	"github.com/tomoncle/fluentrepo/types"
	"github.com/uptrace/bun"
)

// Service runs common operations on T, opening a fresh repository per
// call. It is safe for concurrent use as long as db is.
type Service[T any] struct {
	db   bun.IDB
	opts []repository.Option
}

// NewService returns a service over db. opts apply to every repository the
// service opens.
func NewService[T any](db bun.IDB, opts ...repository.Option) *Service[T] {
	return &Service[T]{db: db, opts: opts}
}

// NewDefaultService returns a service over the global database.
func NewDefaultService[T any](opts ...repository.Option) *Service[T] {
	return NewService[T](database.GetDB(), opts...)
}

// Repo returns a new repository for one unit of work.
func (s *Service[T]) Repo() *repository.Repository[T] {
	return repository.New[T](s.db, s.opts...)
}

// InTx runs fn with a repository bound to a transaction, committing when
// fn returns nil.
func (s *Service[T]) InTx(ctx context.Context, fn func(ctx context.Context, repo *repository.Repository[T]) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, repository.New[T](tx, s.opts...))
	})
}

// Get returns the entity with the primary key id, or nil.
func (s *Service[T]) Get(ctx context.Context, id any) (*T, error) {
	return s.Repo().Find(ctx, id)
}

func (s *Service[T]) All(ctx context.Context) ([]*T, error) {
	return s.Repo().All(ctx)
}

// List returns the entities matching filter; a nil filter matches all.
func (s *Service[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	repo := s.Repo()
	if filter != nil && filter.Schema != "" {
		repo.Where(filter.Schema, filter.Args...)
	}
	return repo.Get(ctx)
}

// Page returns one page described by page. Orders without a direction are
// ascending.
func (s *Service[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	repo := s.Repo()
	if f := page.GetFilter(); f != nil && f.Schema != "" {
		repo.Where(f.Schema, f.Args...)
	}
	for _, term := range page.GetOrderTerms() {
		dir := repository.Ascending
		if term.Direction != "" {
			dir = repository.ParseDirection(term.Direction)
		}
		repo.OrderBy(term.Column, dir)
	}
	return repo.Paginate(ctx, page.GetPage(), page.GetPageSize())
}

// Create inserts an entity built from attrs.
func (s *Service[T]) Create(ctx context.Context, attrs repository.Attributes) (*T, error) {
	return s.Repo().Create(ctx, attrs)
}

// Save updates entity by primary key or inserts it.
func (s *Service[T]) Save(ctx context.Context, entity *T) (*T, error) {
	return s.Repo().Save(ctx, entity)
}

// SaveOrUpdate upserts entities, updating fields on conflict.
func (s *Service[T]) SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error {
	return s.Repo().Upsert(ctx, fields, conflictKeys, entities...)
}

// Delete destroys the entities with the given primary keys.
func (s *Service[T]) Delete(ctx context.Context, ids ...any) (int64, error) {
	return s.Repo().Destroy(ctx, ids...)
}

func (s *Service[T]) Restore(ctx context.Context, id any) error {
	return s.Repo().Restore(ctx, id)
}

func (s *Service[T]) ForceDelete(ctx context.Context, id any) error {
	return s.Repo().ForceDelete(ctx, id)
}

// SelectBuilder returns a raw bun select over T.
func (s *Service[T]) SelectBuilder() *bun.SelectQuery {
	return s.db.NewSelect().Model((*T)(nil))
}
