// Package repository provides a stateful, generic repository over bun.
//
// A Repository[T] holds one pending query Handle. Chaining calls (Where,
// OrderBy, Relation, entity scopes, ...) extend it; terminal calls (Get,
// First, Count, Update, ...) apply the pending modifiers, execute against
// the handle and replace it with a fresh one, so no filter survives from
// one terminal call to the next:
//
//	repo := repository.New[User](db, repository.WithDefaultOrder("created_at", repository.Descending))
//	users, err := repo.Where("?TableAlias.age > ?", 18).OrderBy("name", repository.Ascending).Get(ctx)
//
// Methods can also be dispatched by name through Call, which resolves them
// against a per-type registry of terminal methods, entity scopes, handle
// operations, raw bun select operations and, for relation handles,
// relation operations.
package repository
