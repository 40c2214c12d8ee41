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
)

// Call dispatches name with args. Terminal methods return their result and
// reset the repository; chaining methods replace the handle and return the
// repository itself. Names no capability source accepts fail with
// *MethodNotFoundError.
func (r *Repository[T]) Call(ctx context.Context, name string, args ...any) (any, error) {
	if own, ok := r.owned(name); ok {
		return own(ctx, args)
	}
	c, ok := r.registry.lookup(name, r.handle)
	if !ok {
		return nil, &MethodNotFoundError{Repository: r.name, Method: name}
	}
	if c.terminal() {
		return r.execute(ctx, c, args)
	}
	if err := r.chainWith(c, args); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository[T]) execute(ctx context.Context, c capability[T], args []any) (any, error) {
	r.applyPendingState()
	defer r.reset()
	if err := r.handle.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("Repository terminal call", "repository", r.name, "method", c.name)
	return c.exec(ctx, r, args)
}

func (r *Repository[T]) chainWith(c capability[T], args []any) error {
	next, err := c.chain(r.handle, args)
	if err != nil {
		return err
	}
	if next == nil {
		return fmt.Errorf("repository: %s returned no handle", c.name)
	}
	r.handle = next
	return next.Err()
}

// chain is the fluent form of Call for chaining methods. Errors are kept on
// the handle and reported by the next terminal call.
func (r *Repository[T]) chain(name string, args ...any) *Repository[T] {
	c, ok := r.registry.lookup(name, r.handle)
	switch {
	case !ok:
		r.handle.setErr(&MethodNotFoundError{Repository: r.name, Method: name})
	case c.terminal():
		r.handle.setErr(fmt.Errorf("%w: %s is a terminal method", ErrInvalidArgument, name))
	default:
		if err := r.chainWith(c, args); err != nil {
			r.handle.setErr(err)
		}
	}
	return r
}

// terminal is the typed form of Call for terminal methods.
func terminal[V any, T any](ctx context.Context, r *Repository[T], name string, args ...any) (V, error) {
	var zero V
	out, err := r.Call(ctx, name, args...)
	if err != nil || out == nil {
		return zero, err
	}
	v, ok := out.(V)
	if !ok {
		return zero, fmt.Errorf("repository: %s returned %T, want %T", name, out, zero)
	}
	return v, nil
}

type ownFunc func(ctx context.Context, args []any) (any, error)

// owned returns the repository-level operation for name. These shadow
// forwarding to the handle.
func (r *Repository[T]) owned(name string) (ownFunc, bool) {
	switch name {
	case "OrderBy":
		return func(_ context.Context, args []any) (any, error) {
			column, err := argAt[string](name, args, 0)
			if err != nil {
				return nil, err
			}
			dir, err := directionArg(name, args, 1)
			if err != nil {
				return nil, err
			}
			return r.OrderBy(column, dir), nil
		}, true
	case "SkipGlobalScope":
		return func(context.Context, []any) (any, error) { return r.SkipGlobalScope(), nil }, true
	case "SkipOrderBy":
		return func(context.Context, []any) (any, error) { return r.SkipOrderBy(), nil }, true
	case "NewQuery":
		return func(context.Context, []any) (any, error) { return r.NewQuery(), nil }, true
	case "Paginate":
		return func(ctx context.Context, args []any) (any, error) {
			page, err := optionalArg(name, args, 0, 1)
			if err != nil {
				return nil, err
			}
			perPage, err := optionalArg(name, args, 1, 0)
			if err != nil {
				return nil, err
			}
			columns, err := stringArgs(name, tail(args, 2))
			if err != nil {
				return nil, err
			}
			return r.Paginate(ctx, page, perPage, columns...)
		}, true
	case "Create":
		return func(ctx context.Context, args []any) (any, error) {
			attrs, err := attributesArg(name, args, 0)
			if err != nil {
				return nil, err
			}
			return r.Create(ctx, attrs)
		}, true
	case "Destroy":
		return func(ctx context.Context, args []any) (any, error) { return r.Destroy(ctx, args...) }, true
	case "Restore":
		return func(ctx context.Context, args []any) (any, error) {
			if len(args) != 1 {
				return nil, invalidArgument(name, "want exactly one id")
			}
			return nil, r.Restore(ctx, args[0])
		}, true
	case "ForceDelete":
		return func(ctx context.Context, args []any) (any, error) {
			if len(args) != 1 {
				return nil, invalidArgument(name, "want exactly one id")
			}
			return nil, r.ForceDelete(ctx, args[0])
		}, true
	}
	return nil, false
}

func tail(args []any, from int) []any {
	if from >= len(args) {
		return nil
	}
	return args[from:]
}
