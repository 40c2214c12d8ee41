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
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is wrapped by errors caused by a Call whose
	// arguments do not match the capability's signature.
	ErrInvalidArgument = errors.New("repository: invalid argument")

	// ErrNotSoftDeletable is returned by trashed-aware operations on an
	// entity without a soft_delete column.
	ErrNotSoftDeletable = errors.New("repository: entity has no soft_delete column")

	// ErrCompositeKey is returned by key-based operations on an entity that
	// does not declare exactly one primary key.
	ErrCompositeKey = errors.New("repository: entity must have exactly one primary key")
)

// MethodNotFoundError reports a call that no capability source accepts.
type MethodNotFoundError struct {
	Repository string
	Method     string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("call to undefined method %s::%s()", e.Repository, e.Method)
}

// NotFoundError reports a lookup by primary key that matched no row.
type NotFoundError struct {
	Table string
	ID    any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("no query results for table %s", e.Table)
	}
	return fmt.Sprintf("no query results for table %s with id %v", e.Table, e.ID)
}

// IsNotFound reports whether err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func invalidArgument(method string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidArgument, method, fmt.Sprintf(format, args...))
}
