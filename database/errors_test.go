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

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestClassifySQLError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		ok   bool
		kind SQLError
	}{
		{"nil", nil, false, UnknownErr},
		{"no rows", sql.ErrNoRows, true, NoRowsErr},
		{"wrapped no rows", fmt.Errorf("find: %w", sql.ErrNoRows), true, NoRowsErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true, DuplicateKeyErr},
		{"mysql no table", &mysql.MySQLError{Number: 1146}, true, NoTableErr},
		{"mysql foreign key", &mysql.MySQLError{Number: 1452}, true, ForeignKeyViolationErr},
		{"mysql other", &mysql.MySQLError{Number: 1205}, true, UnknownErr},
		{"sqlite no column", errors.New("SQL logic error: no such column: nickname (1)"), true, NoColumnErr},
		{"sqlite no table", errors.New("no such table: users"), true, NoTableErr},
		{"sqlite unique", errors.New("UNIQUE constraint failed: users.email"), true, DuplicateKeyErr},
		{"sqlite not null", errors.New("NOT NULL constraint failed: users.name"), true, NotNullViolationErr},
		{"pg duplicate", errors.New(`pq: duplicate key value violates unique constraint "users_pkey"`), true, DuplicateKeyErr},
		{"pg index exists", errors.New(`pq: relation index "idx_name" already exists`), true, ExistIndexErr},
		{"pg table exists", errors.New(`pq: relation "users" already exists`), true, ExistTableErr},
		{"pg check", errors.New(`new row violates check constraint "age_positive"`), true, CheckConstraintViolationErr},
		{"unrecognised", errors.New("connection refused"), false, UnknownErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, kind := ClassifySQLError(tc.err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestSQLErrorString(t *testing.T) {
	assert.Equal(t, "duplicate key", DuplicateKeyErr.String())
	assert.Equal(t, "unknown", SQLError(99).String())
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("scan: %w", sql.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("no rows")))
	assert.False(t, IsNoRows(nil))
}
