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
	"strings"

	"github.com/go-sql-driver/mysql"
)

// SQLError is a driver-independent class of database error.
type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

var sqlErrorNames = map[SQLError]string{
	UnknownErr:                  "unknown",
	NoRowsErr:                   "no rows",
	NoIndexErr:                  "no index",
	NoColumnErr:                 "no column",
	ExistIndexErr:               "index exists",
	ExistColumnErr:              "column exists",
	NoTableErr:                  "no table",
	ExistTableErr:               "table exists",
	DuplicateKeyErr:             "duplicate key",
	NotNullViolationErr:         "not null violation",
	ForeignKeyViolationErr:      "foreign key violation",
	CheckConstraintViolationErr: "check constraint violation",
	DataTruncatedErr:            "data truncated",
	InvalidTypeCastErr:          "invalid type cast",
}

func (e SQLError) String() string {
	if name, ok := sqlErrorNames[e]; ok {
		return name
	}
	return sqlErrorNames[UnknownErr]
}

var mysqlErrors = map[uint16]SQLError{
	1091: NoIndexErr,
	1054: NoColumnErr,
	1061: ExistIndexErr,
	1060: ExistColumnErr,
	1146: NoTableErr,
	1050: ExistTableErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1451: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
}

// IsNoRows reports whether err is, or wraps, sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ClassifySQLError maps err to a SQLError. MySQL errors are matched by
// number, PostgreSQL and SQLite errors by SQLSTATE or message fragment.
// The boolean is false when err is nil or unrecognised.
func ClassifySQLError(err error) (bool, SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if IsNoRows(err) {
		return true, NoRowsErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if kind, ok := mysqlErrors[mysqlErr.Number]; ok {
			return true, kind
		}
		return true, UnknownErr
	}
	s := strings.ToLower(err.Error())
	has := func(parts ...string) bool {
		for _, p := range parts {
			if strings.Contains(s, p) {
				return true
			}
		}
		return false
	}
	switch {
	case has("sqlstate 42703", "undefined column", "no such column"):
		return true, NoColumnErr
	case has("sqlstate 42704", "no such index"),
		has("does not exist") && has("index"):
		return true, NoIndexErr
	case has("sqlstate 42p01", "undefined table", "no such table"):
		return true, NoTableErr
	case has("already exists") && has("index"):
		return true, ExistIndexErr
	case has("already exists") && has("table", "relation"):
		return true, ExistTableErr
	case has("duplicate key value", "unique constraint failed", "sqlstate 23505"):
		return true, DuplicateKeyErr
	case has("not-null constraint", "sqlstate 23502", "not null constraint failed"):
		return true, NotNullViolationErr
	case has("foreign key violation", "foreign key constraint failed", "sqlstate 23503"):
		return true, ForeignKeyViolationErr
	case has("check constraint", "sqlstate 23514"):
		return true, CheckConstraintViolationErr
	case has("string data right truncation", "sqlstate 22001", "data truncated"):
		return true, DataTruncatedErr
	case has("datatype mismatch", "sqlstate 42804"):
		return true, InvalidTypeCastErr
	}
	return false, UnknownErr
}
