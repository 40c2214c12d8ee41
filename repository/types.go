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
	"strings"

	"github.com/tomoncle/fluentrepo/types"
	"github.com/uptrace/bun"
)

// Direction is a sort direction. Only two values exist.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

var _ types.BaseEnum = Direction(0)

// ParseDirection maps "asc" and "ascending" (any case) to Ascending and
// every other input, including typos and the empty string, to Descending.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Ascending
	default:
		return Descending
	}
}

func (d Direction) IsValid() bool { return d == Ascending || d == Descending }

func (d Direction) Number() int {
	if !d.IsValid() {
		return types.IllegalValue
	}
	return int(d)
}

// String returns the SQL keyword for the direction.
func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ASC"
	case Descending:
		return "DESC"
	default:
		return types.IllegalName
	}
}

func (d Direction) Name() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return types.IllegalName
	}
}

func (d Direction) Desc() string {
	switch d {
	case Ascending:
		return "smallest value first"
	case Descending:
		return "largest value first"
	default:
		return types.IllegalDesc
	}
}

// OrderSpec is a (column, direction) pair. Two specs are the same order
// when both fields are equal.
type OrderSpec struct {
	Column    string
	Direction Direction
}

// Asc is shorthand for an ascending OrderSpec.
func Asc(column string) OrderSpec { return OrderSpec{Column: column, Direction: Ascending} }

// Desc is shorthand for a descending OrderSpec.
func Desc(column string) OrderSpec { return OrderSpec{Column: column, Direction: Descending} }

func (o OrderSpec) String() string { return o.Column + " " + o.Direction.String() }

func (o OrderSpec) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if o.Direction == Ascending {
		return q.OrderExpr("? ASC", bun.Ident(o.Column))
	}
	return q.OrderExpr("? DESC", bun.Ident(o.Column))
}

// Attributes maps column names to values for Create, FirstOrCreate,
// UpdateOrCreate and Update.
type Attributes map[string]any
