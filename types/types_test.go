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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color int

const (
	red color = iota
	green
)

func (c color) IsValid() bool { return c == red || c == green }
func (c color) Number() int   { return int(c) }
func (c color) Desc() string  { return c.Name() }
func (c color) String() string {
	if c == red {
		return "R"
	}
	return "G"
}
func (c color) Name() string {
	if c == red {
		return "red"
	}
	return "green"
}

func TestLookupEnum(t *testing.T) {
	c, ok := LookupEnum("GREEN", red, green)
	require.True(t, ok)
	assert.Equal(t, green, c)

	c, ok = LookupEnum(" r ", red, green)
	require.True(t, ok)
	assert.Equal(t, red, c)

	_, ok = LookupEnum("blue", red, green)
	assert.False(t, ok)
	_, ok = LookupEnum("green", red, color(5))
	assert.False(t, ok)
}

func TestPagination(t *testing.T) {
	p := NewDefaultPagination[int](1, 10)
	assert.Equal(t, 1, p.LastPage())
	assert.False(t, p.HasMore())
	assert.NotNil(t, p.Items)

	p.Total = 21
	assert.Equal(t, 3, p.LastPage())
	assert.True(t, p.HasMore())

	p.Page = 3
	assert.False(t, p.HasMore())

	p.PageSize = 0
	assert.Equal(t, 1, p.LastPage())
}

func TestPageRequest(t *testing.T) {
	req := NewPageRequest(0, -5, NewQueryFilter("age > ?", 18), []string{"name", " age  desc ", "", "id ASC extra"})
	assert.Equal(t, 1, req.GetPage())
	assert.Equal(t, 0, req.GetPageSize())
	assert.Equal(t, "age > ?", req.GetFilter().Schema)
	assert.Equal(t, []interface{}{18}, req.GetFilter().Args)
	assert.Equal(t, []OrderTerm{
		{Column: "name"},
		{Column: "age", Direction: "desc"},
		{Column: "id", Direction: "ASC"},
	}, req.GetOrderTerms())

	assert.Nil(t, NewDefaultPageRequest(2, 20).GetFilter())
	assert.Empty(t, NewPageRequestWithFilter(1, 1, nil).GetOrderTerms())
	assert.Len(t, NewPageRequestWithOrders(1, 1, []string{"id"}).GetOrders(), 1)
}

func TestJsonObject(t *testing.T) {
	var obj JsonObject
	require.NoError(t, obj.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, JsonObject{"a": float64(1)}, obj)

	require.NoError(t, obj.Scan(`{"b":"x"}`))
	assert.Equal(t, "x", obj["b"])

	require.NoError(t, obj.Scan(nil))
	assert.Empty(t, obj)
	assert.Error(t, obj.Scan(42))

	v, err := JsonObject{"k": "v"}.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"k":"v"}`), v)

	v, err = JsonObject(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestJsonArray(t *testing.T) {
	var arr JsonArray
	require.NoError(t, arr.Scan(`[{"a":1},{"b":2}]`))
	assert.Len(t, arr, 2)

	require.NoError(t, arr.Scan(nil))
	assert.NotNil(t, arr)
	assert.Empty(t, arr)
}
