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

import "strings"

// QueryFilter describes a WHERE clause schema and its argument values.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// PageRequest describes pagination, optional filter, and ordering.
type PageRequest struct {
	page     int
	pageSize int
	filter   *QueryFilter
	orders   []string // "id ASC", "name DESC"
}

// GetPageSize returns the page size, zero when unset so the repository
// default applies.
func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 0 {
		p.pageSize = 0
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) GetFilter() *QueryFilter {
	return p.filter
}

func (p *PageRequest) GetOrders() []string {
	return p.orders
}

// OrderTerm is one parsed "column [direction]" entry of a PageRequest.
type OrderTerm struct {
	Column    string
	Direction string
}

// GetOrderTerms splits each order into its column and direction. Blank
// entries are skipped; a missing direction is empty.
func (p *PageRequest) GetOrderTerms() []OrderTerm {
	terms := make([]OrderTerm, 0, len(p.orders))
	for _, o := range p.orders {
		fields := strings.Fields(o)
		switch len(fields) {
		case 0:
			continue
		case 1:
			terms = append(terms, OrderTerm{Column: fields[0]})
		default:
			terms = append(terms, OrderTerm{Column: fields[0], Direction: fields[1]})
		}
	}
	return terms
}

func NewPageRequest(page int, pageSize int, filter *QueryFilter, orders []string) *PageRequest {
	return &PageRequest{page, pageSize, filter, orders}
}

func NewPageRequestWithFilter(page int, pageSize int, filter *QueryFilter) *PageRequest {
	return NewPageRequest(page, pageSize, filter, nil)
}

func NewPageRequestWithOrders(page int, pageSize int, orders []string) *PageRequest {
	return NewPageRequest(page, pageSize, nil, orders)
}

func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil, nil)
}

// Pagination holds one page of items along with pagination metadata.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []*T
}

func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{page, pageSize, 0, make([]*T, 0)}
}

// LastPage returns the number of the last page, at least 1.
func (p *Pagination[T]) LastPage() int {
	if p.PageSize < 1 || p.Total <= p.PageSize {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// HasMore reports whether pages follow this one.
func (p *Pagination[T]) HasMore() bool {
	return p.Page < p.LastPage()
}
