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
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email"`
	TenantID  int64     `bun:"tenant_id"`
	Age       int       `bun:"age"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero"`

	Posts []*Post `bun:"rel:has-many,join:id=user_id"`
}

func (*User) Scopes() map[string]ScopeFunc {
	return map[string]ScopeFunc{
		"Adults": func(q *bun.SelectQuery, _ ...any) *bun.SelectQuery {
			return q.Where("?TableAlias.age >= ?", 18)
		},
		"OfTenant": func(q *bun.SelectQuery, args ...any) *bun.SelectQuery {
			return q.Where("?TableAlias.tenant_id = ?", args[0])
		},
	}
}

type Post struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID     int64  `bun:"id,pk,autoincrement"`
	UserID int64  `bun:"user_id"`
	Title  string `bun:"title"`
}

// Tag has no soft_delete column.
type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name"`
}

type queryRecorder struct {
	mu      sync.Mutex
	queries []string
}

func (r *queryRecorder) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (r *queryRecorder) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, event.Query)
}

func (r *queryRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queries) == 0 {
		return ""
	}
	return r.queries[len(r.queries)-1]
}

// newTestDB opens a private in-memory database with the fixture tables.
func newTestDB(t *testing.T) (*bun.DB, *queryRecorder) {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range []any{(*User)(nil), (*Post)(nil), (*Tag)(nil)} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
	rec := &queryRecorder{}
	db.AddQueryHook(rec)
	return db, rec
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seed inserts five users created one hour apart (ids 1 to 5), three posts
// and three tags.
//
//	id name  age tenant
//	1  carol 45  1
//	2  alice 17  1
//	3  bob   30  2
//	4  dave  22  2
//	5  erin  60  1
func seed(t *testing.T, db *bun.DB) {
	t.Helper()
	ctx := context.Background()
	users := []*User{
		{Name: "carol", Age: 45, TenantID: 1},
		{Name: "alice", Age: 17, TenantID: 1},
		{Name: "bob", Age: 30, TenantID: 2},
		{Name: "dave", Age: 22, TenantID: 2},
		{Name: "erin", Age: 60, TenantID: 1},
	}
	for i, u := range users {
		u.CreatedAt = epoch.Add(time.Duration(i) * time.Hour)
		_, err := db.NewInsert().Model(u).Exec(ctx)
		require.NoError(t, err)
	}
	posts := []*Post{
		{UserID: 2, Title: "hello"},
		{UserID: 2, Title: "world"},
		{UserID: 3, Title: "news"},
	}
	_, err := db.NewInsert().Model(&posts).Exec(ctx)
	require.NoError(t, err)
	tags := []*Tag{{Name: "go"}, {Name: "sql"}, {Name: "orm"}}
	_, err = db.NewInsert().Model(&tags).Exec(ctx)
	require.NoError(t, err)
}

func names(users []*User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Name)
	}
	return out
}

func ids(users []*User) []int64 {
	out := make([]int64, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}
