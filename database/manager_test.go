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
	"context"
	"io"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type account struct {
	bun.BaseModel `bun:"table:accounts"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name"`
}

func memoryConfig() *ConnectionConfig {
	cfg := DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = MemoryDBName
	cfg.HealthCheckInterval = 0
	return cfg
}

func TestMySQLDSN(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.Host, cfg.Port = "db.local", 3306
	cfg.Username, cfg.Password = "root", "s3cret"
	cfg.DBName = "shop"

	dsn := MySQLDSN(cfg)
	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "root", parsed.User)
	assert.Equal(t, "s3cret", parsed.Passwd)
	assert.Equal(t, "db.local:3306", parsed.Addr)
	assert.Equal(t, "shop", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 10*time.Second, parsed.Timeout)
	assert.Contains(t, dsn, "charset=utf8mb4")

	cfg.Charset = "latin1"
	assert.Contains(t, MySQLDSN(cfg), "charset=latin1")
}

func TestPostgresDSN(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.Host, cfg.Port = "pg.local", 5432
	cfg.Username, cfg.Password = "app", "p@ss word"
	cfg.DBName = "shop"

	u, err := url.Parse(PostgresDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "pg.local:5432", u.Host)
	assert.Equal(t, "/shop", u.Path)
	assert.Equal(t, "app", u.User.Username())
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "10", u.Query().Get("connect_timeout"))

	cfg.SSLMode = "require"
	u, err = url.Parse(PostgresDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?cache=shared", SQLiteDSN(&ConnectionConfig{DBName: MemoryDBName}))
	assert.Equal(t, "file::memory:?cache=shared", SQLiteDSN(&ConnectionConfig{}))
	assert.Equal(t, "data.db", SQLiteDSN(&ConnectionConfig{DBName: "data"}))
	assert.Equal(t, "data.db", SQLiteDSN(&ConnectionConfig{DBName: "data.db"}))
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memoryConfig())
	require.NoError(t, m.Connect(ctx))
	t.Cleanup(func() { _ = m.Disconnect() })

	// Connecting twice is a no-op.
	db := m.GetDB()
	require.NoError(t, m.Connect(ctx))
	assert.Same(t, db, m.GetDB())

	require.NoError(t, m.Ping(ctx))
	status := m.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.MaxOpenConns)
	assert.Equal(t, 1, m.GetStats().MaxOpenConns)

	require.NoError(t, m.Disconnect())
	assert.Nil(t, m.GetDB())
	assert.Error(t, m.Ping(ctx))
	assert.False(t, m.HealthCheck(ctx).Healthy)
	assert.Equal(t, &DBStats{}, m.GetStats())
	assert.Error(t, m.RunMigrations(ctx))

	require.NoError(t, m.Reconnect(ctx))
	assert.NotNil(t, m.GetDB())
}

// healthTickLogger counts health loop ticks.
type healthTickLogger struct {
	*DefaultLogger
	ticks atomic.Int32
}

func (l *healthTickLogger) Debug(msg string, _ ...interface{}) {
	if msg == "Database health check" {
		l.ticks.Add(1)
	}
}

func TestHealthCheckSurvivesReconnect(t *testing.T) {
	ctx := context.Background()
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	logger := &healthTickLogger{DefaultLogger: NewDefaultLogger(quiet)}

	cfg := memoryConfig()
	cfg.HealthCheckInterval = 10 * time.Millisecond
	m := NewManager(cfg)
	m.SetLogger(logger)
	require.NoError(t, m.Connect(ctx))
	t.Cleanup(func() { _ = m.Disconnect() })

	ticked := func() bool {
		seen := logger.ticks.Load()
		return assert.Eventually(t, func() bool { return logger.ticks.Load() > seen }, 2*time.Second, 5*time.Millisecond)
	}
	require.True(t, ticked())

	require.NoError(t, m.Reconnect(ctx))
	assert.True(t, ticked())
	require.NoError(t, m.Reconnect(ctx))
	assert.True(t, ticked())

	require.NoError(t, m.Disconnect())
	require.NoError(t, m.Connect(ctx))
	assert.True(t, ticked())
}

func TestManagerUnsupportedType(t *testing.T) {
	cfg := memoryConfig()
	cfg.Type = "oracle"
	err := NewManager(cfg).Connect(context.Background())
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestRunMigrations(t *testing.T) {
	ctx := context.Background()
	RegisterModel(NewModelAdapter((*account)(nil), 10))

	m := NewManager(memoryConfig())
	require.NoError(t, m.Connect(ctx))
	t.Cleanup(func() { _ = m.Disconnect() })
	db := m.GetDB()

	seeded := 0
	mm := NewMigrationManager(db, nil).Add(MigrationItem{
		Version: "002",
		Name:    "seed_accounts",
		Up: func(ctx context.Context, db bun.IDB) error {
			seeded++
			_, err := db.NewInsert().Model(&account{Name: "root"}).Exec(ctx)
			return err
		},
	})
	require.NoError(t, mm.RunMigrations(ctx))
	// Applied versions are skipped on the next run.
	require.NoError(t, mm.RunMigrations(ctx))
	assert.Equal(t, 1, seeded)

	applied, err := mm.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "001", applied[0].Version)
	assert.Equal(t, "seed_accounts", applied[1].Name)

	n, err := db.NewSelect().Model((*account)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memoryConfig())
	require.NoError(t, m.Connect(ctx))
	t.Cleanup(func() { _ = m.Disconnect() })

	mm := NewMigrationManager(m.GetDB(), nil).Add(MigrationItem{
		Version: "003",
		Name:    "broken",
		Up: func(ctx context.Context, db bun.IDB) error {
			_, err := db.ExecContext(ctx, "ALTER TABLE missing ADD COLUMN x INTEGER")
			return err
		},
	})
	err := mm.RunMigrations(ctx)
	require.ErrorContains(t, err, "migration 003")

	applied, err := mm.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	for _, migration := range applied {
		assert.NotEqual(t, "003", migration.Version)
	}
}

func TestModelRegistryOrder(t *testing.T) {
	r := &modelRegistry{}
	r.register(NewModelAdapter("c", 3), NewModelAdapter("a", 1))
	r.register(NewModelAdapter("b", 1))

	var got []interface{}
	for _, m := range r.sorted() {
		got = append(got, m.Instance())
	}
	assert.Equal(t, []interface{}{"a", "b", "c"}, got)
}
