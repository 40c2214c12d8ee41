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
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestCreateFromConfig(t *testing.T) {
	f := NewFactory()

	_, err := f.CreateFromConfig(nil)
	assert.Error(t, err)

	cfg := memoryConfig()
	cfg.Type = "oracle"
	_, err = f.CreateFromConfig(cfg)
	assert.ErrorContains(t, err, "unsupported database type: oracle")
	assert.Nil(t, f.GetManager())
	assert.Error(t, f.InitializeDatabase(context.Background(), false))
}

func TestCreateFromConfigAppliesEnvironment(t *testing.T) {
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_SLOW_QUERY_TIME", "250ms")

	cfg := memoryConfig()
	cfg.Type = "oracle"
	f := NewFactory()
	m, err := f.CreateFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowQueryTime)

	ctx := context.Background()
	require.NoError(t, f.InitializeDatabase(ctx, true))
	t.Cleanup(func() { _ = f.Close() })
	assert.Same(t, m.GetDB(), f.GetDB())
	assert.True(t, f.GetHealthStatus(ctx).Healthy)
}

func TestInitDB(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetDB())
	assert.Equal(t, "Database not initialized", GetHealthStatus(ctx).LastError)
	assert.Error(t, RunMigrations(ctx))

	db, err := InitDB(ctx, &Config{
		ConnectionConfig: *memoryConfig(),
		MigrateConfig:    MigrateConfig{EnableMigrateOnStartup: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB() })

	assert.Same(t, db, GetDB())
	assert.NotNil(t, GetManager())
	assert.True(t, GetHealthStatus(ctx).Healthy)
	assert.Equal(t, 1, GetDatabaseStats().MaxOpenConns)
	require.NoError(t, RunMigrations(ctx))

	require.NoError(t, CloseDB())
	assert.Nil(t, GetDB())
}

func TestQueryHook(t *testing.T) {
	var buf bytes.Buffer
	event := func(err error) *bun.QueryEvent {
		return &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now(), Err: err}
	}

	quiet := NewQueryHook(&buf, false, "")
	quiet.AfterQuery(context.Background(), event(nil))
	assert.Empty(t, buf.String())

	quiet.AfterQuery(context.Background(), event(errors.New("boom")))
	assert.Contains(t, buf.String(), "SELECT 1")
	assert.Contains(t, buf.String(), "boom")

	buf.Reset()
	verbose := NewQueryHook(&buf, true, "")
	verbose.AfterQuery(context.Background(), event(nil))
	assert.Contains(t, buf.String(), "[BUN]")

	buf.Reset()
	SetQueryLogSilent(true)
	verbose.AfterQuery(context.Background(), event(errors.New("boom")))
	SetQueryLogSilent(false)
	assert.Empty(t, buf.String())

	buf.Reset()
	t.Setenv("TEST_QUERY_LOG", "0")
	NewQueryHook(&buf, true, "TEST_QUERY_LOG").AfterQuery(context.Background(), event(errors.New("boom")))
	assert.Empty(t, buf.String())
}

type recordingLogger struct {
	DefaultLogger
	warnings []string
}

func (l *recordingLogger) Warn(msg string, _ ...interface{}) { l.warnings = append(l.warnings, msg) }

func TestSlowQueryHook(t *testing.T) {
	logger := &recordingLogger{}
	hook := &slowQueryHook{threshold: 500 * time.Millisecond, logger: logger}

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	assert.Empty(t, logger.warnings)

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now().Add(-time.Second)})
	assert.Equal(t, []string{"Database slow query detected"}, logger.warnings)
}

func TestDefaultLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

	logger := NewDefaultLogger(l)
	logger.Info("connected", "type", "sqlite", "dangling")
	out := buf.String()
	assert.Contains(t, out, "msg=connected")
	assert.Contains(t, out, "type=sqlite")
	assert.NotContains(t, out, "dangling")

	buf.Reset()
	logger.SetLevel(LogLevelWarn)
	logger.Info("hidden")
	assert.Empty(t, strings.TrimSpace(buf.String()))
	logger.Error("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}
