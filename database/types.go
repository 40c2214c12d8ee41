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
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// Manager owns one database connection: connecting, health reporting,
// reconnecting and migrations.
type Manager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	RunMigrations(ctx context.Context) error
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql pool statistics.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its
// pool. Every field can be overridden from the environment.
type ConnectionConfig struct {
	Type                string        `yaml:"type" env:"DB_TYPE"` // postgres, mysql, sqlite
	Host                string        `yaml:"host" env:"DB_HOST"`
	Port                int           `yaml:"port" env:"DB_PORT"`
	Username            string        `yaml:"username" env:"DB_USERNAME"`
	Password            string        `yaml:"password" env:"DB_PASSWORD"`
	DBName              string        `yaml:"dbname" env:"DB_NAME"` // sqlite: file name without ".db", or ":memory:"
	SSLMode             string        `yaml:"sslmode" env:"DB_SSLMODE"`
	MaxIdleConns        int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	MaxOpenConns        int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout" env:"DB_CONNECT_TIMEOUT"`
	ReadTimeout         time.Duration `yaml:"read_timeout" env:"DB_READ_TIMEOUT"`
	WriteTimeout        time.Duration `yaml:"write_timeout" env:"DB_WRITE_TIMEOUT"`
	EnableReconnect     bool          `yaml:"enable_reconnect" env:"DB_ENABLE_RECONNECT"`
	ReconnectInterval   time.Duration `yaml:"reconnect_interval" env:"DB_RECONNECT_INTERVAL"`
	MaxReconnectTries   int           `yaml:"max_reconnect_tries" env:"DB_MAX_RECONNECT_TRIES"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"DB_HEALTH_CHECK_INTERVAL"`
	EnableQueryLog      bool          `yaml:"enable_query_log" env:"DB_ENABLE_QUERY_LOG"`
	SlowQueryTime       time.Duration `yaml:"slow_query_time" env:"DB_SLOW_QUERY_TIME"`
	Charset             string        `yaml:"charset" env:"DB_CHARSET"` // MySQL only, utf8mb4 when empty
}

// MigrateConfig controls table creation on startup.
type MigrateConfig struct {
	EnableMigrateOnStartup bool `yaml:"enable_migrate_on_startup" env:"DB_MIGRATE_ON_STARTUP"`
}

// Config aggregates connection and migration settings.
type Config struct {
	ConnectionConfig ConnectionConfig `yaml:"connection"`
	MigrateConfig    MigrateConfig    `yaml:"migrate"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		ReadTimeout:         time.Second * 30,
		WriteTimeout:        time.Second * 30,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: time.Minute * 5,
		SlowQueryTime:       time.Second * 2,
	}
}
