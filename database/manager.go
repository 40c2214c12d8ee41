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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// MemoryDBName selects an in-memory SQLite database.
const MemoryDBName = ":memory:"

type defaultManager struct {
	config          *ConnectionConfig
	db              *bun.DB
	sqlDB           *sql.DB
	logger          Logger
	mu              sync.RWMutex
	connected       bool
	lastError       error
	reconnectTries  int
	// stopHealthCheck is closed to end the running health loop; nil when
	// no loop runs.
	stopHealthCheck chan struct{}
}

// NewManager returns a Manager backed by bun. A nil config uses
// DefaultConnectionConfig.
func NewManager(config *ConnectionConfig) Manager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &defaultManager{
		config: config,
		logger: GetLogger(),
	}
}

func (dm *defaultManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.connected && dm.db != nil {
		return nil
	}
	if dm.config.ConnectTimeout <= 0 {
		dm.config.ConnectTimeout = 30 * time.Second
	}

	sqlDB, db, err := openDB(dm.config)
	if err != nil {
		dm.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	dm.sqlDB, dm.db = sqlDB, db
	dm.addQueryHooks()
	dm.configureConnectionPool()

	ctxTimeout, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := dm.db.PingContext(ctxTimeout); err != nil {
		dm.lastError = err
		_ = dm.db.Close()
		dm.db, dm.sqlDB = nil, nil
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.connected = true
	dm.lastError = nil
	dm.reconnectTries = 0
	if dm.config.HealthCheckInterval > 0 && dm.stopHealthCheck == nil {
		dm.stopHealthCheck = make(chan struct{})
		go dm.healthCheckLoop(dm.stopHealthCheck)
	}
	dm.logger.Info("Database connected successfully", "type", dm.config.Type, "host", dm.config.Host, "dbname", dm.config.DBName)
	return nil
}

// openDB opens the driver and dialect selected by cfg.Type.
func openDB(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	var (
		driver = sqliteshim.ShimName
		dsn    string
		newDB  func(*sql.DB) *bun.DB
	)
	switch cfg.Type {
	case "mysql":
		driver, dsn = "mysql", MySQLDSN(cfg)
		newDB = func(s *sql.DB) *bun.DB { return bun.NewDB(s, mysqldialect.New()) }
	case "postgres", "postgresql":
		driver, dsn = "postgres", PostgresDSN(cfg)
		newDB = func(s *sql.DB) *bun.DB { return bun.NewDB(s, pgdialect.New()) }
	case "sqlite", "sqlite3":
		dsn = SQLiteDSN(cfg)
		newDB = func(s *sql.DB) *bun.DB { return bun.NewDB(s, sqlitedialect.New()) }
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, newDB(sqlDB), nil
}

// MySQLDSN formats cfg for go-sql-driver/mysql.
func MySQLDSN(cfg *ConnectionConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	mc.Params = map[string]string{"charset": charset}
	return mc.FormatDSN()
}

// PostgresDSN formats cfg as a lib/pq connection URL.
func PostgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SQLiteDSN returns the database file for cfg, or an in-memory DSN for
// MemoryDBName.
func SQLiteDSN(cfg *ConnectionConfig) string {
	if cfg.DBName == MemoryDBName || cfg.DBName == "" {
		return "file::memory:?cache=shared"
	}
	if strings.HasSuffix(cfg.DBName, ".db") {
		return cfg.DBName
	}
	return cfg.DBName + ".db"
}

func (dm *defaultManager) addQueryHooks() {
	if dm.config.EnableQueryLog {
		dm.db.AddQueryHook(NewQueryHook(nil, true, "DB_QUERY_LOG"))
	}
	dm.db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv("BUNDEBUG"),
	))
	if dm.config.SlowQueryTime > 0 {
		dm.db.AddQueryHook(&slowQueryHook{threshold: dm.config.SlowQueryTime, logger: dm.logger})
	}
}

func (dm *defaultManager) configureConnectionPool() {
	if dm.sqlDB == nil {
		return
	}
	if isMemory(dm.config) {
		// Every connection to an in-memory database sees its own schema.
		dm.sqlDB.SetMaxOpenConns(1)
		dm.sqlDB.SetMaxIdleConns(1)
		dm.sqlDB.SetConnMaxLifetime(0)
		dm.sqlDB.SetConnMaxIdleTime(0)
		return
	}
	dm.sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	dm.sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	dm.sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	dm.sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)
}

func isMemory(cfg *ConnectionConfig) bool {
	return (cfg.Type == "sqlite" || cfg.Type == "sqlite3") && strings.Contains(SQLiteDSN(cfg), ":memory:")
}

func (dm *defaultManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.stopHealthCheck != nil {
		close(dm.stopHealthCheck)
		dm.stopHealthCheck = nil
	}
	return dm.closeLocked()
}

// closeLocked closes the connection and leaves the health loop running.
func (dm *defaultManager) closeLocked() error {
	if dm.db == nil {
		return nil
	}

	err := dm.db.Close()
	dm.db, dm.sqlDB = nil, nil
	dm.connected = false
	if err != nil {
		dm.logger.Error("Failed to close database connection", "error", err)
	} else {
		dm.logger.Info("Database connection closed")
	}
	return err
}

// Reconnect replaces the connection. A running health loop keeps running,
// so a failed attempt is retried on the next tick.
func (dm *defaultManager) Reconnect(ctx context.Context) error {
	dm.logger.Info("Attempting to reconnect to the database")
	dm.mu.Lock()
	err := dm.closeLocked()
	dm.mu.Unlock()
	if err != nil {
		dm.logger.Warn("Error disconnecting existing connection", "error", err)
	}
	return dm.Connect(ctx)
}

func (dm *defaultManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *defaultManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

func (dm *defaultManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start, Connected: dm.connected}
	if dm.db == nil {
		status.LastError = "Database not initialized"
		return status
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := dm.db.PingContext(ctxTimeout)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.Connected = false
		status.LastError = err.Error()
		dm.lastError = err
	} else {
		status.Healthy = true
		status.Connected = true
		dm.lastError = nil
	}

	stats := dm.sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections
	return status
}

func (dm *defaultManager) healthCheckLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(dm.config.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			status := dm.HealthCheck(ctx)
			cancel()
			dm.logger.Debug("Database health check", "healthy", status.Healthy, "response_time", status.ResponseTime)
			if !status.Healthy && dm.config.EnableReconnect {
				dm.handleReconnect()
			}
		case <-stop:
			return
		}
	}
}

func (dm *defaultManager) handleReconnect() {
	if dm.reconnectTries >= dm.config.MaxReconnectTries {
		dm.logger.Error("Max reconnect attempts reached, stopping", "tries", dm.reconnectTries)
		return
	}
	dm.reconnectTries++
	dm.logger.Info("Starting database reconnect", "try", dm.reconnectTries)
	time.Sleep(dm.config.ReconnectInterval)

	ctx, cancel := context.WithTimeout(context.Background(), dm.config.ConnectTimeout)
	defer cancel()
	if err := dm.Reconnect(ctx); err != nil {
		dm.logger.Error("Reconnect failed", "error", err, "try", dm.reconnectTries)
		return
	}
	dm.reconnectTries = 0
	dm.logger.Info("Reconnect succeeded")
}

func (dm *defaultManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (dm *defaultManager) RunMigrations(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return NewMigrationManager(db, dm.logger).RunMigrations(ctx)
}

func (dm *defaultManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
