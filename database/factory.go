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
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/uptrace/bun"
)

var supportedTypes = []string{"mysql", "postgres", "postgresql", "sqlite", "sqlite3"}

// Factory creates a Manager from configuration and exposes it to the
// package-level helpers.
type Factory struct {
	manager Manager
	logger  Logger
}

// NewFactory returns a factory using the global logger.
func NewFactory() *Factory {
	return &Factory{logger: GetLogger()}
}

// CreateFromConfig applies DB_* environment overrides to cfg and builds a
// manager for it.
func (f *Factory) CreateFromConfig(cfg *ConnectionConfig) (Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to read database environment: %w", err)
	}
	if !slices.Contains(supportedTypes, cfg.Type) {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.Type, supportedTypes)
	}

	manager := NewManager(cfg)
	manager.SetLogger(f.logger)
	f.manager = manager
	return manager, nil
}

// InitializeDatabase connects and optionally creates registered tables.
func (f *Factory) InitializeDatabase(ctx context.Context, runMigrations bool) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if runMigrations {
		if err := f.manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	f.logger.Info("Database initialization completed!")
	return nil
}

func (f *Factory) GetManager() Manager {
	return f.manager
}

// GetDB returns the bun database, or nil before CreateFromConfig.
func (f *Factory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

func (f *Factory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

func (f *Factory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

func (f *Factory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

func (f *Factory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
