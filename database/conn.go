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
	"sync"

	"github.com/uptrace/bun"
)

var (
	globalMu      sync.RWMutex
	globalFactory *Factory
)

// GetDB returns the global bun database, or nil before InitDB.
func GetDB() *bun.DB {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalFactory == nil {
		return nil
	}
	return globalFactory.GetDB()
}

func GetManager() Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalFactory == nil {
		return nil
	}
	return globalFactory.GetManager()
}

// InitDB connects the global database described by cfg, creating
// registered tables when cfg.MigrateConfig asks for it.
func InitDB(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory := NewFactory()
	manager, err := factory.CreateFromConfig(&cfg.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx, cfg.MigrateConfig.EnableMigrateOnStartup); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db := manager.GetDB()
	db.RegisterModel(RegisteredModelInstances()...)

	globalMu.Lock()
	old := globalFactory
	globalFactory = factory
	globalMu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return db, nil
}

// CloseDB closes the global database.
func CloseDB() error {
	globalMu.Lock()
	factory := globalFactory
	globalFactory = nil
	globalMu.Unlock()
	if factory == nil {
		return nil
	}
	return factory.Close()
}

func GetHealthStatus(ctx context.Context) *HealthStatus {
	globalMu.RLock()
	factory := globalFactory
	globalMu.RUnlock()
	if factory == nil {
		return &HealthStatus{LastError: "Database not initialized"}
	}
	return factory.GetHealthStatus(ctx)
}

func GetDatabaseStats() *DBStats {
	globalMu.RLock()
	factory := globalFactory
	globalMu.RUnlock()
	if factory == nil {
		return &DBStats{}
	}
	return factory.GetStats()
}

// RunMigrations creates registered tables on the global database.
func RunMigrations(ctx context.Context) error {
	manager := GetManager()
	if manager == nil {
		return fmt.Errorf("database not initialized")
	}
	return manager.RunMigrations(ctx)
}
