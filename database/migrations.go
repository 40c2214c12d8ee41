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
	"os"
	"sort"
	"time"

	"github.com/tomoncle/fluentrepo/utils"
	"github.com/uptrace/bun"
)

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes one migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// MigrationManager applies migrations once each, recording them in the
// migrations table. Version "001" creates the tables of registered models.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
	extra  []MigrationItem
}

func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{db: db, logger: logger}
}

// Add queues an additional migration. Versions sort lexically.
func (mm *MigrationManager) Add(items ...MigrationItem) *MigrationManager {
	mm.extra = append(mm.extra, items...)
	return mm
}

// RunMigrations applies every pending migration in version order. Query
// logging is muted unless BUNDEBUG_MIGRATION is set.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		SetQueryLogSilent(true)
		defer SetQueryLogSilent(false)
	}

	if _, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := append([]MigrationItem{{
		Version:     "001",
		Name:        "create_base_tables",
		Description: "Create tables of registered models",
		Up:          createRegisteredTables,
	}}, mm.extra...)
	sort.SliceStable(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, migration := range migrations {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}
	mm.logger.Info("Database migrations completed!")
	return nil
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	start := time.Now()
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil || exists {
		return err
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&Migration{
			Version:     migration.Version,
			Name:        migration.Name,
			AppliedAt:   time.Now(),
			Description: migration.Description,
		}).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	mm.logger.Info("Migration executed successfully",
		"version", migration.Version,
		"name", migration.Name,
		"elapsed", utils.Elapsed(start),
	)
	return nil
}

func createRegisteredTables(ctx context.Context, db bun.IDB) error {
	for _, model := range RegisteredModelInstances() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
