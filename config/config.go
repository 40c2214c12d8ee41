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

// Package config loads application settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/tomoncle/fluentrepo/database"
	"github.com/tomoncle/fluentrepo/repository"
	"github.com/tomoncle/fluentrepo/types"
	"github.com/tomoncle/fluentrepo/utils"
	"gopkg.in/yaml.v3"
)

// LogConfig selects the level and console format of every utils logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"CONSOLE_LOG_FORMAT"`
}

// RepositoryConfig holds defaults shared by repositories.
type RepositoryConfig struct {
	PerPage        int    `yaml:"per_page" env:"REPOSITORY_PER_PAGE"`
	OrderColumn    string `yaml:"order_column" env:"REPOSITORY_ORDER_COLUMN"`
	OrderDirection string `yaml:"order_direction" env:"REPOSITORY_ORDER_DIRECTION"`
}

// Options converts the settings into repository options. Unlike
// repository.ParseDirection, an unknown direction is an error.
func (c RepositoryConfig) Options() ([]repository.Option, error) {
	var opts []repository.Option
	if c.PerPage > 0 {
		opts = append(opts, repository.WithPerPage(c.PerPage))
	}
	if c.OrderColumn != "" {
		dir := repository.Ascending
		if c.OrderDirection != "" {
			d, ok := types.LookupEnum(c.OrderDirection, repository.Ascending, repository.Descending)
			if !ok {
				return nil, fmt.Errorf("config: unknown order direction %q", c.OrderDirection)
			}
			dir = d
		}
		opts = append(opts, repository.WithDefaultOrder(c.OrderColumn, dir))
	}
	return opts, nil
}

// Config is the root configuration document.
type Config struct {
	Database   database.Config  `yaml:"database"`
	Repository RepositoryConfig `yaml:"repository"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the configuration used for keys absent from the file and
// the environment.
func Default() *Config {
	return &Config{
		Database:   database.Config{ConnectionConfig: *database.DefaultConnectionConfig()},
		Repository: RepositoryConfig{PerPage: repository.DefaultPerPage},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (skipped when empty) over Default, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Repository.PerPage < 0 {
		return fmt.Errorf("config: repository.per_page must not be negative")
	}
	if _, err := c.Repository.Options(); err != nil {
		return err
	}
	return nil
}

// ApplyLogging configures the utils loggers from c.Log.
func (c *Config) ApplyLogging() {
	if c.Log.Format != "" {
		utils.ConfigureConsoleLogFormat(c.Log.Format)
	}
	if c.Log.Level != "" {
		utils.ConfigureLogLevel(c.Log.Level)
	}
}
