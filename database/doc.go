// Package database manages the bun connection used by repositories:
// configuration with environment overrides, connection and health
// management, query logging hooks, a model registry with table-creating
// migrations, and SQL error classification.
package database
