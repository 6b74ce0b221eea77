package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsHaveUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		raw, err := fs.ReadFile(migrationFiles, migrationsDir+"/"+entry.Name())
		require.NoError(t, err)
		body := string(raw)
		assert.True(t, strings.HasPrefix(body, "-- +goose Up"), entry.Name())
		assert.Contains(t, body, "-- +goose Down", entry.Name())
	}
}

func TestEmbeddedMigrationsCreateRepositoryTables(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, migrationsDir)
	require.NoError(t, err)

	var all strings.Builder
	for _, entry := range entries {
		raw, err := fs.ReadFile(migrationFiles, migrationsDir+"/"+entry.Name())
		require.NoError(t, err)
		all.Write(raw)
	}
	for _, table := range []string{
		"analyses",
		"issues",
		"coverage_reports",
		"quality_gates",
		"quality_gate_conditions",
		"project_settings",
	} {
		assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
}

func TestMigrationHelpersRejectNilDB(t *testing.T) {
	require.NoError(t, RunMigrations(t.Context(), nil))
	require.Error(t, RollbackMigration(t.Context(), nil))
	_, err := MigrationStatus(t.Context(), nil)
	require.Error(t, err)
}
