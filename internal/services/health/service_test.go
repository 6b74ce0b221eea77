package health

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWithoutDatabase(t *testing.T) {
	report := NewService(nil, "memory").Check(context.Background())
	assert.Equal(t, Report{OK: true, Database: "memory", Queue: "memory"}, report)
}

func TestCheckPingsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	report := NewService(db, "sqs").Check(context.Background())
	assert.True(t, report.OK)
	assert.Equal(t, "ok", report.Database)
	assert.Equal(t, "sqs", report.Queue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckReportsUnreachableDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	report := NewService(db, "").Check(context.Background())
	assert.False(t, report.OK)
	assert.Equal(t, "unreachable", report.Database)
	assert.Equal(t, "none", report.Queue)
}
