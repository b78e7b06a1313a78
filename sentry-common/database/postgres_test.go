package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anb2473/Archeology-Sentry/sentry-common/config"
)

func TestClose(t *testing.T) {
	assert.NoError(t, Close(nil))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	require.NoError(t, Close(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresDB_Unreachable(t *testing.T) {
	_, err := NewPostgresDB(&config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "postgres",
		Password: "postgres",
		Database: "sentry",
		SSLMode:  "disable",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}
