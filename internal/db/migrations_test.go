package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/app?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/app?sslmode=disable"))
	require.Equal(t, "pgx5://u@db/app", migrateURL("postgresql://u@db/app"))
	require.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}
