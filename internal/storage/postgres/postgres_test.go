package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txdash/internal/storage"
	"txdash/internal/storage/storagetest"
)

// Runs only when TEST_DATABASE_URL points at a disposable database.
func TestRepositorySuite(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	storagetest.Run(t, func(t *testing.T) storage.Store {
		repo, err := New(context.Background(), url)
		require.NoError(t, err)
		require.NoError(t, repo.Load(context.Background(), nil))
		return repo
	})
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/tx?sslmode=disable", migrateURL("postgres://u:p@db:5432/tx?sslmode=disable"))
	assert.Equal(t, "pgx5://db/tx", migrateURL("postgresql://db/tx"))
	assert.Equal(t, "pgx5://db/tx", migrateURL("pgx5://db/tx"))
}
