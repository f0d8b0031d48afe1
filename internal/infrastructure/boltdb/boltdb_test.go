package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestOpen_CreatesBucketsAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tasks.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Ping())

	err = store.DB().View(func(tx *bolt.Tx) error {
		for _, name := range DefaultBuckets {
			assert.NotNil(t, tx.Bucket([]byte(name)), name)
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.NoError(t, reopened.Ping())
}

func TestStore_NilIsSafe(t *testing.T) {
	var store *Store
	assert.Nil(t, store.DB())
	assert.Error(t, store.Ping())
	assert.NoError(t, store.Close())
}
