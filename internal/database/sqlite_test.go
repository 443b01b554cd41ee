package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "location.db")
	db, err := Connect(SQLiteConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
	assert.FileExists(t, path)
	assert.NoError(t, Close(db))
}

func TestConnect_RequiresPath(t *testing.T) {
	_, err := Connect(SQLiteConfig{}, zap.NewNop())
	assert.Error(t, err)
}
