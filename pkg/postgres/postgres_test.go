package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingMigrations(t *testing.T) {
	all, err := pendingMigrations(nil)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, "001_init.sql", all[0])
	assert.IsIncreasing(t, all)

	rest, err := pendingMigrations([]string{"001_init.sql"})
	require.NoError(t, err)
	assert.NotContains(t, rest, "001_init.sql")
	assert.Len(t, rest, len(all)-1)
}
