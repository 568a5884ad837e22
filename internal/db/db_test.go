package db

import (
	"testing"

	"instapay/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		d, err := Dialector(&config.Config{DBDriver: driver, DBName: "instapay"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	_, err := Dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DBName: "file::memory:?cache=shared", IsProd: true}
	conn, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))

	for _, table := range []string{"users", "addresses", "wallets", "transactions", "beneficiaries", "payment_methods", "notifications"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}
