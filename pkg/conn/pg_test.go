package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	t.Run("explicit connection string wins", func(t *testing.T) {
		opt := Option{ConnString: "postgres://u:p@db:5432/trader", Host: "ignored"}
		dsn, err := opt.dsn()
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@db:5432/trader", dsn)
	})

	t.Run("defaults fill in", func(t *testing.T) {
		dsn, err := Option{Database: "trader"}.dsn()
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost:5432/trader?sslmode=disable", dsn)
	})

	t.Run("credentials and params", func(t *testing.T) {
		opt := Option{
			Host: "db", Port: 5433,
			User: "trader", Password: "hunter2",
			Database: "prices", SSLMode: "require",
			Params: map[string]string{"connect_timeout": "5", "": "dropped"},
		}
		dsn, err := opt.dsn()
		require.NoError(t, err)
		assert.Equal(t, "postgres://trader:hunter2@db:5433/prices?connect_timeout=5&sslmode=require", dsn)
	})

	t.Run("user without password", func(t *testing.T) {
		dsn, err := Option{User: "trader", Database: "prices"}.dsn()
		require.NoError(t, err)
		assert.Equal(t, "postgres://trader@localhost:5432/prices?sslmode=disable", dsn)
	})
}

func TestPoolDefaults(t *testing.T) {
	assert.Equal(t, 8, valueOr(0, defaultMaxOpenConns))
	assert.Equal(t, 16, valueOr(16, defaultMaxOpenConns))
}
