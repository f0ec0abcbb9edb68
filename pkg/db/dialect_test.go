package db

import (
	"testing"

	"github.com/smallbiznis/creatorpay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectSelectsDriver(t *testing.T) {
	for kind, want := range map[string]string{
		"":         "postgres",
		"Postgres": "postgres",
		"mysql":    "mysql",
		"sqlite":   "sqlite",
	} {
		d, err := Dialect(config.Config{DBType: kind, DBPath: ":memory:"})
		require.NoError(t, err, kind)
		assert.Equal(t, want, d.Name(), kind)
	}

	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)
}

func TestPostgresDSNOmitsEmptyPassword(t *testing.T) {
	cfg := config.Config{DBHost: "db", DBPort: "5432", DBUser: "app", DBName: "creatorpay"}
	assert.Equal(t, "host=db port=5432 user=app dbname=creatorpay sslmode=disable TimeZone=UTC", postgresDSN(cfg))

	cfg.DBPassword = "s3cret"
	cfg.DBSSLMode = "require"
	assert.Contains(t, postgresDSN(cfg), "sslmode=require")
	assert.Contains(t, postgresDSN(cfg), "password=s3cret")
}

func TestSqliteDSNAppendsPragmas(t *testing.T) {
	assert.Equal(t, "creatorpay.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN(config.Config{}))
	assert.Equal(t, "file:test.db?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		sqliteDSN(config.Config{DBPath: "file:test.db?mode=memory"}))
}
