package db

import (
	"strings"
	"testing"

	"talk-chat/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host: "db", Port: 5432, Username: "u", Password: "p", Database: "talk", Schema: "chat",
	})

	assert.Contains(t, dsn, "host=db")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=talk")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.True(t, strings.HasSuffix(dsn, "search_path=chat"))
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.DatabaseConfig{
		Host: "127.0.0.1", Port: 3306, Username: "root", Password: "secret", Database: "talk",
	})

	assert.True(t, strings.HasPrefix(dsn, "root:secret@tcp(127.0.0.1:3306)/talk?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestDialectorFor_UnknownDriver(t *testing.T) {
	_, err := dialectorFor(config.DatabaseConfig{Driver: "sqlite"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}
