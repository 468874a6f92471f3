package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duochat/internal/config"
)

func TestInit_SQLiteCreatesSchema(t *testing.T) {
	cfg := config.Config{DBDriver: DialectSQLite, DBPath: filepath.Join(t.TempDir(), "chat.db")}

	db, err := Init(cfg)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"participants", "messages", "message_states", "reactions"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, Migrate(db, DialectSQLite), "iteration %d", i)
	}
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := Init(config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(config.Config{DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: "3306", DBName: "chat"})
	assert.Contains(t, dsn, "u:p@tcp(db:3306)/chat")
	assert.Contains(t, dsn, "parseTime=true")
}
