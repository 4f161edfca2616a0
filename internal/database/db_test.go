package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseURL(t *testing.T) {
	testCases := []struct {
		name   string
		url    string
		driver string
		dsn    string
	}{
		{"empty defaults to sqlite file", "", DriverSQLite, "taskvault.db?_foreign_keys=on"},
		{"sqlite path", "sqlite:///tmp/tasks.db", DriverSQLite, "/tmp/tasks.db?_foreign_keys=on"},
		{"sqlite with params", "sqlite://file::memory:?cache=shared", DriverSQLite, "file::memory:?cache=shared&_foreign_keys=on"},
		{"sqlite keeps explicit pragma", "sqlite://x.db?_foreign_keys=off", DriverSQLite, "x.db?_foreign_keys=off"},
		{"postgres dsn", "host=localhost user=app dbname=tasks", DriverPostgres, "host=localhost user=app dbname=tasks"},
		{"postgres url", "postgres://app@localhost/tasks", DriverPostgres, "postgres://app@localhost/tasks"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			driver, dsn := ParseURL(tc.url)
			assert.Equal(t, tc.driver, driver)
			assert.Equal(t, tc.dsn, dsn)
		})
	}
}
