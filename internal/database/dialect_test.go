package database

import (
	"strings"
	"testing"
)

func TestDialectDriverNames(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		want    string
	}{
		{"sqlite", NewSQLiteDialect(), "sqlite3"},
		{"postgres", NewPostgresDialect(), "postgres"},
		{"mysql", NewMySQLDialect(), "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.DriverName(); got != tt.want {
				t.Errorf("DriverName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "INSERT INTO children (family_id, name) VALUES (?, ?)",
			expected: "INSERT INTO children (family_id, name) VALUES ($1, $2)",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE children SET name = ? WHERE id = ?",
			expected: "UPDATE children SET name = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.RewriteQuery(tt.query); got != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMySQLDSNRequiredParams(t *testing.T) {
	dialect := NewMySQLDialect()

	tests := []struct {
		name string
		url  string
	}{
		{"bare DSN", "user:pass@tcp(localhost:3306)/cadence"},
		{"existing params", "user:pass@tcp(localhost:3306)/cadence?charset=utf8mb4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := dialect.DSN(DialectConfig{URL: tt.url})
			if !strings.Contains(dsn, "parseTime=true") {
				t.Errorf("DSN %q missing parseTime=true", dsn)
			}
			if !strings.Contains(dsn, "multiStatements=true") {
				t.Errorf("DSN %q missing multiStatements=true", dsn)
			}
		})
	}
}

func TestUpsertProfileQueryPerDialect(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		contains string
	}{
		{"sqlite uses ON CONFLICT", NewSQLiteDialect(), "ON CONFLICT"},
		{"postgres uses ON CONFLICT", NewPostgresDialect(), "ON CONFLICT"},
		{"mysql uses ON DUPLICATE KEY", NewMySQLDialect(), "ON DUPLICATE KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := tt.dialect.UpsertProfileQuery()
			if !strings.Contains(query, tt.contains) {
				t.Errorf("UpsertProfileQuery() = %q, want it to contain %q", query, tt.contains)
			}
		})
	}
}

func TestIsUniqueViolationRejectsUnrelatedErrors(t *testing.T) {
	dialects := []struct {
		name    string
		dialect Dialect
	}{
		{"sqlite", NewSQLiteDialect()},
		{"postgres", NewPostgresDialect()},
		{"mysql", NewMySQLDialect()},
	}

	for _, tt := range dialects {
		t.Run(tt.name, func(t *testing.T) {
			if tt.dialect.IsUniqueViolation(nil) {
				t.Error("IsUniqueViolation(nil) should be false")
			}
			if tt.dialect.IsUniqueViolation(errGeneric) {
				t.Error("IsUniqueViolation should reject unrelated errors")
			}
		})
	}
}
