package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/qa-reports-api/pkg/config"
)

func TestDSNFromFields(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "qa", Password: "p@ss word", Name: "qa_reports", SSLMode: "disable"})
	assert.Equal(t, "postgres://qa:p%40ss%20word@db:5432/qa_reports?sslmode=disable", dsn)
}

func TestDSNPrefersURL(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{URL: "postgres://u:p@managed:6543/x", Host: "ignored"})
	assert.Equal(t, "postgres://u:p@managed:6543/x", dsn)
}
