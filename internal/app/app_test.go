package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	coreconfig "github.com/m3rciful/vouchershop/core/config"
	coredatabase "github.com/m3rciful/vouchershop/core/database"
)

// The database section is parsed in core/config and only converted to the
// core/database form here, at the composition root. This keeps core/config
// free of package dependencies.
func TestDatabaseConfigConversion(t *testing.T) {
	in := coreconfig.DatabaseConfig{
		Host:           "db.internal",
		Port:           "5433",
		User:           "shop",
		Password:       "hunter2",
		Name:           "vouchers",
		SSLMode:        "require",
		MaxConnections: 12,
	}

	got := databaseConfig(in)

	assert.Equal(t, coredatabase.Config{
		Host:           "db.internal",
		Port:           "5433",
		User:           "shop",
		Password:       "hunter2",
		Name:           "vouchers",
		SSLMode:        "require",
		MaxConnections: 12,
	}, got)
}
