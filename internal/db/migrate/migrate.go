// Package migrate applies the versioned schema this core depends on —
// the two append-only tables it owns outright plus the read-only tables
// it reads from upstream systems, declared here so a fresh environment
// (or an integration test) can stand up the full schema without the
// ingestion pipeline's own migration tooling.
package migrate

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/priceye/pricing-engine/internal/pricingerr"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Up applies every pending migration against dsn. It is idempotent: a
// schema already at the latest version returns nil.
func Up(dsn string) error {
	src, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return pricingerr.ModelLifecycle("failed to load embedded migrations", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return pricingerr.Configuration("failed to initialize migrator", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return pricingerr.ModelLifecycle("migration up failed", err)
	}
	return nil
}

// Down rolls back every applied migration. Used only by hermetic test
// teardown and local development resets — never invoked in production.
func Down(dsn string) error {
	src, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return pricingerr.ModelLifecycle("failed to load embedded migrations", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return pricingerr.Configuration("failed to initialize migrator", err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return pricingerr.ModelLifecycle("migration down failed", err)
	}
	return nil
}
