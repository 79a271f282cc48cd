package postgres

import (
	"errors"

	"github.com/aussiebroadwan/authority/internal/authority/store/drivers/postgres/migrations"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations brings the schema up to date. migrate takes an advisory
// lock, so concurrent start-ups are safe.
func (s *Store) ApplyMigrations() error {
	driver, err := pgmigrate.WithInstance(s.db, &pgmigrate.Config{})
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
