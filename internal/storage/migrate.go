package storage

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

// RunMigrations brings the dusseldorf schema up to date from the given
// directory. An already-current schema is not an error.
func RunMigrations(dbURL, migrationsDir string) error {
	m, err := migrate.New("file://"+migrationsDir, dbURL)
	if err != nil {
		return fmt.Errorf("opening migrations: %w", err)
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug().Msg("schema already up to date")
	case err != nil:
		return fmt.Errorf("applying migrations: %w", err)
	default:
		version, dirty, verr := m.Version()
		if verr != nil {
			log.Warn().Err(verr).Msg("schema migrated, version unknown")
			break
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema migrated")
	}
	return nil
}
