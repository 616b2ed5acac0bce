package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

const defaultLockTimeout = 30 * time.Second

// Config describes where the SQL migration files live.
type Config struct {
	MigrationsFS   fs.FS
	MigrationsPath string // directory inside MigrationsFS
	LockTimeout    time.Duration
}

// Migrator applies schema migrations through an existing pgx pool.
type Migrator struct {
	config Config
	pool   *pgxpool.Pool
}

// NewMigrator creates a Migrator.
func NewMigrator(config Config, pool *pgxpool.Pool) *Migrator {
	if config.LockTimeout <= 0 {
		config.LockTimeout = defaultLockTimeout
	}
	return &Migrator{
		config: config,
		pool:   pool,
	}
}

// Up applies every pending migration. No pending migrations is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	migrator, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer closeMigrator(migrator)

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, _ := migrator.Version()
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("database migrations applied")
	return nil
}

// Down rolls back every migration.
func (m *Migrator) Down(ctx context.Context) error {
	migrator, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer closeMigrator(migrator)

	if err := migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	log.Info().Msg("database migrations rolled back")
	return nil
}

// Version returns the current schema version. A database with no migrations yields 0.
func (m *Migrator) Version(ctx context.Context) (uint, bool, error) {
	migrator, err := m.open(ctx)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrator(migrator)

	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) open(ctx context.Context) (*migrate.Migrate, error) {
	if err := m.pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database is not reachable: %w", err)
	}

	db := stdlib.OpenDBFromPool(m.pool)
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(m.config.MigrationsFS, m.config.MigrationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	migrator.LockTimeout = m.config.LockTimeout
	return migrator, nil
}

func closeMigrator(migrator *migrate.Migrate) {
	srcErr, dbErr := migrator.Close()
	if srcErr != nil {
		log.Warn().Err(srcErr).Msg("failed to close migration source")
	}
	if dbErr != nil {
		log.Warn().Err(dbErr).Msg("failed to close migration database driver")
	}
}
