package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists Events to a local SQLite database and serves them back in
// insertion order: a single *gorm.DB over a single open connection (sqlite
// tolerates only one writer), with schema managed by golang-migrate rather
// than GORM auto-migrate. Both the gorm dialector and the migration driver
// are the pure-Go, modernc.org/sqlite-backed implementations, matching the
// cgo-free connection opened below.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open creates (if necessary) and migrates the audit database at path, then
// returns a ready-to-use Store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := runMigrations(sqlDB); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}

	db, err := gorm.Open(gormsqlite.Dialector{Conn: sqlDB}, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("audit: gorm open: %w", err)
	}

	return &Store{db: db, logger: logger.Named("audit")}, nil
}

// runMigrations applies every embedded migration to sqlDB. Already-applied
// migrations are a no-op (golang-migrate tracks its own version table).
func runMigrations(sqlDB *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlitemigrate.WithInstance(sqlDB, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record implements Recorder. Failures are logged, never propagated — an
// audit write must never affect the outcome of the control-plane operation
// that produced the event.
func (s *Store) Record(kind, subjectID, detail string) {
	ev := Event{
		OccurredAt: time.Now().UTC(),
		Kind:       kind,
		SubjectID:  subjectID,
		Detail:     detail,
	}
	if err := s.db.Create(&ev).Error; err != nil {
		s.logger.Warn("failed to record audit event",
			zap.String("kind", kind), zap.String("subject_id", subjectID), zap.Error(err))
	}
}

// List returns events in insertion order, paginated by limit/offset.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Event, error) {
	var events []Event
	q := s.db.WithContext(ctx).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return events, nil
}
