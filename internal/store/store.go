// Package store persists payments, lessons, allocations, identity
// associations and rejected suggestions behind per-entity repositories.
//
// Two drivers are supported: sqlite3 for embedded single-file operation
// (and tests) and postgres for shared deployments. Queries are written
// with ? placeholders and rebound per driver.
package store

import (
	"fmt"
	"strings"

	apperrors "lesson-reconciliation-service/pkg/errors"
	"lesson-reconciliation-service/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// DriverSQLite is the embedded single-file driver.
const DriverSQLite = "sqlite3"

// DriverPostgres is the shared-deployment driver.
const DriverPostgres = "postgres"

// Ext is the common query surface of *sqlx.DB and *sqlx.Tx. Repositories
// are bound to one of the two, so the same repository code runs inside
// and outside transactions.
type Ext interface {
	sqlx.Ext
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

// Store owns the database handle and the repositories bound to it.
type Store struct {
	db     *sqlx.DB
	driver string
	logger logger.Logger

	Payments     *PaymentRepo
	Lessons      *LessonRepo
	Allocations  *AllocationRepo
	Associations *AssociationRepo
	Rejections   *RejectionRepo
}

// Tx bundles the repositories bound to one transaction.
type Tx struct {
	Payments     *PaymentRepo
	Lessons      *LessonRepo
	Allocations  *AllocationRepo
	Associations *AssociationRepo
	Rejections   *RejectionRepo
}

// Open connects to the database, verifies the connection and applies the
// schema.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig,
			"store.driver", driver, nil)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeConnectionFailed, "open", err)
	}

	if driver == DriverSQLite {
		// Enforced off by default in sqlite
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, apperrors.StorageError(apperrors.CodeConnectionFailed, "enable foreign keys", err)
		}
	}

	s := &Store{
		db:     db,
		driver: driver,
		logger: logger.WithComponent("store"),
	}
	s.bindRepos()

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"driver": driver,
	}).Info("Store opened")

	return s, nil
}

func (s *Store) bindRepos() {
	s.Payments = NewPaymentRepo(s.db)
	s.Lessons = NewLessonRepo(s.db)
	s.Allocations = NewAllocationRepo(s.db)
	s.Associations = NewAssociationRepo(s.db)
	s.Rejections = NewRejectionRepo(s.db)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// DB exposes the underlying handle for read-only ad hoc queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a transaction, committing on nil error and
// rolling back otherwise.
func (s *Store) WithTx(fn func(*Tx) error) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeTransactionFailed, "begin", err)
	}

	repos := &Tx{
		Payments:     NewPaymentRepo(tx),
		Lessons:      NewLessonRepo(tx),
		Allocations:  NewAllocationRepo(tx),
		Associations: NewAssociationRepo(tx),
		Rejections:   NewRejectionRepo(tx),
	}

	if err := fn(repos); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithError(rbErr).Error("Rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.StorageError(apperrors.CodeTransactionFailed, "commit", err)
	}

	return nil
}

func (s *Store) migrate() error {
	var schema string
	switch s.driver {
	case DriverPostgres:
		schema = schemaPostgres
	default:
		schema = schemaSQLite
	}

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return apperrors.StorageError(apperrors.CodeQueryFailed,
				fmt.Sprintf("migrate: %.40s", stmt), err)
		}
	}

	return nil
}

// isUniqueViolation reports whether err is a unique-constraint failure
// in either supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}

	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
