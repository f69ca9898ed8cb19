// Package database implements the domain stores on PostgreSQL with gorm.
package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sociapi/domain"
	"sociapi/errs"
)

// DB provides the database connection.
type DB struct {
	// Object-relational mapping.
	Gorm *gorm.DB
	// Connection info string containing database name, user, port etc.
	ConnectionInfo string
}

// NewDB returns a new instance of DB.
func NewDB(connectionInfo string) *DB {
	return &DB{ConnectionInfo: connectionInfo}
}

// Open opens a new database connection. It also configures logging
// based on whether we're in development or in production.
func Open(db *DB, isProd bool) (err error) {
	if db.ConnectionInfo == "" {
		return fmt.Errorf("connectionInfo required")
	}
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	if !isProd {
		config.Logger = logger.Default.LogMode(logger.Info)
	}
	db.Gorm, err = gorm.Open(postgres.Open(db.ConnectionInfo), config)
	if err != nil {
		return fmt.Errorf("err opening gorm postgres connection: %w", err)
	}
	return nil
}

func models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Profile{},
		&domain.FollowRequest{},
		&domain.Post{},
		&domain.Comment{},
		&domain.Hashtag{},
		&domain.OAuth{},
	}
}

// AutoMigrate runs database migrations for all tables.
func AutoMigrate(db *DB) error {
	if err := db.Gorm.AutoMigrate(models()...); err != nil {
		return fmt.Errorf("err migrating: %w", err)
	}
	// At most one pending request per pair of users.
	err := db.Gorm.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_follow_requests_pending
		ON follow_requests (from_id, to_id) WHERE status = 'pending'`).Error
	if err != nil {
		return fmt.Errorf("err creating pending request index: %w", err)
	}
	return nil
}

// DestructiveReset drops all tables and rebuilds them.
func DestructiveReset(db *DB) error {
	if err := db.Gorm.Migrator().DropTable(models()...); err != nil {
		return err
	}
	return AutoMigrate(db)
}

// Close closes the database connection.
func Close(db *DB) error {
	sqlDb, err := db.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

func (db *DB) Users() domain.UserStore                   { return &userGorm{db.Gorm} }
func (db *DB) Profiles() *ProfileGorm                    { return &ProfileGorm{db.Gorm} }
func (db *DB) FollowRequests() domain.FollowRequestStore { return &requestGorm{db.Gorm} }
func (db *DB) Posts() domain.PostStore                   { return &postGorm{db.Gorm} }
func (db *DB) Comments() domain.CommentStore             { return &commentGorm{db.Gorm} }
func (db *DB) Hashtags() domain.HashtagStore             { return &hashtagGorm{db.Gorm} }
func (db *DB) OAuths() domain.OAuthStore                 { return &oauthGorm{db.Gorm} }

// translate turns gorm's errors into application errors.
func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.NotFound(entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errs.Errorf(errs.ECONFLICT, "%s already exists.", entity)
	case sqlState(err) == invalidTextRepresentation:
		return errs.Errorf(errs.EINVALID, "Invalid %s id.", strings.ToLower(entity))
	default:
		return err
	}
}

// invalidTextRepresentation is the SQLSTATE of a malformed uuid literal.
const invalidTextRepresentation = "22P02"

// sqlState returns the SQLSTATE carried by a driver error, or "".
func sqlState(err error) string {
	var se interface{ SQLState() string }
	if errors.As(err, &se) {
		return se.SQLState()
	}
	return ""
}
