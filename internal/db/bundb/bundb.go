// Package bundb is the bun-backed implementation of internal/db,
// supporting both Postgres and SQLite the way the teacher codebase
// does: one dialect-agnostic query layer, with driver-specific error
// translation isolated in errors.go.
package bundb

import (
	"database/sql"

	"github.com/federatedforum/fedcore/internal/cache"
	"github.com/federatedforum/fedcore/internal/db"
	"github.com/uptrace/bun"
)

// Dialect identifies which SQL dialect conn is speaking, so
// ProcessError knows which driver-specific error type to look for.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// Conn wraps a *bun.DB with dialect-aware error translation, mirroring
// the teacher's bundb connection wrapper.
type Conn struct {
	*bun.DB
	dialect Dialect
}

func WrapConn(db *bun.DB, dialect Dialect) *Conn {
	return &Conn{DB: db, dialect: dialect}
}

// ProcessError translates a raw driver error into a db sentinel where
// one applies (currently: unique-constraint violation -> ErrAlreadyExists),
// and maps sql.ErrNoRows to db.ErrNoEntries.
func (c *Conn) ProcessError(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return db.ErrNoEntries
	}
	switch c.dialect {
	case DialectPostgres:
		return processPostgresError(err)
	case DialectSQLite:
		return processSQLiteError(err)
	default:
		return err
	}
}

// Store is the concrete db.DB implementation: a Conn plus the actor/
// content caches that sit in front of it.
type Store struct {
	conn    *Conn
	actors  *cache.ActorCache
	content *cache.ContentCache
}

func New(conn *Conn, actors *cache.ActorCache, content *cache.ContentCache) *Store {
	return &Store{conn: conn, actors: actors, content: content}
}

var _ db.DB = (*Store)(nil)
