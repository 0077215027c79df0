package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn   *sql.DB
	dbType string
}

type Config struct {
	Type       string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SQLitePath string
}

func NewDB(config Config) (*DB, error) {
	var conn *sql.DB
	var err error

	switch config.Type {
	case "sqlite":
		conn, err = sql.Open("sqlite3", config.SQLitePath)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			config.Host, config.Port, config.User, config.Password, config.Name)
		conn, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if config.Type == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, dbType: config.Type}

	if err := db.createTables(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func (db *DB) createTables(ctx context.Context) error {
	timestampType := "DATETIME"
	if db.dbType == "postgres" {
		timestampType = "TIMESTAMPTZ"
	}

	query := `
	CREATE TABLE IF NOT EXISTS extraction_history (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		session_id TEXT,
		filename TEXT NOT NULL,
		template TEXT NOT NULL,
		outcome TEXT NOT NULL,
		fields_found INTEGER NOT NULL DEFAULT 0,
		fields_total INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at ` + timestampType + ` NOT NULL
	);
	`
	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return err
	}

	_, err := db.conn.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_extraction_history_created ON extraction_history (created_at)`)
	return err
}

// rebind rewrites ? placeholders to $n for postgres.
func (db *DB) rebind(query string) string {
	if db.dbType != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Type() string {
	return db.dbType
}
