package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// driverName is go-sqlite3 with unicode_lower registered on every connection.
// SQLite's built-in LOWER only folds ASCII.
const driverName = "sqlite3_library"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("unicode_lower", strings.ToLower, true)
		},
	})
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Database is the persistence gateway shared by every store. It owns exactly
// one SQLite connection for the lifetime of the process.
type Database struct {
	db     *sqlx.DB
	logger *slog.Logger

	defaultCategoryID int64

	addBookStmt     *sqlx.Stmt
	addMemberStmt   *sqlx.Stmt
	addEmployeeStmt *sqlx.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, guarantees the default category and prepares common statements.
// A nil logger falls back to slog.Default().
func NewDatabase(dbPath string, logger *slog.Logger) (*Database, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: statements and transactions are strictly sequential.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db, logger: logger}
	if err := database.ensureDefaultCategory(); err != nil {
		db.Close()
		return nil, err
	}
	if err := database.prepareStatements(); err != nil {
		database.Close()
		return nil, err
	}
	logger.Debug("database ready", "path", dbPath, "default_category_id", database.defaultCategoryID)
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	for _, stmt := range []*sqlx.Stmt{d.addBookStmt, d.addMemberStmt, d.addEmployeeStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return d.db.Close()
}

// DefaultCategoryID is the id of the fallback category created at
// initialization. It stays valid if the category is renamed.
func (d *Database) DefaultCategoryID() int64 { return d.defaultCategoryID }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS category (
            category_id INTEGER PRIMARY KEY AUTOINCREMENT,
            category_name VARCHAR(50) NOT NULL UNIQUE,
            description TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS book (
            book_id INTEGER PRIMARY KEY AUTOINCREMENT,
            title VARCHAR(100) NOT NULL,
            author VARCHAR(100) NOT NULL,
            category_id INTEGER REFERENCES category(category_id),
            isbn VARCHAR(20) UNIQUE,
            publisher VARCHAR(100),
            publication_year INTEGER,
            language VARCHAR(20),
            pages INTEGER,
            quantity_total INTEGER NOT NULL,
            quantity_available INTEGER NOT NULL,
            shelf_location VARCHAR(20),
            CHECK (quantity_available >= 0 AND quantity_available <= quantity_total)
        );`,
		`CREATE TABLE IF NOT EXISTS member (
            member_id INTEGER PRIMARY KEY AUTOINCREMENT,
            name VARCHAR(50) NOT NULL,
            address TEXT,
            contact_number VARCHAR(20) NOT NULL,
            email VARCHAR(50),
            id_proof_type VARCHAR(20),
            id_proof_number VARCHAR(30) UNIQUE,
            membership_date VARCHAR(20),
            active_status VARCHAR(10) NOT NULL DEFAULT 'Active'
        );`,
		`CREATE TABLE IF NOT EXISTS employee (
            e_id INTEGER PRIMARY KEY AUTOINCREMENT,
            name VARCHAR(30) NOT NULL,
            phone VARCHAR(40) NOT NULL,
            salary VARCHAR(20) NOT NULL,
            role VARCHAR(15) NOT NULL,
            age INTEGER NOT NULL,
            working_from VARCHAR(12) NOT NULL,
            year_worked VARCHAR(15)
        );`,
		`CREATE TABLE IF NOT EXISTS borrow (
            borrow_id INTEGER PRIMARY KEY AUTOINCREMENT,
            borrow_ref VARCHAR(26) NOT NULL UNIQUE,
            member_id INTEGER NOT NULL REFERENCES member(member_id),
            book_id INTEGER NOT NULL REFERENCES book(book_id),
            borrow_date VARCHAR(20) NOT NULL,
            due_date VARCHAR(20) NOT NULL,
            return_date VARCHAR(20),
            fine_amount REAL NOT NULL DEFAULT 0.0,
            borrow_status VARCHAR(15) NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_borrow_status ON borrow(borrow_status);`,
		`CREATE INDEX IF NOT EXISTS idx_book_category ON book(category_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

const (
	defaultCategoryName        = "General"
	defaultCategoryDescription = "Default category"
	metaDefaultCategoryKey     = "default_category_id"
)

// ensureDefaultCategory creates the "General" category on first run and pins
// its id in meta. Later runs read the pinned id, so renaming the category does
// not lose the fallback.
func (d *Database) ensureDefaultCategory() error {
	var raw string
	err := d.db.Get(&raw, `SELECT value FROM meta WHERE key=?`, metaDefaultCategoryKey)
	if err == nil {
		id, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			return fmt.Errorf("corrupt %s %q: %w", metaDefaultCategoryKey, raw, convErr)
		}
		d.defaultCategoryID = id
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read default category: %w", err)
	}

	tx, err := d.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO category(category_name, description) VALUES(?, ?)
            ON CONFLICT(category_name) DO NOTHING`, defaultCategoryName, defaultCategoryDescription); err != nil {
		return fmt.Errorf("create default category: %w", err)
	}
	var id int64
	if err := tx.Get(&id, `SELECT category_id FROM category WHERE category_name=?`, defaultCategoryName); err != nil {
		return fmt.Errorf("resolve default category: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES(?,?)`, metaDefaultCategoryKey, strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("pin default category: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	d.defaultCategoryID = id
	return nil
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addBookStmt, err = d.db.Preparex(`INSERT INTO book(title, author, category_id, isbn, publisher,
            publication_year, language, pages, quantity_total, quantity_available, shelf_location)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return err
	}
	if d.addMemberStmt, err = d.db.Preparex(`INSERT INTO member(name, address, contact_number, email,
            id_proof_type, id_proof_number, membership_date, active_status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return err
	}
	if d.addEmployeeStmt, err = d.db.Preparex(`INSERT INTO employee(name, phone, salary, role, age,
            working_from, year_worked)
        VALUES (?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Gateway
// ---------------------------------------------------------------------------

// Exec runs a statement that returns no rows.
func (d *Database) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	d.logger.Debug("exec", "query", query, "args", args)
	return d.db.ExecContext(ctx, query, args...)
}

// Select scans every row of query into dest, a pointer to a slice.
func (d *Database) Select(ctx context.Context, dest any, query string, args ...any) error {
	d.logger.Debug("select", "query", query, "args", args)
	return d.db.SelectContext(ctx, dest, query, args...)
}

// Get scans a single row into dest. It returns sql.ErrNoRows when nothing
// matches.
func (d *Database) Get(ctx context.Context, dest any, query string, args ...any) error {
	d.logger.Debug("get", "query", query, "args", args)
	return d.db.GetContext(ctx, dest, query, args...)
}
