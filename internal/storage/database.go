package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"turnitinbot/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present. The upload_counter row is
// the single durable source of document ids; every id ever handed out comes
// from incrementing it inside a transaction.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS upload_counter (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				value INTEGER NOT NULL
			)`,
			`INSERT OR IGNORE INTO upload_counter (id, value) VALUES (1, 0)`,
			`CREATE TABLE IF NOT EXISTS documents (
				id INTEGER PRIMARY KEY,
				user_id INTEGER NOT NULL,
				original_name TEXT NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type TEXT NOT NULL,
				size_bytes INTEGER NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id)`,
			`CREATE TABLE IF NOT EXISTS submissions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				document_id INTEGER NOT NULL,
				user_id INTEGER NOT NULL,
				vendor_id TEXT NOT NULL DEFAULT '',
				report_url TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'pending',
				error TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY(document_id) REFERENCES documents(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_submissions_document ON submissions(document_id)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS upload_counter (
				id TINYINT UNSIGNED NOT NULL,
				value BIGINT UNSIGNED NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`INSERT IGNORE INTO upload_counter (id, value) VALUES (1, 0)`,
			`CREATE TABLE IF NOT EXISTS documents (
				id BIGINT UNSIGNED NOT NULL,
				user_id BIGINT NOT NULL,
				original_name VARCHAR(255) NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type VARCHAR(255) NOT NULL,
				size_bytes BIGINT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_documents_user (user_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS submissions (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				document_id BIGINT UNSIGNED NOT NULL,
				user_id BIGINT NOT NULL,
				vendor_id VARCHAR(255) NOT NULL DEFAULT '',
				report_url TEXT NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				error TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_submissions_document (document_id),
				CONSTRAINT fk_submissions_document FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
