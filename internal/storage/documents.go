package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"turnitinbot/internal/models"
)

var (
	// ErrUnsupportedType is returned for uploads outside the Word/PDF allow-list.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrInvalidName is returned when the original file name cannot be used safely.
	ErrInvalidName = errors.New("invalid document name")
)

// MIME types accepted for storage: legacy Word, OOXML Word, PDF.
var allowedMimeTypes = map[string]struct{}{
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/pdf": {},
}

// AllowedMimeType reports whether the declared type is storable.
func AllowedMimeType(mimeType string) bool {
	_, ok := allowedMimeTypes[strings.ToLower(strings.TrimSpace(mimeType))]
	return ok
}

// DocumentStore persists accepted uploads under ids allocated from the
// durable counter, with the bytes on disk next to the metadata row.
type DocumentStore struct {
	db        *sql.DB
	uploadDir string
}

func NewDocumentStore(db *sql.DB, uploadDir string) (*DocumentStore, error) {
	if uploadDir == "" {
		return nil, errors.New("upload dir required")
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DocumentStore{db: db, uploadDir: uploadDir}, nil
}

// Save validates the upload, allocates the next document id and writes bytes
// plus metadata. The counter increment, the file write and the metadata row
// commit or roll back together, so ids stay gapless even when a write fails
// halfway through or several uploads race.
func (s *DocumentStore) Save(ctx context.Context, userID int64, raw []byte, originalName, mimeType string) (*models.StoredDocument, error) {
	if !AllowedMimeType(mimeType) {
		return nil, ErrUnsupportedType
	}
	name, err := sanitizeName(originalName)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	// Row-level write lock on the counter serializes concurrent savers.
	if _, err := tx.ExecContext(ctx, `UPDATE upload_counter SET value = value + 1 WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("advance upload counter: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM upload_counter WHERE id = 1`).Scan(&id); err != nil {
		return nil, fmt.Errorf("read upload counter: %w", err)
	}

	storedPath := filepath.Join(s.uploadDir, fmt.Sprintf("%d_%s", id, name))
	if err := writeFile(storedPath, raw); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &models.StoredDocument{
		ID:           id,
		UserID:       userID,
		OriginalName: name,
		StoredPath:   storedPath,
		MimeType:     mimeType,
		SizeBytes:    int64(len(raw)),
		CreatedAt:    now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, original_name, stored_path, mime_type, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.OriginalName, doc.StoredPath, doc.MimeType, doc.SizeBytes, doc.CreatedAt,
	); err != nil {
		_ = os.Remove(storedPath)
		return nil, fmt.Errorf("record document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		_ = os.Remove(storedPath)
		return nil, fmt.Errorf("commit document: %w", err)
	}
	return doc, nil
}

// GetByID returns one stored document.
func (s *DocumentStore) GetByID(ctx context.Context, id int64) (*models.StoredDocument, error) {
	var doc models.StoredDocument
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, original_name, stored_path, mime_type, size_bytes, created_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.UserID, &doc.OriginalName, &doc.StoredPath, &doc.MimeType, &doc.SizeBytes, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	return &doc, nil
}

// List returns stored documents newest first, capped at limit.
func (s *DocumentStore) List(ctx context.Context, limit int) ([]models.StoredDocument, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, original_name, stored_path, mime_type, size_bytes, created_at
		 FROM documents ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.StoredDocument
	for rows.Next() {
		var doc models.StoredDocument
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.OriginalName, &doc.StoredPath, &doc.MimeType, &doc.SizeBytes, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// sanitizeName reduces the client-supplied name to a safe base name.
func sanitizeName(originalName string) (string, error) {
	name := strings.TrimSpace(originalName)
	if name == "" {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	name = filepath.Base(name)
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return name, nil
}

// writeFile writes bytes with an explicit flush so the data is durable
// before the enclosing transaction commits.
func writeFile(path string, raw []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
