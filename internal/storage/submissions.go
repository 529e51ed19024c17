package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"turnitinbot/internal/models"
)

// SubmissionStore records the lifecycle of vendor plagiarism checks.
type SubmissionStore struct {
	db *sql.DB
}

func NewSubmissionStore(db *sql.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

// Create inserts a pending submission for a stored document.
func (s *SubmissionStore) Create(ctx context.Context, documentID, userID int64, vendorID string) (*models.Submission, error) {
	if documentID <= 0 {
		return nil, errors.New("document id required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (document_id, user_id, vendor_id, report_url, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, '', ?, '', ?, ?)`,
		documentID, userID, vendorID, models.SubmissionPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("submission id: %w", err)
	}
	return &models.Submission{
		ID:         id,
		DocumentID: documentID,
		UserID:     userID,
		VendorID:   vendorID,
		Status:     models.SubmissionPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// MarkReady records the terminal success state with the report URL.
func (s *SubmissionStore) MarkReady(ctx context.Context, id int64, reportURL string) error {
	return s.finish(ctx, id, models.SubmissionReady, reportURL, "")
}

// MarkFailed records the terminal failure state with the reason.
func (s *SubmissionStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	return s.finish(ctx, id, models.SubmissionFailed, "", reason)
}

// finish only moves pending submissions; terminal ones stay immutable.
func (s *SubmissionStore) finish(ctx context.Context, id int64, status models.SubmissionStatus, reportURL, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, report_url = ?, error = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, reportURL, reason, time.Now().UTC(), id, models.SubmissionPending,
	)
	if err != nil {
		return fmt.Errorf("finish submission %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish submission %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("submission %d is not pending", id)
	}
	return nil
}

// GetByID returns one submission.
func (s *SubmissionStore) GetByID(ctx context.Context, id int64) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, user_id, vendor_id, report_url, status, error, created_at, updated_at
		 FROM submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.DocumentID, &sub.UserID, &sub.VendorID, &sub.ReportURL, &sub.Status, &sub.Error, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get submission %d: %w", id, err)
	}
	return &sub, nil
}

// ListByDocument returns all submissions for a document, newest first.
func (s *SubmissionStore) ListByDocument(ctx context.Context, documentID int64) ([]models.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, user_id, vendor_id, report_url, status, error, created_at, updated_at
		 FROM submissions WHERE document_id = ? ORDER BY id DESC`, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		var sub models.Submission
		if err := rows.Scan(&sub.ID, &sub.DocumentID, &sub.UserID, &sub.VendorID, &sub.ReportURL, &sub.Status, &sub.Error, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
