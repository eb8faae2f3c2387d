package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// RecordSubmission inserts a journal row for one composer submission.
func (s *Store) RecordSubmission(submission Submission) error {
	if submission.SubmissionID == "" {
		return errors.New("submission_id is required")
	}
	if err := validatePlatform(submission.Platform); err != nil {
		return err
	}
	if err := validateSubmissionStatus(submission.Status); err != nil {
		return err
	}
	if submission.RecipientCount < 0 {
		return errors.New("recipient_count must be >= 0")
	}
	if submission.SubmittedAt == 0 {
		submission.SubmittedAt = nowUnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT INTO submissions (
			submission_id,
			platform,
			content_preview,
			recipient_count,
			file_name,
			status,
			remote_message_id,
			error_message,
			submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		submission.SubmissionID,
		submission.Platform,
		PreviewContent(submission.ContentPreview),
		submission.RecipientCount,
		nullString(submission.FileName),
		submission.Status,
		nullString(submission.RemoteMessageID),
		nullString(submission.ErrorMessage),
		submission.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission %q: %w", submission.SubmissionID, err)
	}

	return nil
}

// ListSubmissions returns journal rows, newest first.
func (s *Store) ListSubmissions(limit, offset int) ([]Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(
		`SELECT
			submission_id,
			platform,
			content_preview,
			recipient_count,
			file_name,
			status,
			remote_message_id,
			error_message,
			submitted_at
		FROM submissions
		ORDER BY submitted_at DESC, submission_id
		LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]Submission, 0)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		submissions = append(submissions, *submission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission rows: %w", err)
	}

	return submissions, nil
}

// GetSubmission fetches one journal row by ID.
func (s *Store) GetSubmission(submissionID string) (*Submission, error) {
	if submissionID == "" {
		return nil, errors.New("submission_id is required")
	}

	row := s.db.QueryRow(
		`SELECT
			submission_id,
			platform,
			content_preview,
			recipient_count,
			file_name,
			status,
			remote_message_id,
			error_message,
			submitted_at
		FROM submissions
		WHERE submission_id = ?`,
		submissionID,
	)

	submission, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get submission %q: %w", submissionID, err)
	}
	return submission, nil
}

// PruneSubmissions removes journal rows older than cutoff timestamp.
func (s *Store) PruneSubmissions(cutoffTimestamp int64) (int64, error) {
	if cutoffTimestamp <= 0 {
		return 0, errors.New("cutoff timestamp must be > 0")
	}

	res, err := s.db.Exec(`DELETE FROM submissions WHERE submitted_at < ?`, cutoffTimestamp)
	if err != nil {
		return 0, fmt.Errorf("prune submissions: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for submission prune: %w", err)
	}

	return rowsAffected, nil
}

func scanSubmission(row scanner) (*Submission, error) {
	var (
		submission      Submission
		fileName        sql.NullString
		remoteMessageID sql.NullString
		errorMessage    sql.NullString
	)

	if err := row.Scan(
		&submission.SubmissionID,
		&submission.Platform,
		&submission.ContentPreview,
		&submission.RecipientCount,
		&fileName,
		&submission.Status,
		&remoteMessageID,
		&errorMessage,
		&submission.SubmittedAt,
	); err != nil {
		return nil, err
	}

	submission.FileName = stringPtr(fileName)
	submission.RemoteMessageID = stringPtr(remoteMessageID)
	submission.ErrorMessage = stringPtr(errorMessage)

	return &submission, nil
}
