package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates a requested row does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

const (
	// SubmissionStatusSent marks a submission the backend accepted.
	SubmissionStatusSent = "sent"
	// SubmissionStatusFailed marks a submission that returned an error.
	SubmissionStatusFailed = "failed"
)

const (
	credentialBearerToken = "bearer_token"
	contentPreviewLength  = 100
)

// Submission is one locally journaled composer submission.
type Submission struct {
	SubmissionID    string
	Platform        string
	ContentPreview  string
	RecipientCount  int
	FileName        *string
	Status          string
	RemoteMessageID *string
	ErrorMessage    *string
	SubmittedAt     int64
}

type scanner interface {
	Scan(dest ...any) error
}

func validatePlatform(platform string) error {
	switch platform {
	case "telegram", "slack", "discord", "whatsapp":
		return nil
	default:
		return fmt.Errorf("invalid platform %q", platform)
	}
}

func validateSubmissionStatus(status string) error {
	switch status {
	case SubmissionStatusSent, SubmissionStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid submission status %q", status)
	}
}

// PreviewContent truncates content to the journal preview length, counting runes.
func PreviewContent(content string) string {
	runes := []rune(content)
	if len(runes) <= contentPreviewLength {
		return content
	}
	return string(runes[:contentPreviewLength]) + "..."
}

func nullString(ptr *string) sql.NullString {
	if ptr == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *ptr, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
