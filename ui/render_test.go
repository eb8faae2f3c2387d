package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"moob/composer"
	"moob/history"
	"moob/models"
	"moob/session"
	"moob/storage"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	long := strings.Repeat("ñ", 101)
	got := Truncate(long, 100)
	assert.Equal(t, strings.Repeat("ñ", 100)+"...", got)
}

func TestPlatformBadgeUsesLabel(t *testing.T) {
	assert.Contains(t, PlatformBadge(models.PlatformWhatsApp), "WhatsApp")
	assert.Contains(t, PlatformBadge(models.Platform("sms")), "sms")
}

func TestCacheBadge(t *testing.T) {
	assert.Empty(t, CacheBadge(nil))
	assert.Contains(t, CacheBadge(&models.CacheMeta{Hit: true, TTL: "60s"}), "cache")
	assert.Contains(t, CacheBadge(&models.CacheMeta{Hit: true, TTL: "60s"}), "60s")
	assert.Contains(t, CacheBadge(&models.CacheMeta{Hit: false}), "database")
}

func TestMessageCard(t *testing.T) {
	fileURL := "https://files.example/report.pdf"
	card := MessageCard(models.Message{
		Platform:   models.PlatformSlack,
		Recipients: []string{"#a", "#b"},
		Content:    strings.Repeat("x", 120),
		FileURL:    &fileURL,
		Sent:       false,
		CreatedAt:  time.Date(2024, 3, 9, 14, 5, 0, 0, time.Local),
	})

	assert.Contains(t, card, "Slack")
	assert.Contains(t, card, "failed")
	assert.Contains(t, card, "09/03/2024 14:05")
	assert.Contains(t, card, strings.Repeat("x", 100)+"...")
	assert.NotContains(t, card, strings.Repeat("x", 101))
	assert.Contains(t, card, "recipients: 2")
	assert.Contains(t, card, fileURL)
}

func TestSentPage(t *testing.T) {
	st := history.State{
		Offset: 10,
		Limit:  10,
		Messages: []models.Message{
			{Platform: models.PlatformTelegram, Content: "hello", Recipients: []string{"@a"}, Sent: true},
		},
		Pagination: &models.PaginationMeta{Total: 25, CurrentPage: 2, TotalPages: 3, HasNextPage: true, HasPreviousPage: true},
		Cache:      &models.CacheMeta{Hit: false, Source: "database"},
	}

	out := SentPage(st)
	assert.Contains(t, out, "page 2 of 3 · 25 total")
	assert.Contains(t, out, "database")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "previous: -offset 0")
	assert.Contains(t, out, "next: -offset 20")

	assert.Contains(t, SentPage(history.State{Error: "boom"}), "boom")
	assert.Contains(t, SentPage(history.State{Pagination: &models.PaginationMeta{CurrentPage: 1}}), "no messages sent yet")
}

func TestStats(t *testing.T) {
	out := Stats(history.StatsState{Statistics: &models.Statistics{
		Total:      3,
		Sent:       2,
		Failed:     1,
		ByPlatform: map[models.Platform]int{models.PlatformDiscord: 3},
	}})
	assert.Contains(t, out, "total 3")
	assert.Regexp(t, `Discord\s+3`, out)
	assert.Regexp(t, `Telegram\s+0`, out)
}

func TestJournal(t *testing.T) {
	errMsg := "recipient not found"
	out := Journal([]storage.Submission{{
		Platform:       "discord",
		ContentPreview: "deploy done",
		RecipientCount: 2,
		Status:         storage.SubmissionStatusFailed,
		ErrorMessage:   &errMsg,
		SubmittedAt:    time.Now().UnixMilli(),
	}})
	assert.Contains(t, out, "deploy done")
	assert.Contains(t, out, "2 recipient(s)")
	assert.Contains(t, out, errMsg)
	assert.Contains(t, Journal(nil), "nothing recorded yet")
}

func TestSessionAndComposerStatus(t *testing.T) {
	assert.Contains(t, Session(session.State{}), "not logged in")
	assert.Contains(t, Session(session.State{
		IsAuthenticated: true,
		Token:           "t",
		User:            &models.User{Username: "alice", Email: "alice@example.com"},
	}), "alice")

	assert.Empty(t, ComposerStatus(composer.Status{}))
	assert.Contains(t, ComposerStatus(composer.Status{Phase: composer.PhaseFailed, Message: "nope"}), "nope")
	assert.Contains(t, ComposerStatus(composer.Status{Phase: composer.PhaseSucceeded, Message: "ok"}), "ok")
}
