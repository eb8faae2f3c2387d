// Package ui renders view-model state for the terminal.
package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"moob/composer"
	"moob/history"
	"moob/models"
	"moob/session"
	"moob/storage"
)

const (
	cardPreviewLength = 100
	dateLayout        = "02/01/2006 15:04"
)

// PlatformBadge renders a colored platform label.
func PlatformBadge(p models.Platform) string {
	color, ok := platformColors[string(p)]
	if !ok {
		color = ctpOverlay0
	}
	return badgeStyle.Background(color).Render(p.Label())
}

// DeliveryBadge renders the sent/failed marker of a message.
func DeliveryBadge(sent bool) string {
	if sent {
		return badgeStyle.Background(ctpGreen).Render("sent")
	}
	return badgeStyle.Background(ctpRed).Render("failed")
}

// CacheBadge renders where the last page came from.
func CacheBadge(cache *models.CacheMeta) string {
	if cache == nil {
		return ""
	}
	if cache.Hit {
		label := "cache"
		if cache.TTL != "" {
			label += " · ttl " + cache.TTL
		}
		return badgeStyle.Background(ctpTeal).Render(label)
	}
	return badgeStyle.Background(ctpPeach).Render("database")
}

// Truncate shortens content to max characters, appending "..." when cut.
func Truncate(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}

// FormatDate renders a timestamp in local time as dd/mm/yyyy hh:mm.
func FormatDate(t time.Time) string {
	return t.Local().Format(dateLayout)
}

// MessageCard renders one sent message.
func MessageCard(msg models.Message) string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		PlatformBadge(msg.Platform), " ", DeliveryBadge(msg.Sent), "  ",
		mutedStyle.Render(FormatDate(msg.CreatedAt)),
	)

	lines := []string{
		header,
		Truncate(msg.Content, cardPreviewLength),
		labelStyle.Render("recipients: ") + fmt.Sprint(len(msg.Recipients)),
	}
	if msg.FileURL != nil && *msg.FileURL != "" {
		lines = append(lines, labelStyle.Render("file: ")+linkStyle.Render(*msg.FileURL))
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

// SentPage renders the sent-messages view.
func SentPage(st history.State) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sent messages"))
	b.WriteString("\n")

	if st.Error != "" {
		b.WriteString(errorStyle.Render(st.Error))
		b.WriteString("\n")
		return b.String()
	}
	if st.IsLoading {
		b.WriteString(mutedStyle.Render("loading..."))
		b.WriteString("\n")
		return b.String()
	}

	if st.Pagination != nil {
		meta := st.Pagination
		summary := fmt.Sprintf("page %d of %d · %d total", meta.CurrentPage, max(meta.TotalPages, 1), meta.Total)
		b.WriteString(labelStyle.Render(summary))
		if badge := CacheBadge(st.Cache); badge != "" {
			b.WriteString("  ")
			b.WriteString(badge)
		}
		b.WriteString("\n")
	}

	if len(st.Messages) == 0 {
		b.WriteString(mutedStyle.Render("no messages sent yet"))
		b.WriteString("\n")
		return b.String()
	}

	for _, msg := range st.Messages {
		b.WriteString(MessageCard(msg))
		b.WriteString("\n")
	}

	if st.Pagination != nil {
		var hints []string
		if st.Pagination.HasPreviousPage {
			hints = append(hints, fmt.Sprintf("previous: -offset %d", max(st.Offset-st.Limit, 0)))
		}
		if st.Pagination.HasNextPage {
			hints = append(hints, fmt.Sprintf("next: -offset %d", st.Offset+st.Limit))
		}
		if len(hints) > 0 {
			b.WriteString(mutedStyle.Render(strings.Join(hints, "   ")))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Stats renders the statistics view.
func Stats(st history.StatsState) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Statistics"))
	b.WriteString("\n")

	if st.Error != "" {
		b.WriteString(errorStyle.Render(st.Error))
		b.WriteString("\n")
		return b.String()
	}
	if st.Statistics == nil {
		b.WriteString(mutedStyle.Render("no statistics loaded"))
		b.WriteString("\n")
		return b.String()
	}

	stats := st.Statistics
	fmt.Fprintf(&b, "%s %d   %s %d   %s %d\n",
		labelStyle.Render("total"), stats.Total,
		labelStyle.Render("sent"), stats.Sent,
		labelStyle.Render("failed"), stats.Failed,
	)

	platforms := make([]models.Platform, 0, len(stats.ByPlatform))
	seen := make(map[models.Platform]bool)
	for _, p := range models.Platforms {
		platforms = append(platforms, p)
		seen[p] = true
	}
	extra := make([]models.Platform, 0)
	for p := range stats.ByPlatform {
		if !seen[p] {
			extra = append(extra, p)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	platforms = append(platforms, extra...)

	for _, p := range platforms {
		fmt.Fprintf(&b, "%s %d\n", PlatformBadge(p), stats.ByPlatform[p])
	}
	return b.String()
}

// Journal renders locally recorded submissions.
func Journal(entries []storage.Submission) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Local submission journal"))
	b.WriteString("\n")

	if len(entries) == 0 {
		b.WriteString(mutedStyle.Render("nothing recorded yet"))
		b.WriteString("\n")
		return b.String()
	}

	for _, entry := range entries {
		status := successStyle.Render(entry.Status)
		if entry.Status == storage.SubmissionStatusFailed {
			status = errorStyle.Render(entry.Status)
		}
		line := fmt.Sprintf("%s %s %s %s · %d recipient(s)",
			mutedStyle.Render(FormatDate(time.UnixMilli(entry.SubmittedAt))),
			PlatformBadge(models.Platform(entry.Platform)),
			status,
			Truncate(entry.ContentPreview, 40),
			entry.RecipientCount,
		)
		if entry.FileName != nil {
			line += " · " + *entry.FileName
		}
		if entry.ErrorMessage != nil {
			line += " · " + errorStyle.Render(*entry.ErrorMessage)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// Session renders who is logged in.
func Session(st session.State) string {
	if st.Error != "" {
		return errorStyle.Render(st.Error)
	}
	if !st.IsAuthenticated || st.User == nil {
		return mutedStyle.Render("not logged in")
	}
	return fmt.Sprintf("%s %s %s",
		successStyle.Render("logged in as"),
		st.User.Username,
		mutedStyle.Render("<"+st.User.Email+">"),
	)
}

// ComposerStatus renders the composer submission status.
func ComposerStatus(st composer.Status) string {
	switch st.Phase {
	case composer.PhaseSubmitting:
		return lipgloss.NewStyle().Foreground(ctpYellow).Render("sending...")
	case composer.PhaseSucceeded:
		return successStyle.Render(st.Message)
	case composer.PhaseFailed:
		return errorStyle.Render(st.Message)
	default:
		return ""
	}
}
