package models

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a delivery platform.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformSlack    Platform = "slack"
	PlatformDiscord  Platform = "discord"
	PlatformWhatsApp Platform = "whatsapp"
)

// Platforms lists every platform in display order. The first entry is the
// composer default.
var Platforms = []Platform{PlatformTelegram, PlatformSlack, PlatformDiscord, PlatformWhatsApp}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTelegram, PlatformSlack, PlatformDiscord, PlatformWhatsApp:
		return true
	default:
		return false
	}
}

// Label returns the human-readable platform name.
func (p Platform) Label() string {
	switch p {
	case PlatformTelegram:
		return "Telegram"
	case PlatformSlack:
		return "Slack"
	case PlatformDiscord:
		return "Discord"
	case PlatformWhatsApp:
		return "WhatsApp"
	default:
		return string(p)
	}
}

// ParsePlatform accepts a platform name in any case.
func ParsePlatform(raw string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", raw)
	}
	return p, nil
}

// Message is one sent-message record. It is owned by the backend.
type Message struct {
	ID         string    `json:"id"`
	Platform   Platform  `json:"platform"`
	Recipients []string  `json:"recipients"`
	Content    string    `json:"content"`
	FileURL    *string   `json:"fileUrl"`
	Sent       bool      `json:"sent"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Sender identifies who sent a message.
type Sender struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// MessageWithSender is the record returned by POST /messages/send.
type MessageWithSender struct {
	Message
	SentBy Sender `json:"sentBy"`
}

// PaginationMeta is derived by the backend from offset, limit and total.
type PaginationMeta struct {
	Total           int  `json:"total"`
	Count           int  `json:"count"`
	Limit           int  `json:"limit"`
	Offset          int  `json:"offset"`
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// CacheMeta describes whether a page came from the backend cache.
type CacheMeta struct {
	Hit    bool   `json:"hit"`
	TTL    string `json:"ttl"`
	Source string `json:"source"`
}

// SendMessageRequest is the composer payload sent as multipart form data.
type SendMessageRequest struct {
	Platform   Platform
	Content    string
	Recipients []string
	File       *FilePart
}

// FilePart is an attachment with its declared media type.
type FilePart struct {
	Name      string
	MediaType string
	Data      []byte
}

// SendMessageResponse is the POST /messages/send body.
type SendMessageResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    MessageWithSender `json:"data"`
}

// SentMessagesPage is the data block of GET /messages/sent.
type SentMessagesPage struct {
	User       Sender         `json:"user"`
	Messages   []Message      `json:"messages"`
	Pagination PaginationMeta `json:"pagination"`
	Cache      CacheMeta      `json:"cache"`
}

// SentMessagesResponse is the GET /messages/sent body.
type SentMessagesResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    SentMessagesPage `json:"data"`
}

// Statistics aggregates the user's sent messages.
type Statistics struct {
	Total      int              `json:"total"`
	Sent       int              `json:"sent"`
	Failed     int              `json:"failed"`
	ByPlatform map[Platform]int `json:"byPlatform"`
}

// StatsData is the data block of GET /messages/stats.
type StatsData struct {
	User       Sender     `json:"user"`
	Statistics Statistics `json:"statistics"`
}

// MessageStatsResponse is the GET /messages/stats body.
type MessageStatsResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    StatsData `json:"data"`
}
