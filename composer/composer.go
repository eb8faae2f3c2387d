// Package composer implements the message composer view-model: the draft,
// its validation, attachment handling and submission.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"moob/api"
	"moob/logger"
	"moob/models"
	"moob/nav"
	"moob/storage"
)

const (
	// MaxContentLength is the content limit in characters.
	MaxContentLength = 5000
	// DefaultMaxFileSizeBytes is used when Options leaves the limit unset.
	DefaultMaxFileSizeBytes = 10 * 1024 * 1024
	// DefaultRedirectDelay is the pause between a successful send and the
	// navigation to the sent-messages view.
	DefaultRedirectDelay = 2 * time.Second

	msgSelectPlatform   = "select a platform"
	msgContentRequired  = "message content is required"
	msgContentTooLong   = "message content cannot exceed 5000 characters"
	msgNoRecipients     = "add at least one recipient"
	msgUnsupportedMedia = "file type %s is not supported"
	msgFileTooLarge     = "file cannot exceed %d MB"
	msgSendSucceeded    = "message sent successfully"
	msgSendFailed       = "failed to send message"
)

var (
	// ErrValidation wraps every local draft or attachment rejection.
	ErrValidation = errors.New("validation failed")
	// ErrBusy is returned by Submit while a previous submission is in flight.
	ErrBusy = errors.New("submission already in progress")
)

// Phase is the submission state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Status pairs a phase with its single display message. Succeeded carries
// the success text, Failed the error text, the others nothing.
type Status struct {
	Phase   Phase
	Message string
}

// Draft is the message being composed.
type Draft struct {
	Platform       models.Platform
	Content        string
	RecipientsText string
	File           *Attachment
}

// Recipients parses RecipientsText.
func (d Draft) Recipients() []string {
	return ParseRecipients(d.RecipientsText)
}

func defaultDraft() Draft {
	return Draft{Platform: models.Platforms[0]}
}

// Sender delivers a composed message.
type Sender interface {
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.SendMessageResponse, error)
}

// Journal records submission outcomes locally.
type Journal interface {
	RecordSubmission(submission storage.Submission) error
}

// Options configures a Composer.
type Options struct {
	Sender            Sender
	Navigator         nav.Navigator
	Journal           Journal
	Logger            *logrus.Entry
	MaxFileSizeBytes  int64
	AllowedMediaTypes []string
	RedirectDelay     time.Duration
}

// Composer is the composer view-model. It is safe for concurrent use.
type Composer struct {
	sender        Sender
	navigator     nav.Navigator
	journal       Journal
	log           *logrus.Entry
	maxFileBytes  int64
	allowedTypes  []string
	redirectDelay time.Duration

	mu         sync.Mutex
	draft      Draft
	preview    string
	previewGen uint64
	status     Status
	redirect   *time.Timer
}

// New builds a composer with a default draft.
func New(opts Options) (*Composer, error) {
	if opts.Sender == nil {
		return nil, errors.New("sender is required")
	}
	maxBytes := opts.MaxFileSizeBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileSizeBytes
	}
	delay := opts.RedirectDelay
	if delay <= 0 {
		delay = DefaultRedirectDelay
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &Composer{
		sender:        opts.Sender,
		navigator:     opts.Navigator,
		journal:       opts.Journal,
		log:           log,
		maxFileBytes:  maxBytes,
		allowedTypes:  append([]string(nil), opts.AllowedMediaTypes...),
		redirectDelay: delay,
		draft:         defaultDraft(),
	}, nil
}

// Draft returns a copy of the current draft.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Status returns the submission status.
func (c *Composer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Preview returns the image preview data URL, or "" when there is none yet.
func (c *Composer) Preview() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview
}

// SetPlatform sets the target platform.
func (c *Composer) SetPlatform(p models.Platform) {
	c.mu.Lock()
	c.draft.Platform = p
	c.mu.Unlock()
}

// SetContent sets the message body.
func (c *Composer) SetContent(content string) {
	c.mu.Lock()
	c.draft.Content = content
	c.mu.Unlock()
}

// SetRecipientsText sets the raw recipients text.
func (c *Composer) SetRecipientsText(text string) {
	c.mu.Lock()
	c.draft.RecipientsText = text
	c.mu.Unlock()
}

// AttachFile replaces the attachment. An oversized or unsupported file is
// rejected and the previous attachment is kept. Image previews are built in
// the background.
func (c *Composer) AttachFile(att *Attachment) error {
	if att == nil {
		return fmt.Errorf("%w: no file", ErrValidation)
	}

	if len(c.allowedTypes) > 0 && !c.acceptsMediaType(att.MediaType) {
		return c.fail(fmt.Sprintf(msgUnsupportedMedia, att.MediaType))
	}
	if att.Size() > c.maxFileBytes {
		return c.fail(fmt.Sprintf(msgFileTooLarge, c.maxFileBytes/(1024*1024)))
	}

	c.mu.Lock()
	c.draft.File = att
	c.preview = ""
	c.previewGen++
	gen := c.previewGen
	if c.status.Phase == PhaseFailed {
		c.status = Status{}
	}
	c.mu.Unlock()

	if att.IsImage() {
		go c.buildPreview(att, gen)
	}
	return nil
}

// RemoveFile clears the attachment and its preview.
func (c *Composer) RemoveFile() {
	c.mu.Lock()
	c.draft.File = nil
	c.preview = ""
	c.previewGen++
	c.mu.Unlock()
}

// Validate checks the draft and records the first failure as the status.
func (c *Composer) Validate() error {
	c.mu.Lock()
	draft := c.draft
	c.mu.Unlock()

	if msg := validateDraft(draft); msg != "" {
		return c.fail(msg)
	}
	return nil
}

// Submit validates and sends the draft. On success the draft is reset and
// the navigator is sent to the sent-messages view after the redirect delay.
// The returned error is also reflected in Status.
func (c *Composer) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.status.Phase == PhaseSubmitting {
		c.mu.Unlock()
		return ErrBusy
	}
	draft := c.draft
	c.mu.Unlock()

	if msg := validateDraft(draft); msg != "" {
		return c.fail(msg)
	}

	c.mu.Lock()
	c.status = Status{Phase: PhaseSubmitting}
	c.mu.Unlock()

	req := models.SendMessageRequest{
		Platform:   draft.Platform,
		Content:    draft.Content,
		Recipients: draft.Recipients(),
	}
	if draft.File != nil {
		req.File = &models.FilePart{
			Name:      draft.File.Name,
			MediaType: draft.File.MediaType,
			Data:      draft.File.Data,
		}
	}

	resp, err := c.sender.SendMessage(ctx, req)
	if err != nil {
		msg := api.Message(err, msgSendFailed)
		c.mu.Lock()
		c.status = Status{Phase: PhaseFailed, Message: msg}
		c.mu.Unlock()
		c.record(req, storage.SubmissionStatusFailed, "", msg)
		c.log.WithError(err).Warn("send message failed")
		return fmt.Errorf("send message: %w", err)
	}

	c.mu.Lock()
	c.status = Status{Phase: PhaseSucceeded, Message: msgSendSucceeded}
	c.draft = defaultDraft()
	c.preview = ""
	c.previewGen++
	c.scheduleRedirectLocked()
	c.mu.Unlock()

	c.record(req, storage.SubmissionStatusSent, resp.Data.ID, "")
	c.log.WithFields(logrus.Fields{
		"message_id": resp.Data.ID,
		"platform":   req.Platform,
		"recipients": len(req.Recipients),
	}).Info("message sent")
	return nil
}

// Close cancels a pending redirect.
func (c *Composer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.redirect != nil {
		c.redirect.Stop()
		c.redirect = nil
	}
}

func validateDraft(d Draft) string {
	switch {
	case !d.Platform.Valid():
		return msgSelectPlatform
	case strings.TrimSpace(d.Content) == "":
		return msgContentRequired
	case utf8.RuneCountInString(d.Content) > MaxContentLength:
		return msgContentTooLong
	case len(d.Recipients()) == 0:
		return msgNoRecipients
	default:
		return ""
	}
}

func (c *Composer) fail(msg string) error {
	c.mu.Lock()
	c.status = Status{Phase: PhaseFailed, Message: msg}
	c.mu.Unlock()
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func (c *Composer) acceptsMediaType(mediaType string) bool {
	for _, allowed := range c.allowedTypes {
		if strings.EqualFold(allowed, strings.TrimSpace(mediaType)) {
			return true
		}
	}
	return false
}

func (c *Composer) buildPreview(att *Attachment, gen uint64) {
	preview := dataURL(att)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previewGen == gen {
		c.preview = preview
	}
}

func (c *Composer) scheduleRedirectLocked() {
	if c.navigator == nil {
		return
	}
	if c.redirect != nil {
		c.redirect.Stop()
	}
	navigator := c.navigator
	c.redirect = time.AfterFunc(c.redirectDelay, func() {
		navigator.Navigate(nav.RouteSentMessages)
	})
}

func (c *Composer) record(req models.SendMessageRequest, status, remoteID, errMsg string) {
	if c.journal == nil {
		return
	}

	submission := storage.Submission{
		SubmissionID:   uuid.NewString(),
		Platform:       string(req.Platform),
		ContentPreview: req.Content,
		RecipientCount: len(req.Recipients),
		Status:         status,
	}
	if req.File != nil {
		name := req.File.Name
		submission.FileName = &name
	}
	if remoteID != "" {
		submission.RemoteMessageID = &remoteID
	}
	if errMsg != "" {
		submission.ErrorMessage = &errMsg
	}

	if err := c.journal.RecordSubmission(submission); err != nil {
		c.log.WithError(err).Warn("record submission")
	}
}
