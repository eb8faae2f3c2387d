// Package history implements the sent-messages view-model and the
// statistics view-model.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"moob/api"
	"moob/logger"
	"moob/models"
)

const (
	// DefaultLimit is the page size when Options leaves it unset.
	DefaultLimit = 10

	msgLoadFailed = "failed to load sent messages"
)

// ErrSuperseded is returned by a fetch whose response arrived after a newer
// fetch was issued. Its result is discarded.
var ErrSuperseded = errors.New("fetch superseded by a newer request")

// Fetcher loads one page of sent messages.
type Fetcher interface {
	SentMessages(ctx context.Context, offset, limit int) (*models.SentMessagesResponse, error)
}

// State is a snapshot of the pager.
type State struct {
	Offset     int
	Limit      int
	User       *models.Sender
	Messages   []models.Message
	Pagination *models.PaginationMeta
	Cache      *models.CacheMeta
	IsLoading  bool
	Error      string
}

// Options configures a Pager.
type Options struct {
	Fetcher Fetcher
	Limit   int
	Logger  *logrus.Entry
}

// Pager pages through the user's sent messages. The limit is fixed for the
// lifetime of a Pager; changing the offset fetches the new page.
type Pager struct {
	fetcher Fetcher
	limit   int
	log     *logrus.Entry

	mu         sync.Mutex
	offset     int
	generation uint64
	user       *models.Sender
	messages   []models.Message
	pagination *models.PaginationMeta
	cache      *models.CacheMeta
	loading    bool
	errMsg     string
}

// NewPager builds a pager at offset 0. Nothing is fetched until Fetch.
func NewPager(opts Options) (*Pager, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Pager{fetcher: opts.Fetcher, limit: limit, log: log}, nil
}

// State returns a copy of the pager state.
func (p *Pager) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := State{
		Offset:    p.offset,
		Limit:     p.limit,
		Messages:  append([]models.Message(nil), p.messages...),
		IsLoading: p.loading,
		Error:     p.errMsg,
	}
	if p.user != nil {
		user := *p.user
		st.User = &user
	}
	if p.pagination != nil {
		meta := *p.pagination
		st.Pagination = &meta
	}
	if p.cache != nil {
		cache := *p.cache
		st.Cache = &cache
	}
	return st
}

// Fetch loads the page at the current offset.
func (p *Pager) Fetch(ctx context.Context) error {
	p.mu.Lock()
	offset := p.offset
	p.mu.Unlock()
	return p.fetchAt(ctx, offset)
}

// Refetch reloads the current page without moving.
func (p *Pager) Refetch(ctx context.Context) error {
	return p.Fetch(ctx)
}

// GoTo moves to offset, floored at 0, and fetches that page.
func (p *Pager) GoTo(ctx context.Context, offset int) error {
	if offset < 0 {
		offset = 0
	}
	return p.fetchAt(ctx, offset)
}

// NextPage advances by one page when the last response reported one.
// Otherwise it does nothing.
func (p *Pager) NextPage(ctx context.Context) error {
	p.mu.Lock()
	if p.pagination == nil || !p.pagination.HasNextPage {
		p.mu.Unlock()
		return nil
	}
	next := p.offset + p.limit
	p.mu.Unlock()

	return p.fetchAt(ctx, next)
}

// PreviousPage steps back one page, floored at offset 0, when the last
// response reported a previous page. Otherwise it does nothing.
func (p *Pager) PreviousPage(ctx context.Context) error {
	p.mu.Lock()
	if p.pagination == nil || !p.pagination.HasPreviousPage {
		p.mu.Unlock()
		return nil
	}
	prev := p.offset - p.limit
	if prev < 0 {
		prev = 0
	}
	if prev == p.offset {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.fetchAt(ctx, prev)
}

func (p *Pager) fetchAt(ctx context.Context, offset int) error {
	p.mu.Lock()
	p.offset = offset
	p.generation++
	gen := p.generation
	p.loading = true
	p.errMsg = ""
	p.mu.Unlock()

	resp, err := p.fetcher.SentMessages(ctx, offset, p.limit)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		p.log.WithFields(logrus.Fields{"offset": offset, "limit": p.limit}).Debug("discarding superseded page")
		return ErrSuperseded
	}
	p.loading = false

	if err != nil {
		p.errMsg = api.Message(err, msgLoadFailed)
		return fmt.Errorf("fetch sent messages at offset %d: %w", offset, err)
	}

	data := resp.Data
	user := data.User
	meta := data.Pagination
	cache := data.Cache
	p.user = &user
	p.messages = data.Messages
	p.pagination = &meta
	p.cache = &cache
	return nil
}
