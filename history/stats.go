package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"moob/api"
	"moob/models"
)

const msgStatsFailed = "failed to load statistics"

// StatsFetcher loads the aggregate statistics.
type StatsFetcher interface {
	Stats(ctx context.Context) (*models.MessageStatsResponse, error)
}

// StatsState is a snapshot of the statistics view.
type StatsState struct {
	User       *models.Sender
	Statistics *models.Statistics
	IsLoading  bool
	Error      string
}

// StatsView is the dashboard statistics view-model.
type StatsView struct {
	fetcher StatsFetcher

	mu         sync.Mutex
	generation uint64
	state      StatsState
}

// NewStatsView builds an empty statistics view.
func NewStatsView(fetcher StatsFetcher) (*StatsView, error) {
	if fetcher == nil {
		return nil, errors.New("stats fetcher is required")
	}
	return &StatsView{fetcher: fetcher}, nil
}

// State returns a copy of the view state.
func (v *StatsView) State() StatsState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Fetch loads the statistics.
func (v *StatsView) Fetch(ctx context.Context) error {
	v.mu.Lock()
	v.generation++
	gen := v.generation
	v.state.IsLoading = true
	v.state.Error = ""
	v.mu.Unlock()

	resp, err := v.fetcher.Stats(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		return ErrSuperseded
	}
	v.state.IsLoading = false

	if err != nil {
		v.state.Error = api.Message(err, msgStatsFailed)
		return fmt.Errorf("fetch statistics: %w", err)
	}

	user := resp.Data.User
	stats := resp.Data.Statistics
	v.state.User = &user
	v.state.Statistics = &stats
	return nil
}
