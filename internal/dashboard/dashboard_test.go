// ABOUTME: Tests for the dashboard loader and snapshot helpers
// ABOUTME: A fake fetcher checks parallel loading and fail-fast cancellation

package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvci/campus-assistant/internal/api"
)

type fakeFetcher struct {
	stats     *api.Stats
	statsErr  error
	items     []api.Announcement
	events    []api.CalendarEvent
	blockCal  bool
	calCancel chan struct{}
}

func (f *fakeFetcher) Stats(context.Context) (*api.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeFetcher) Announcements(context.Context) ([]api.Announcement, error) {
	return f.items, nil
}

func (f *fakeFetcher) Calendar(ctx context.Context) ([]api.CalendarEvent, error) {
	if f.blockCal {
		<-ctx.Done()
		close(f.calCancel)
		return nil, ctx.Err()
	}
	return f.events, nil
}

func TestLoad(t *testing.T) {
	f := &fakeFetcher{
		stats:  &api.Stats{OverallProgress: 65, CreditsEarned: 18, CreditsTotal: 30},
		items:  []api.Announcement{{ID: "1", Title: "Paiement des frais"}},
		events: []api.CalendarEvent{{ID: "fixed-1", Title: "Fin du Semestre 1", Start: "2025-01-20T00:00:00"}},
	}
	fixed := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	l := NewLoader(f, nil)
	l.now = func() time.Time { return fixed }

	snap, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 65, snap.Stats.OverallProgress)
	assert.Len(t, snap.Announcements, 1)
	assert.Len(t, snap.Calendar, 1)
	assert.Equal(t, fixed, snap.LoadedAt)
}

func TestLoad_FailureCancelsOthers(t *testing.T) {
	f := &fakeFetcher{
		statsErr:  &api.Error{Kind: api.ErrUnauthorized, Status: 401, Detail: "Not authenticated"},
		blockCal:  true,
		calCancel: make(chan struct{}),
	}

	snap, err := NewLoader(f, nil).Load(context.Background())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Contains(t, err.Error(), "loading stats")

	select {
	case <-f.calCancel:
	case <-time.After(time.Second):
		t.Fatal("calendar fetch was not cancelled")
	}
}

func TestSnapshot_Upcoming(t *testing.T) {
	s := &Snapshot{Calendar: []api.CalendarEvent{
		{ID: "a", Start: "2025-01-20T00:00:00"},
		{ID: "b", Start: "2025-01-15T08:30:00"},
		{ID: "past", Start: "2024-12-23T00:00:00"},
		{ID: "c", Start: "2025-02-10T09:00:00"},
		{ID: "bad", Start: "demain"},
	}}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	ids := func(evs []api.CalendarEvent) []string {
		out := make([]string, len(evs))
		for i, e := range evs {
			out[i] = e.ID
		}
		return out
	}

	assert.Equal(t, []string{"b", "a", "c"}, ids(s.Upcoming(now, 0)))
	assert.Equal(t, []string{"b", "a"}, ids(s.Upcoming(now, 2)))
	assert.Empty(t, s.Upcoming(now.AddDate(1, 0, 0), 0))
}

func TestSnapshot_ByPriority(t *testing.T) {
	s := &Snapshot{Announcements: []api.Announcement{
		{ID: "1", Priority: "low"},
		{ID: "2", Priority: "high"},
		{ID: "3", Priority: "urgent?"},
		{ID: "4", Priority: "medium"},
		{ID: "5", Priority: "high"},
	}}

	var got []string
	for _, a := range s.ByPriority() {
		got = append(got, a.ID)
	}
	assert.Equal(t, []string{"2", "5", "4", "1", "3"}, got)
	assert.Equal(t, "1", s.Announcements[0].ID, "original order untouched")
}
