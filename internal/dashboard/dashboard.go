// ABOUTME: Dashboard loader fetching stats, announcements and calendar concurrently
// ABOUTME: The first failure cancels the other requests and fails the whole load

package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/uvci/campus-assistant/internal/api"
)

// calendarLayout is the server's date-time format for calendar events.
const calendarLayout = "2006-01-02T15:04:05"

// Fetcher is the part of *api.Client the dashboard needs.
type Fetcher interface {
	Stats(ctx context.Context) (*api.Stats, error)
	Announcements(ctx context.Context) ([]api.Announcement, error)
	Calendar(ctx context.Context) ([]api.CalendarEvent, error)
}

// Snapshot is one complete dashboard load.
type Snapshot struct {
	Stats         api.Stats
	Announcements []api.Announcement
	Calendar      []api.CalendarEvent
	LoadedAt      time.Time
}

// Loader loads dashboard snapshots.
type Loader struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewLoader creates a Loader. logger may be nil.
func NewLoader(f Fetcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		fetcher: f,
		logger:  logger.With("component", "dashboard"),
		now:     time.Now,
	}
}

// Load fetches the three sections in parallel.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	g, gctx := errgroup.WithContext(ctx)
	snap := &Snapshot{}

	g.Go(func() error {
		st, err := l.fetcher.Stats(gctx)
		if err != nil {
			return fmt.Errorf("loading stats: %w", err)
		}
		snap.Stats = *st
		return nil
	})
	g.Go(func() error {
		items, err := l.fetcher.Announcements(gctx)
		if err != nil {
			return fmt.Errorf("loading announcements: %w", err)
		}
		snap.Announcements = items
		return nil
	})
	g.Go(func() error {
		events, err := l.fetcher.Calendar(gctx)
		if err != nil {
			return fmt.Errorf("loading calendar: %w", err)
		}
		snap.Calendar = events
		return nil
	})

	if err := g.Wait(); err != nil {
		l.logger.Warn("dashboard load failed", "error", err)
		return nil, err
	}

	snap.LoadedAt = l.now()
	l.logger.Debug("dashboard loaded",
		"announcements", len(snap.Announcements),
		"events", len(snap.Calendar),
	)
	return snap, nil
}

// Upcoming returns the calendar events starting at or after now, soonest
// first, at most limit of them (limit <= 0 means all). Events with an
// unparseable start are dropped.
func (s *Snapshot) Upcoming(now time.Time, limit int) []api.CalendarEvent {
	type dated struct {
		ev    api.CalendarEvent
		start time.Time
	}

	parsed := lo.FilterMap(s.Calendar, func(ev api.CalendarEvent, _ int) (dated, bool) {
		t, err := time.ParseInLocation(calendarLayout, ev.Start, now.Location())
		if err != nil {
			return dated{}, false
		}
		return dated{ev: ev, start: t}, !t.Before(now)
	})
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].start.Before(parsed[j].start) })

	if limit > 0 && len(parsed) > limit {
		parsed = parsed[:limit]
	}
	return lo.Map(parsed, func(d dated, _ int) api.CalendarEvent { return d.ev })
}

// ByPriority returns the announcements with high priority first, keeping
// server order within a priority.
func (s *Snapshot) ByPriority() []api.Announcement {
	rank := map[string]int{"high": 0, "medium": 1, "low": 2}
	out := append([]api.Announcement(nil), s.Announcements...)
	sort.SliceStable(out, func(i, j int) bool {
		return lo.ValueOr(rank, out[i].Priority, 3) < lo.ValueOr(rank, out[j].Priority, 3)
	})
	return out
}
