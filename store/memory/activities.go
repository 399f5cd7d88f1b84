package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/authcore"
)

// Activities keeps the activity log in memory. It is both the
// authcore.ActivitySink the Engine writes to and the authcore.ActivityStore
// it queries.
type Activities struct {
	mu     sync.RWMutex
	events []authcore.ActivityEvent
}

// NewActivities returns an empty log.
func NewActivities() *Activities {
	return &Activities{}
}

func (s *Activities) Emit(ctx context.Context, event authcore.ActivityEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

// Len returns the number of stored events.
func (s *Activities) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Activities) ListActivities(ctx context.Context, q authcore.ActivityQuery) ([]authcore.ActivityEvent, int, error) {
	s.mu.RLock()
	matched := make([]authcore.ActivityEvent, 0)
	for _, ev := range s.events {
		if q.Matches(ev) {
			matched = append(matched, ev)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	total := len(matched)
	return page(matched, q.Offset(), q.Limit), total, nil
}

func (s *Activities) CountActivitiesByAction(ctx context.Context) (map[authcore.ActivityAction]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[authcore.ActivityAction]int)
	for _, ev := range s.events {
		out[ev.Action]++
	}
	return out, nil
}

func (s *Activities) CountActivitiesSince(ctx context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ev := range s.events {
		if !ev.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Activities) DeleteActivitiesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var removed int64
	for _, ev := range s.events {
		if ev.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return removed, nil
}

var (
	_ authcore.ActivityStore = (*Activities)(nil)
	_ authcore.ActivitySink  = (*Activities)(nil)
)
