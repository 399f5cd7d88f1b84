package authcore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	defaultRecentActivities  = 10
	defaultActivityRetention = 90
)

// ActivityPage is one page of Activities.
type ActivityPage struct {
	Activities []ActivityEvent `json:"activities"`
	Pagination Pagination      `json:"pagination"`
}

// ActionCount is one row of ActivityStats.
type ActionCount struct {
	Action ActivityAction `json:"_id"`
	Count  int            `json:"count"`
}

// ActivityStatsResult summarises the activity log.
type ActivityStatsResult struct {
	ActionStats      []ActionCount `json:"actionStats"`
	RecentActivities int           `json:"recentActivities"`
}

// emitActivity stamps event and hands it to the dispatcher, or straight to
// the sink when events are delivered synchronously. It never fails the caller.
func (e *Engine) emitActivity(ctx context.Context, event ActivityEvent) {
	if e == nil || !e.config.Activity.Enabled {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if event.IP == "" {
		event.IP = ClientIPFromContext(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = userAgentFromContext(ctx)
	}

	if e.activity != nil {
		e.activity.Emit(ctx, event)
		return
	}
	if e.activitySink != nil {
		e.activitySink.Emit(context.WithoutCancel(ctx), event)
	}
}

func (e *Engine) activityReady() bool {
	return e != nil && e.activityStore != nil
}

// Activities returns one page of the activity log, newest first.
func (e *Engine) Activities(ctx context.Context, q ActivityQuery) (*ActivityPage, error) {
	if !e.activityReady() {
		return nil, ErrEngineNotReady
	}
	q.Normalize()
	if err := validate(q); err != nil {
		return nil, err
	}
	events, total, err := e.activityStore.ListActivities(ctx, q)
	if err != nil {
		return nil, internalError(err)
	}
	if events == nil {
		events = []ActivityEvent{}
	}
	return &ActivityPage{Activities: events, Pagination: newPagination(total, q.Page, q.Limit)}, nil
}

// RecentActivities returns the latest events of accountID. A limit of zero
// or less means 10.
func (e *Engine) RecentActivities(ctx context.Context, accountID string, limit int) ([]ActivityEvent, error) {
	if limit <= 0 {
		limit = defaultRecentActivities
	}
	page, err := e.Activities(ctx, ActivityQuery{AccountID: accountID, Page: 1, Limit: limit})
	if err != nil {
		return nil, err
	}
	return page.Activities, nil
}

// ActivityStats counts events per action, most frequent first, and the events
// recorded in the last 24 hours.
func (e *Engine) ActivityStats(ctx context.Context) (*ActivityStatsResult, error) {
	if !e.activityReady() {
		return nil, ErrEngineNotReady
	}
	byAction, err := e.activityStore.CountActivitiesByAction(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	recent, err := e.activityStore.CountActivitiesSince(ctx, e.now().Add(-24*time.Hour))
	if err != nil {
		return nil, internalError(err)
	}

	stats := make([]ActionCount, 0, len(byAction))
	for action, n := range byAction {
		stats = append(stats, ActionCount{Action: action, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Action < stats[j].Action
	})
	return &ActivityStatsResult{ActionStats: stats, RecentActivities: recent}, nil
}

// CleanupActivities deletes events older than daysToKeep days (90 when zero
// or less) and returns how many were removed.
func (e *Engine) CleanupActivities(ctx context.Context, daysToKeep int) (int64, error) {
	if !e.activityReady() {
		return 0, ErrEngineNotReady
	}
	if daysToKeep <= 0 {
		daysToKeep = defaultActivityRetention
	}
	n, err := e.activityStore.DeleteActivitiesBefore(ctx, e.now().AddDate(0, 0, -daysToKeep))
	if err != nil {
		return 0, internalError(err)
	}
	e.logger.Info("authcore: activity log cleaned", "deleted", n, "days_kept", daysToKeep)
	return n, nil
}
