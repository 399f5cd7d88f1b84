package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// ActivityAction names an auditable account event.
type ActivityAction string

const (
	ActionLogin          ActivityAction = "login"
	ActionLogout         ActivityAction = "logout"
	ActionRegister       ActivityAction = "register"
	ActionPasswordReset  ActivityAction = "password_reset"
	ActionEmailVerified  ActivityAction = "email_verified"
	ActionProfileUpdated ActivityAction = "profile_updated"
	ActionUserBanned     ActivityAction = "user_banned"
	ActionUserUnbanned   ActivityAction = "user_unbanned"
	ActionRoleChanged    ActivityAction = "role_changed"
	ActionUserDeleted    ActivityAction = "user_deleted"
	ActionAPIKeyCreated  ActivityAction = "api_key_created"
	ActionAPIKeyRevoked  ActivityAction = "api_key_revoked"
)

// Valid reports whether a is a known action.
func (a ActivityAction) Valid() bool {
	switch a {
	case ActionLogin, ActionLogout, ActionRegister, ActionPasswordReset, ActionEmailVerified,
		ActionProfileUpdated, ActionUserBanned, ActionUserUnbanned, ActionRoleChanged,
		ActionUserDeleted, ActionAPIKeyCreated, ActionAPIKeyRevoked:
		return true
	}
	return false
}

// ActivityEvent is one entry of the activity log.
type ActivityEvent struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Action          ActivityAction    `json:"action"`
	AccountID       string            `json:"accountId,omitempty"`
	TargetAccountID string            `json:"targetAccountId,omitempty"`
	Details         string            `json:"details,omitempty"`
	IP              string            `json:"ipAddress,omitempty"`
	UserAgent       string            `json:"userAgent,omitempty"`
	Success         bool              `json:"success"`
	Error           string            `json:"error,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// ActivitySink receives activity events. Emit must not block for long and
// must never panic; failures are the sink's to absorb.
type ActivitySink interface {
	Emit(ctx context.Context, event ActivityEvent)
}

// ActivityStore answers activity queries.
type ActivityStore interface {
	ListActivities(ctx context.Context, q ActivityQuery) ([]ActivityEvent, int, error)
	CountActivitiesByAction(ctx context.Context) (map[ActivityAction]int, error)
	CountActivitiesSince(ctx context.Context, since time.Time) (int, error)
	DeleteActivitiesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, ActivityEvent) {}

// ChannelSink forwards events to a buffered channel.
type ChannelSink struct {
	events chan ActivityEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan ActivityEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event ActivityEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan ActivityEvent {
	return s.events
}

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event ActivityEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

// MultiSink fans events out to every sink in order.
type MultiSink []ActivitySink

func (m MultiSink) Emit(ctx context.Context, event ActivityEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
