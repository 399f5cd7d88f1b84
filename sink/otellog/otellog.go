// Package otellog exports activity events as OpenTelemetry log records.
package otellog

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"

	"github.com/MrEthical07/authcore"
)

const scopeName = "github.com/MrEthical07/authcore/sink/otellog"

// Sink is an authcore.ActivitySink backed by an OTel logger.
type Sink struct {
	logger otellog.Logger
}

// New returns a Sink emitting through provider. A nil provider returns nil,
// which authcore treats as no sink.
func New(provider otellog.LoggerProvider) *Sink {
	if provider == nil {
		return nil
	}
	return &Sink{logger: provider.Logger(scopeName)}
}

func (s *Sink) Emit(ctx context.Context, event authcore.ActivityEvent) {
	if s == nil {
		return
	}
	var rec otellog.Record
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetEventName("authcore.activity." + string(event.Action))
	if event.Success {
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetSeverityText("INFO")
	} else {
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetSeverityText("WARN")
	}
	body := event.Details
	if body == "" {
		body = string(event.Action)
	}
	rec.SetBody(otellog.StringValue(body))

	rec.AddAttributes(
		otellog.String("activity.id", event.ID),
		otellog.String("activity.action", string(event.Action)),
		otellog.Bool("activity.success", event.Success),
	)
	optional := []struct{ key, value string }{
		{"user.id", event.AccountID},
		{"activity.target_user_id", event.TargetAccountID},
		{"client.address", event.IP},
		{"user_agent.original", event.UserAgent},
		{"error.message", event.Error},
	}
	for _, kv := range optional {
		if kv.value != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.value))
		}
	}
	for k, v := range event.Metadata {
		rec.AddAttributes(otellog.String("activity.metadata."+k, v))
	}
	s.logger.Emit(ctx, rec)
}
