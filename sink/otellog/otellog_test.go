package otellog

import (
	"context"
	"sync"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/MrEthical07/authcore"
)

type recordingProcessor struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (p *recordingProcessor) OnEmit(_ context.Context, r *sdklog.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r.Clone())
	return nil
}

func (p *recordingProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool { return true }

func (p *recordingProcessor) Shutdown(context.Context) error   { return nil }
func (p *recordingProcessor) ForceFlush(context.Context) error { return nil }

func attributes(r sdklog.Record) map[string]string {
	out := map[string]string{}
	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.String()
		return true
	})
	return out
}

func TestSinkEmit(t *testing.T) {
	proc := &recordingProcessor{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(proc))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	sink := New(provider)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink.Emit(context.Background(), authcore.ActivityEvent{
		ID:        "evt-1",
		Timestamp: ts,
		Action:    authcore.ActionLogin,
		AccountID: "acc-1",
		IP:        "10.0.0.1",
		Details:   "User logged in",
		Success:   true,
		Metadata:  map[string]string{"method": "password"},
	})
	sink.Emit(context.Background(), authcore.ActivityEvent{
		ID:     "evt-2",
		Action: authcore.ActionLogin,
		Error:  "Invalid email or password",
	})

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.records) != 2 {
		t.Fatalf("records = %d, want 2", len(proc.records))
	}

	ok := proc.records[0]
	if !ok.Timestamp().Equal(ts) {
		t.Errorf("timestamp = %v, want %v", ok.Timestamp(), ts)
	}
	if ok.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", ok.Severity())
	}
	if ok.Body().AsString() != "User logged in" {
		t.Errorf("body = %q", ok.Body().AsString())
	}
	attrs := attributes(ok)
	if attrs["user.id"] != "acc-1" || attrs["client.address"] != "10.0.0.1" || attrs["activity.metadata.method"] != "password" {
		t.Errorf("attributes = %v", attrs)
	}
	if _, present := attrs["error.message"]; present {
		t.Error("empty error should not be exported")
	}

	failed := proc.records[1]
	if failed.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want warn", failed.Severity())
	}
	if failed.Timestamp().IsZero() {
		t.Error("missing timestamp should be filled in")
	}
	if got := attributes(failed)["error.message"]; got != "Invalid email or password" {
		t.Errorf("error.message = %q", got)
	}
}

func TestNilProvider(t *testing.T) {
	s := New(nil)
	s.Emit(context.Background(), authcore.ActivityEvent{ID: "evt"})
}
