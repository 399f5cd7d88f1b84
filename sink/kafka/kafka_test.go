package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	skafka "github.com/segmentio/kafka-go"

	"github.com/MrEthical07/authcore"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeWriter struct {
	msgs []skafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []skafka.Message
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (skafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		m := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return skafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...skafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func TestProducerEmit(t *testing.T) {
	fw := &fakeWriter{}
	p := NewProducerWithWriter(fw, quiet)
	event := authcore.ActivityEvent{
		ID:        "evt-1",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Action:    authcore.ActionLogin,
		AccountID: "acc-1",
		Success:   true,
	}
	p.Emit(context.Background(), event)

	if len(fw.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fw.msgs))
	}
	if string(fw.msgs[0].Key) != "acc-1" {
		t.Errorf("key = %q, want acc-1", fw.msgs[0].Key)
	}
	var got authcore.ActivityEvent
	if err := json.Unmarshal(fw.msgs[0].Value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "evt-1" || got.Action != authcore.ActionLogin {
		t.Errorf("decoded = %+v", got)
	}
}

func TestProducerEmitSwallowsErrors(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, quiet)
	p.Emit(context.Background(), authcore.ActivityEvent{ID: "evt-1"})

	if err := p.Publish(context.Background(), authcore.ActivityEvent{ID: "evt-1"}); err == nil {
		t.Fatal("Publish should report the writer error")
	}
}

func TestMessageKey(t *testing.T) {
	if k := messageKey(authcore.ActivityEvent{ID: "e", TargetAccountID: "t"}); k != "t" {
		t.Errorf("key = %q, want target", k)
	}
	if k := messageKey(authcore.ActivityEvent{ID: "e"}); k != "e" {
		t.Errorf("key = %q, want event id", k)
	}
}

func TestConsumerRetriesAndCommits(t *testing.T) {
	good, _ := json.Marshal(authcore.ActivityEvent{ID: "evt-2", Action: authcore.ActionLogout})
	fr := &fakeReader{queue: []skafka.Message{
		{Offset: 1, Value: []byte("{not json")},
		{Offset: 2, Value: good},
	}}
	c := NewConsumerWithReader(fr, quiet)
	c.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		calls int
		seen  []string
	)
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(ctx context.Context, event authcore.ActivityEvent) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return errors.New("db unavailable")
			}
			seen = append(seen, event.ID)
			return nil
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(fr.commits()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := fr.commits(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("commits = %v, want [1 2]", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 || len(seen) != 1 || seen[0] != "evt-2" {
		t.Errorf("calls = %d, seen = %v", calls, seen)
	}
}
