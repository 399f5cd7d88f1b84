package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/authcore"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authcore.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authcore.MetricsSnapshot{
		Counters:   make(map[authcore.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[authcore.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) ActivityDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func points(t *testing.T, rm metricdata.ResourceMetrics, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			return sum.DataPoints
		}
	}
	t.Fatalf("metric %s not collected", name)
	return nil
}

func TestExporterCollectsSnapshot(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess:    3,
				authcore.MetricAccountBanned:   1,
				authcore.MetricRegisterSuccess: 0,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 4,
	}

	exp, err := NewExporter(provider.Meter("authcore-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if got := points(t, rm, "authcore_login_success_total"); len(got) != 1 || got[0].Value != 3 {
		t.Errorf("login success points = %+v", got)
	}
	if got := points(t, rm, "authcore_account_banned_total"); len(got) != 1 || got[0].Value != 1 {
		t.Errorf("banned points = %+v", got)
	}
	if got := points(t, rm, "authcore_activity_dropped_total"); len(got) != 1 || got[0].Value != 4 {
		t.Errorf("dropped points = %+v", got)
	}

	buckets := points(t, rm, "authcore_validate_latency_seconds_bucket")
	if len(buckets) != 8 {
		t.Fatalf("bucket points = %d, want 8", len(buckets))
	}
	for _, dp := range buckets {
		le, ok := dp.Attributes.Value("le")
		if !ok {
			t.Fatal("bucket point without le attribute")
		}
		if le.AsString() == "+Inf" && dp.Value != 8 {
			t.Errorf("+Inf bucket = %d, want 8", dp.Value)
		}
		if le.AsString() == "0.005" && dp.Value != 1 {
			t.Errorf("first bucket = %d, want 1", dp.Value)
		}
	}
	if got := points(t, rm, "authcore_validate_latency_seconds_count"); len(got) != 1 || got[0].Value != 8 {
		t.Errorf("count points = %+v", got)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader(t)
	if _, err := NewExporter(provider.Meter("authcore-test"), nil); err != ErrNilSource {
		t.Fatalf("err = %v, want ErrNilSource", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("err = %v, want ErrNilMeter", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{authcore.MetricLoginSuccess: 1},
		Histograms: map[authcore.MetricID][]uint64{},
	}}
	exp, err := NewExporter(provider.Meter("authcore-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[authcore.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
