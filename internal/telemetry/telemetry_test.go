package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	p, err := NewProviders(ctx, "  ", "authcore-test", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
		t.Fatal("all providers should be set")
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"http://", "http://[bad"} {
		if _, err := NewProviders(context.Background(), endpoint, "authcore-test", false); err == nil {
			t.Errorf("NewProviders(%q) should fail", endpoint)
		}
	}
}

func TestGRPCTarget(t *testing.T) {
	tests := []struct {
		endpoint string
		target   string
		insecure bool
	}{
		{"localhost:4317", "localhost:4317", true},
		{"http://collector:4317/v1/traces", "collector:4317", true},
		{"https://collector:4317", "collector:4317", false},
	}
	for _, tt := range tests {
		target, insecure, err := grpcTarget(tt.endpoint)
		if err != nil {
			t.Fatalf("grpcTarget(%q): %v", tt.endpoint, err)
		}
		if target != tt.target || insecure != tt.insecure {
			t.Errorf("grpcTarget(%q) = %q, %v; want %q, %v", tt.endpoint, target, insecure, tt.target, tt.insecure)
		}
	}
}

func TestSetGlobal(t *testing.T) {
	oldTP, oldMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
	})

	p, err := NewProviders(context.Background(), "", "authcore-test", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	p.SetGlobal()
	if otel.GetTracerProvider() != p.TracerProvider {
		t.Error("global tracer provider not installed")
	}
	if otel.GetMeterProvider() != p.MeterProvider {
		t.Error("global meter provider not installed")
	}
}
