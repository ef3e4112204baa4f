package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns Metrics backed by a manual reader so tests can
// collect recorded values without an exporter.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestNewMetrics_RecordsCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SegmentsSynthesized.Add(ctx, 3)
	m.SynthesisFailures.Add(ctx, 1)
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", "deepgram"),
		attribute.String("status", "ok"),
	))

	rm := collect(t, reader)

	got, ok := findMetric(rm, "ashtraa.segments.synthesized")
	if !ok {
		t.Fatal("segments.synthesized not collected")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("segments.synthesized = %+v, want single point of 3", got.Data)
	}

	if _, ok := findMetric(rm, "ashtraa.segments.failed"); !ok {
		t.Fatal("segments.failed not collected")
	}
	if _, ok := findMetric(rm, "ashtraa.provider.requests"); !ok {
		t.Fatal("provider.requests not collected")
	}
}

func TestNewMetrics_RecordsHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.TTSDuration.Record(context.Background(), 0.42)

	rm := collect(t, reader)
	got, ok := findMetric(rm, "ashtraa.tts.duration")
	if !ok {
		t.Fatal("tts.duration not collected")
	}
	hist, ok := got.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("tts.duration = %+v, want one recorded point", got.Data)
	}
}

func TestMiddleware_RecordsDurationAndRequestID(t *testing.T) {
	m, reader := newTestMetrics(t)

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want passthrough 418", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no X-Request-ID assigned")
	}

	rm := collect(t, reader)
	if _, ok := findMetric(rm, "ashtraa.http.request.duration"); !ok {
		t.Fatal("http.request.duration not collected")
	}
}

func TestMiddleware_HonoursIncomingRequestID(t *testing.T) {
	m, _ := newTestMetrics(t)

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "client-supplied" {
		t.Fatalf("request id = %q, want client-supplied", got)
	}
}
