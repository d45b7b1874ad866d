package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, sr
}

// TestMiddlewareNamesSpanByRoute records the chi route pattern and status.
func TestMiddlewareNamesSpanByRoute(t *testing.T) {
	t.Parallel()

	tp, sr := recordingProvider(t)
	var traceID string
	r := chi.NewRouter()
	r.Use(Middleware(tp, Propagator()))
	r.Get("/v1/sessions/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		traceID = TraceID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /v1/sessions/{session_id}", spans[0].Name())
	require.Contains(t, spans[0].Attributes(), attribute.Int("http.status_code", http.StatusNotFound))
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Equal(t, spans[0].SpanContext().TraceID().String(), traceID)
}

// TestMiddlewareContinuesIncomingTrace uses the traceparent header as parent.
func TestMiddlewareContinuesIncomingTrace(t *testing.T) {
	t.Parallel()

	tp, sr := recordingProvider(t)
	h := Middleware(tp, Propagator())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/modules/x/sessions", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	require.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "POST /v1/modules/x/sessions", spans[0].Name())
}

// TestTraceIDEmptyWithoutSpan returns "" for a bare context.
func TestTraceIDEmptyWithoutSpan(t *testing.T) {
	t.Parallel()

	require.Empty(t, TraceID(context.Background()))
}
