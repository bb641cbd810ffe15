package telemetry

import (
	"context"
	"fmt"

	"github.com/birbparty/cooldb/sdk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingTransport wraps an sdk.Transport with a client span per exchange and
// injects the trace context into the outgoing headers.
type TracingTransport struct {
	next sdk.Transport
}

// NewTracingTransport wraps next
func NewTracingTransport(next sdk.Transport) *TracingTransport {
	return &TracingTransport{next: next}
}

// Do traces one exchange
func (t *TracingTransport) Do(ctx context.Context, req *sdk.Request) (*sdk.Response, error) {
	ctx, span := StartSpan(ctx, fmt.Sprintf("cooldb %s %s", req.Method, RouteLabel(req.Path)),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(req.Method),
			semconv.HTTPURLKey.String(req.URL),
			attribute.String("cooldb.route", RouteLabel(req.Path)),
		),
	)
	defer span.End()

	if req.Header != nil {
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	}

	resp, err := t.next.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(resp.StatusCode))
	if !resp.OK() {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	return resp, nil
}

// Close closes the wrapped transport if it holds resources
func (t *TracingTransport) Close() error {
	if closer, ok := t.next.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
