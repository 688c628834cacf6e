package httpmiddleware

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrument traces requests with otelhttp and counts them per route and
// status class.
func Instrument(service string, mp metric.MeterProvider, tp trace.TracerProvider) (Middleware, error) {
	meter := mp.Meter(service)
	requests, err := meter.Int64Counter("storefront.http.requests",
		metric.WithDescription("HTTP requests by route and status"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("storefront.http.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			route := RoutePattern(r)
			if labeler, ok := otelhttp.LabelerFromContext(r.Context()); ok {
				labeler.Add(attribute.String("http.route", route))
			}
			attrs := metric.WithAttributes(
				attribute.String("http.route", route),
				attribute.String("http.method", r.Method),
				attribute.String("http.status_class", strconv.Itoa(sw.Status()/100)+"xx"),
			)
			requests.Add(r.Context(), 1, attrs)
			latency.Record(r.Context(), float64(time.Since(start).Microseconds())/1000, attrs)
		})
		return otelhttp.NewHandler(counted, service,
			otelhttp.WithMeterProvider(mp),
			otelhttp.WithTracerProvider(tp),
		)
	}, nil
}
