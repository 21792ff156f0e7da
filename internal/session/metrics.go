package session

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("secondhand-race/session")

var ttfbHistogram, _ = meter.Float64Histogram(
	"session.ttfb",
	metric.WithUnit("ms"),
	metric.WithDescription("time until response headers arrive"),
)
var ttlbHistogram, _ = meter.Float64Histogram(
	"session.ttlb",
	metric.WithUnit("ms"),
	metric.WithDescription("time until the response body is drained"),
)
var reconnectCounter, _ = meter.Int64Counter(
	"session.reconnects",
	metric.WithDescription("connection pools discarded and rebuilt"),
)
