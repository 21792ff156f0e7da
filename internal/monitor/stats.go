package monitor

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Stats summarizes a run.
type Stats struct {
	Polls      int64
	Detections int64
	Attempts   int64
	Unusual    int64
	Errors     int64
	Reconnects int64
	Requests   int64
	Snapshots  int64
}

var meter = otel.Meter("secondhand-race/monitor")

var pollCounter, _ = meter.Int64Counter(
	"monitor.polls",
	metric.WithDescription("marketplace polls by result"),
)
var detectionCounter, _ = meter.Int64Counter(
	"monitor.detections",
	metric.WithDescription("polls that found listings"),
)
