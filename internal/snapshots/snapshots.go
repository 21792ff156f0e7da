package snapshots

import (
	"context"
	"errors"
	"time"
)

type Kind string

const (
	// KindResponse is a poll response worth keeping: an error status, a
	// detection or a page that drifted from the baseline.
	KindResponse Kind = "response"
	// KindReservation is the dump of a reservation request and response.
	KindReservation Kind = "reservation"
)

type Snapshot struct {
	RunID string
	// Sequence is the session request count when the snapshot was taken.
	Sequence   int64
	Kind       Kind
	StatusCode int
	URL        string
	Body       []byte
	Time       time.Time
}

// Sink persists snapshots. A failing sink never stops the run, callers
// only report the error.
type Sink interface {
	Save(ctx context.Context, snapshot Snapshot) error
}

type discard struct{}

func (discard) Save(context.Context, Snapshot) error { return nil }

// Discard drops every snapshot.
var Discard Sink = discard{}

type multi []Sink

func (m multi) Save(ctx context.Context, snapshot Snapshot) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.Save(ctx, snapshot))
	}
	return errors.Join(errs...)
}

// Multi saves every snapshot to each of `sinks`, nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return Discard
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
