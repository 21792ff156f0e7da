package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Kind string

const (
	KindTicketInCart      Kind = "ticket_in_cart"
	KindReservationFailed Kind = "reservation_failed"
	KindTicketsFoundDry   Kind = "tickets_found_dry_run"
)

// Terminal reports whether the event ends the run, those are delivered
// once and reach every channel.
func (k Kind) Terminal() bool {
	return k == KindTicketInCart || k == KindTicketsFoundDry
}

type Event struct {
	Kind         Kind              `json:"event"`
	Timestamp    time.Time         `json:"timestamp"`
	Target       string            `json:"target"`
	CheckoutURL  string            `json:"checkout_url,omitempty"`
	TicketType   string            `json:"ticket,omitempty"`
	Price        string            `json:"price,omitempty"`
	Cookies      map[string]string `json:"cookies,omitempty"`
	CookieScript string            `json:"cookie_script,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type multi []Notifier

func (m multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Notify(ctx, event))
	}
	return errors.Join(errs...)
}

// Multi delivers every event to each notifier, one failing channel does
// not stop the others.
func Multi(notifiers ...Notifier) Notifier {
	var out multi
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Once delivers terminal events at most once, other events pass through.
type Once struct {
	inner Notifier
	mu    sync.Mutex
	sent  bool
}

func NewOnce(inner Notifier) *Once {
	return &Once{inner: inner}
}

func (o *Once) Notify(ctx context.Context, event Event) error {
	if event.Kind.Terminal() {
		o.mu.Lock()
		if o.sent {
			o.mu.Unlock()
			return nil
		}
		o.sent = true
		o.mu.Unlock()
	}
	return o.inner.Notify(ctx, event)
}

// Sent reports whether a terminal event went out.
func (o *Once) Sent() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent
}
