package notify

import (
	"context"
	"fmt"
)

// Desktop raises a system notification, osascript on macOS and
// notify-send on linux. Other platforms are silently skipped.
type Desktop struct {
	goos string
	run  Runner
}

func NewDesktop(goos string, run Runner) Desktop {
	return Desktop{goos: goos, run: run}
}

func desktopMessage(event Event) (title, message string) {
	switch event.Kind {
	case KindTicketInCart:
		return "Tickets Found!", "Added to cart - CHECKOUT NOW!"
	case KindTicketsFoundDry:
		return "Tickets Found!", "Dry run, nothing was added to the cart"
	case KindReservationFailed:
		return "Tickets", "Cart add failed, retrying..."
	default:
		return "Tickets", string(event.Kind)
	}
}

func (d Desktop) Notify(ctx context.Context, event Event) error {
	title, message := desktopMessage(event)
	switch d.goos {
	case "darwin":
		script := fmt.Sprintf(
			"display notification %s with title %s sound name \"Glass\"",
			appleScriptString(message), appleScriptString(title),
		)
		return d.run(ctx, "osascript", "-e", script)
	case "linux":
		return d.run(ctx, "notify-send", "-u", "critical", title, message)
	default:
		return nil
	}
}
