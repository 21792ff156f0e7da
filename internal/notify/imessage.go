package notify

import (
	"context"
	"fmt"
	"sync"
)

const imessageTemplate = `tell application "Messages"
	set targetService to 1st account whose service type = iMessage
	set targetBuddy to participant %s of targetService
	send %s to targetBuddy
end tell`

// IMessage texts a recipient through Messages.app, at most once per run
// and only for terminal events.
type IMessage struct {
	recipient string
	run       Runner

	mu   sync.Mutex
	sent bool
}

func NewIMessage(recipient string, run Runner) *IMessage {
	return &IMessage{recipient: recipient, run: run}
}

func imessageText(event Event) string {
	if event.Kind == KindTicketsFoundDry {
		return fmt.Sprintf("TICKETS FOUND (dry run): %s %s %s", event.TicketType, event.Price, event.Target)
	}
	return fmt.Sprintf("TICKET IN CART! Go to checkout NOW! %s", event.CheckoutURL)
}

func (m *IMessage) Notify(ctx context.Context, event Event) error {
	if !event.Kind.Terminal() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent {
		return nil
	}

	script := fmt.Sprintf(imessageTemplate, appleScriptString(m.recipient), appleScriptString(imessageText(event)))
	err := m.run(ctx, "osascript", "-e", script)
	if err != nil {
		return fmt.Errorf("imessage: %w", err)
	}
	m.sent = true
	return nil
}
