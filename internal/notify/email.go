package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"secondhand-race/internal/config"

	"github.com/jordan-wright/email"
)

// SendFunc delivers a message to an smtp server.
type SendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

func sendMail(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

// Email mails terminal events to the configured recipients.
type Email struct {
	cfg  config.Email
	send SendFunc
}

func NewEmail(cfg config.Email, send SendFunc) Email {
	if send == nil {
		send = sendMail
	}
	return Email{cfg: cfg, send: send}
}

func emailSubject(event Event) string {
	if event.Kind == KindTicketsFoundDry {
		return "Tickets found (dry run)"
	}
	return "Ticket in cart, checkout now"
}

func emailBody(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", event.Kind)
	fmt.Fprintf(&b, "Time: %s\n", event.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Marketplace: %s\n", event.Target)
	if event.TicketType != "" {
		fmt.Fprintf(&b, "Ticket: %s (%s)\n", event.TicketType, event.Price)
	}
	if event.CheckoutURL != "" {
		fmt.Fprintf(&b, "Checkout: %s\n", event.CheckoutURL)
	}
	if len(event.Cookies) > 0 {
		b.WriteString("\nCookies:\n")
		names := make([]string, 0, len(event.Cookies))
		for name := range event.Cookies {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s=%s\n", name, event.Cookies[name])
		}
	}
	if event.CookieScript != "" {
		b.WriteString("\nPaste into the browser console on the event site:\n\n")
		b.WriteString(event.CookieScript)
		b.WriteString("\n")
	}
	return b.String()
}

func (e Email) Notify(_ context.Context, event Event) error {
	if !event.Kind.Terminal() {
		return nil
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("secondhand-race <%s>", e.cfg.From)
	mail.To = e.cfg.To
	mail.Subject = emailSubject(event)
	mail.Text = []byte(emailBody(event))

	addr := fmt.Sprintf("%s:%d", e.cfg.Server, e.cfg.Port)
	err := e.send(mail, addr, smtp.PlainAuth("", e.cfg.From, e.cfg.Password, e.cfg.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}
