package notify

import (
	"runtime"

	"secondhand-race/internal/components/telemetry"
	"secondhand-race/internal/config"
)

// FromConfig wires every channel the configuration enables. Terminal
// events are delivered once across all of them.
func FromConfig(cfg config.Config, tel telemetry.API) *Once {
	var channels []Notifier
	if cfg.DesktopNotifications() {
		channels = append(channels, NewDesktop(runtime.GOOS, ExecRunner))
	}
	if cfg.IMessageRecipient() != "" && runtime.GOOS == "darwin" {
		channels = append(channels, NewIMessage(cfg.IMessageRecipient(), ExecRunner))
	}
	if cfg.Email().Enabled() {
		channels = append(channels, NewEmail(cfg.Email(), nil))
	}
	if cfg.WebhookURL() != "" {
		channels = append(channels, NewWebhook(cfg.WebhookURL(), tel))
	}
	return NewOnce(Multi(channels...))
}
