package config

import (
	"dario.cat/mergo"
)

// Options is the mutable, file and flag facing shape of the configuration.
// Durations are in seconds. Zero values mean "use the default", pointer
// fields exist where the zero value is a meaningful choice.
type Options struct {
	BaseURL            string   `json:"base_url"`
	Event              string   `json:"event"`
	PollInterval       float64  `json:"poll_interval"`
	Jitter             *float64 `json:"jitter"`
	BackoffMax         float64  `json:"backoff_max"`
	Item               string   `json:"item"`
	Sort               string   `json:"sort"`
	DryRun             bool     `json:"dry_run"`
	Headless           bool     `json:"headless"`
	WaitForMarketplace float64  `json:"wait_for_marketplace"`
	ReconnectEvery     int64    `json:"reconnect_every"`
	ConnectTimeout     float64  `json:"connect_timeout"`
	RequestTimeout     float64  `json:"request_timeout"`

	Notify    NotifyOptions   `json:"notify"`
	Snapshots SnapshotOptions `json:"snapshots"`
}

type NotifyOptions struct {
	Desktop  *bool        `json:"desktop"`
	IMessage string       `json:"imessage"`
	Webhook  string       `json:"webhook"`
	Email    EmailOptions `json:"email"`
}

type EmailOptions struct {
	Server   string   `json:"server"`
	Port     int      `json:"port"`
	From     string   `json:"from"`
	Password string   `json:"password"`
	To       []string `json:"to"`
}

type SnapshotOptions struct {
	Dir         string `json:"dir"`
	Database    string `json:"database"`
	SaveUnusual *bool  `json:"save_unusual"`
}

// Merge returns `base` with every non-zero field of `override` applied on top.
func Merge(base, override Options) (Options, error) {
	err := mergo.Merge(&base, override, mergo.WithOverride)
	return base, err
}
