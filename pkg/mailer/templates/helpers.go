package templates

import (
	"strings"
	"time"

	"github.com/oksasatya/go-account-service/config"
)

type Option func(*EmailData)

func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format("02 January 2006, 15:04")
	}
}

func WithChanges(ch map[string]string) Option {
	return func(d *EmailData) { d.Changes = ch }
}

// NewBaseEmailData fills the branding fields from config, then applies opts.
func NewBaseEmailData(cfg *config.Config, typ, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:  name,
		Email: email,
		Type:  typ,

		CompanyName: cfg.CompanyName,
		AppName:     cfg.AppName,
		SupportURL:  cfg.SupportURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// FromJobData rebuilds EmailData from the loosely typed payload of a queued job.
func FromJobData(cfg *config.Config, typ, to string, data map[string]any, opts ...Option) EmailData {
	name, _ := data["Name"].(string)
	email, _ := data["Email"].(string)
	if strings.TrimSpace(email) == "" {
		email = to
	}
	if raw, ok := data["Changes"].(map[string]any); ok && len(raw) > 0 {
		ch := make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				ch[k] = s
			}
		}
		opts = append([]Option{WithChanges(ch)}, opts...)
	}
	return NewBaseEmailData(cfg, typ, name, email, opts...)
}
