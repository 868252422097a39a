// internal/workers/application/send-notification/config.go
package sendnotification

import (
	"time"

	"internship-portal/internal/common/config"
)

type Config struct {
	EmailEnabled     bool
	SMSEnabled       bool
	RealtimeEnabled  bool
	AdminAlerts      bool
	TemplateRegistry string
	Timeout          time.Duration
}

// LoadConfig derives the worker settings from the application config.
func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		EmailEnabled:     cfg.Notifications.Email.Enabled,
		SMSEnabled:       cfg.Notifications.SMS.Enabled,
		RealtimeEnabled:  true,
		AdminAlerts:      cfg.Notifications.Discord.Enabled,
		TemplateRegistry: cfg.Notifications.TemplateRegistry,
		Timeout:          30 * time.Second,
	}
	if w, ok := cfg.Workers[TaskType]; ok && w.Timeout > 0 {
		c.Timeout = time.Duration(w.Timeout) * time.Millisecond
	}
	return c
}
