// internal/workers/application/send-notification/models.go
package sendnotification

import "internship-portal/internal/models"

// Output is written back as job variables.
type Output struct {
	NotificationID string                               `json:"notificationId"`
	Status         models.NotificationStatus            `json:"status"`
	Channels       map[string]models.NotificationStatus `json:"channels"`
	SentAt         string                               `json:"sentAt"`
}

const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelRealtime = "realtime"
	ChannelAdmin    = "admin"
)
