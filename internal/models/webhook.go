package models

import "time"

// WebhookEvent is one payload accepted by the webhook receiver.
// Verified is true when an HMAC signature was present and matched the
// secret registered for the source.
type WebhookEvent struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	ReceivedAt time.Time              `json:"received_at"`
	Verified   bool                   `json:"verified"`
	Payload    map[string]interface{} `json:"payload"`
}
