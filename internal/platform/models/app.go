package models

// App is a tenant of the hub. Every other entity is owned by an App.
type App struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Provider       string                 `json:"provider"`
	APIKeyPrefix   string                 `json:"api_key_prefix"`
	APIKeyHash     string                 `json:"-"`
	WebhookSecret  string                 `json:"-"`
	WebhookURL     string                 `json:"webhook_url"`
	Active         bool                   `json:"active"`
	NotifyOnExpiry bool                   `json:"notify_on_expiry"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"` // JSON object in DB
	CreatedAt      int64                  `json:"created_at"`
	UpdatedAt      int64                  `json:"updated_at"`
}
