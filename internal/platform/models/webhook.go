package models

// Event types emitted by the engine.
const (
	EventTransactionSettled = "transaction.settled"
	EventPayupExpired       = "payup.expired"
)

// WebhookTemplate is a tenant-configurable rendering format for an event
// type. At most one template per (app, event_type) carries IsDefault.
type WebhookTemplate struct {
	ID        string            `json:"id"`
	AppID     string            `json:"app_id"`
	Name      string            `json:"name"`
	EventType string            `json:"event_type"`
	IsDefault bool              `json:"is_default"`
	Format    string            `json:"format"`            // JSON render spec
	Headers   map[string]string `json:"headers,omitempty"` // JSON object in DB
	CreatedAt int64             `json:"created_at"`
	UpdatedAt int64             `json:"updated_at"`
}

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Per-attempt delivery states. A retrying attempt inserts the next scheduled
// row; delivered and exhausted are terminal for the logical event. Inbound
// rows use received.
const (
	DeliveryScheduled = "scheduled"
	DeliveryInFlight  = "in_flight"
	DeliveryDelivered = "delivered"
	DeliveryRetrying  = "retrying"
	DeliveryExhausted = "exhausted"
	DeliveryReceived  = "received"
)

// WebhookLog is one delivery attempt, not one logical event. Attempts of the
// same event share EventID and carry strictly increasing RetryCount.
type WebhookLog struct {
	ID            string            `json:"id"`
	AppID         string            `json:"app_id"`
	TransactionID *string           `json:"transaction_id,omitempty"`
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Direction     string            `json:"direction"`
	Status        string            `json:"status"`
	Payload       []byte            `json:"payload"`
	Headers       map[string]string `json:"headers,omitempty"` // JSON object in DB
	StatusCode    *int              `json:"status_code,omitempty"`
	ResponseBody  *string           `json:"response_body,omitempty"`
	ErrorMessage  *string           `json:"error_message,omitempty"`
	RetryCount    int               `json:"retry_count"`
	NextRetryAt   *int64            `json:"next_retry_at,omitempty"`
	ClaimedAt     *int64            `json:"claimed_at,omitempty"`
	ProcessedAt   *int64            `json:"processed_at,omitempty"`
	LatencyMS     *int64            `json:"latency_ms,omitempty"`
	CreatedAt     int64             `json:"created_at"`
}
