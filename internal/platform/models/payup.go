package models

// PayupStatus is the closed status enum of a payment session.
type PayupStatus string

const (
	PayupPending    PayupStatus = "pending"
	PayupProcessing PayupStatus = "processing"
	PayupCompleted  PayupStatus = "completed"
	PayupFailed     PayupStatus = "failed"
	PayupCancelled  PayupStatus = "cancelled"
	PayupExpired    PayupStatus = "expired"
)

// Terminal reports whether no further transition is allowed from s.
func (s PayupStatus) Terminal() bool {
	switch s {
	case PayupCompleted, PayupFailed, PayupCancelled, PayupExpired:
		return true
	}
	return false
}

// SettleableStatuses are the states a settlement or cancellation may move from.
var SettleableStatuses = []PayupStatus{PayupPending, PayupProcessing}

// Payup is a payment session: one attempted charge prior to settlement.
// CompletedAt is set iff Status is terminal; ExpiresAt is always set.
type Payup struct {
	ID            string                 `json:"id"`
	AppID         string                 `json:"app_id"`
	Amount        int64                  `json:"amount"` // integer minor units
	Currency      string                 `json:"currency"`
	Status        PayupStatus            `json:"status"`
	CustomerName  string                 `json:"customer_name,omitempty"`
	CustomerEmail string                 `json:"customer_email,omitempty"`
	ReturnURL     string                 `json:"return_url,omitempty"`
	CancelURL     string                 `json:"cancel_url,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`      // JSON object in DB
	ProviderData  map[string]interface{} `json:"provider_data,omitempty"` // JSON object in DB
	ExpiresAt     int64                  `json:"expires_at"`
	CompletedAt   *int64                 `json:"completed_at,omitempty"`
	CreatedAt     int64                  `json:"created_at"`
	UpdatedAt     int64                  `json:"updated_at"`
}

// Resource is the snapshot rendered into webhook payloads.
func (p *Payup) Resource() map[string]interface{} {
	res := map[string]interface{}{
		"id":         p.ID,
		"object":     "payup",
		"amount":     p.Amount,
		"currency":   p.Currency,
		"status":     string(p.Status),
		"expires_at": p.ExpiresAt,
		"created_at": p.CreatedAt,
	}
	if p.CompletedAt != nil {
		res["completed_at"] = *p.CompletedAt
	}
	if p.Metadata != nil {
		res["metadata"] = p.Metadata
	}
	return res
}
