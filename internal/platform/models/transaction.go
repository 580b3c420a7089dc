package models

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is the settled outcome of a Payup. Created exactly once per
// session by the settlement correlator; immutable afterwards.
type Transaction struct {
	ID            string                 `json:"id"`
	AppID         string                 `json:"app_id"`
	PayupID       string                 `json:"payup_id"`
	ExternalID    string                 `json:"external_id,omitempty"`
	Amount        int64                  `json:"amount"`
	Currency      string                 `json:"currency"`
	Status        TransactionStatus      `json:"status"`
	FailureReason string                 `json:"failure_reason,omitempty"`
	ProviderData  map[string]interface{} `json:"provider_data,omitempty"` // JSON object in DB
	Fees          *int64                 `json:"fees,omitempty"`
	NetAmount     *int64                 `json:"net_amount,omitempty"` // amount - fees when fees present
	CreatedAt     int64                  `json:"created_at"`
}

// Resource is the snapshot rendered into webhook payloads.
func (t *Transaction) Resource() map[string]interface{} {
	res := map[string]interface{}{
		"id":         t.ID,
		"object":     "transaction",
		"payup_id":   t.PayupID,
		"amount":     t.Amount,
		"currency":   t.Currency,
		"status":     string(t.Status),
		"created_at": t.CreatedAt,
	}
	if t.ExternalID != "" {
		res["external_id"] = t.ExternalID
	}
	if t.FailureReason != "" {
		res["failure_reason"] = t.FailureReason
	}
	if t.Fees != nil {
		res["fees"] = *t.Fees
	}
	if t.NetAmount != nil {
		res["net_amount"] = *t.NetAmount
	}
	return res
}
