package settlement

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	pkgerrors "payhub/internal/pkg/errors"
	"payhub/internal/pkg/validator"
	"payhub/internal/platform/models"
	"payhub/internal/platform/repositories"
)

type SessionStore interface {
	GetByID(id string) (*models.Payup, error)
}

type TransactionStore interface {
	GetByPayupID(payupID string) (*models.Transaction, error)
}

// SettleStore applies the status CAS and the Transaction insert atomically.
type SettleStore interface {
	Settle(payupID string, from []models.PayupStatus, to models.PayupStatus, txn *models.Transaction, now int64) error
}

type Notifier interface {
	Enqueue(appID, eventType string, transactionID *string, resource map[string]interface{}) error
}

// Input is one provider settlement callback. Providers may deliver it more
// than once; Settle must absorb duplicates.
type Input struct {
	PayupID       string
	ExternalID    string
	Amount        int64
	Currency      string
	Status        string
	Fees          *int64
	FailureReason string
	ProviderData  map[string]interface{}
}

// Correlator turns one settlement callback into exactly one Transaction.
type Correlator struct {
	payups       SessionStore
	transactions TransactionStore
	store        SettleStore
	notifier     Notifier
	now          func() time.Time
}

func NewCorrelator(payups SessionStore, transactions TransactionStore, store SettleStore, notifier Notifier) *Correlator {
	return &Correlator{
		payups:       payups,
		transactions: transactions,
		store:        store,
		notifier:     notifier,
		now:          time.Now,
	}
}

// Settle settles the session idempotently. A replayed callback for an
// already-settled session returns the existing Transaction; a callback for a
// session that expired or was cancelled first is a ConflictError.
func (c *Correlator) Settle(input Input) (*models.Transaction, error) {
	payup, err := c.payups.GetByID(input.PayupID)
	if err != nil {
		return nil, err
	}
	if payup == nil {
		return nil, &pkgerrors.NotFoundError{Resource: "payup", ID: input.PayupID}
	}

	currency, err := validator.NormalizeCurrency(input.Currency)
	if err != nil {
		return nil, &pkgerrors.ValidationError{Field: "currency", Reason: err.Error()}
	}
	if currency != payup.Currency {
		return nil, &pkgerrors.ValidationError{
			Field:  "currency",
			Reason: "settlement currency " + currency + " does not match session currency " + payup.Currency,
		}
	}

	payupStatus, txnStatus, err := mapOutcome(input.Status)
	if err != nil {
		return nil, err
	}

	if payup.Status.Terminal() {
		return c.replay(payup)
	}

	var netAmount *int64
	if input.Fees != nil {
		net := input.Amount - *input.Fees
		netAmount = &net
	}

	txn := &models.Transaction{
		AppID:         payup.AppID,
		PayupID:       payup.ID,
		ExternalID:    input.ExternalID,
		Amount:        input.Amount,
		Currency:      currency,
		Status:        txnStatus,
		FailureReason: input.FailureReason,
		ProviderData:  input.ProviderData,
		Fees:          input.Fees,
		NetAmount:     netAmount,
		CreatedAt:     c.now().Unix(),
	}

	err = c.store.Settle(payup.ID, models.SettleableStatuses, payupStatus, txn, c.now().Unix())
	if err != nil {
		if errors.Is(err, repositories.ErrTransitionConflict) {
			// A concurrent settlement, cancellation or expiry landed first.
			current, getErr := c.payups.GetByID(payup.ID)
			if getErr != nil {
				return nil, getErr
			}
			if current != nil && current.Status.Terminal() {
				return c.replay(current)
			}
			return nil, &pkgerrors.ConflictError{Reason: "payup " + payup.ID + " changed state during settlement"}
		}
		return nil, err
	}

	log.Info().
		Str("payup_id", payup.ID).
		Str("transaction_id", txn.ID).
		Str("app_id", payup.AppID).
		Str("status", string(txnStatus)).
		Msg("settlement recorded")

	// The scheduled WebhookLog row is durable, so this runs strictly after
	// the settlement transaction committed.
	if c.notifier != nil {
		if err := c.notifier.Enqueue(payup.AppID, models.EventTransactionSettled, &txn.ID, txn.Resource()); err != nil {
			log.Error().Err(err).Str("transaction_id", txn.ID).Msg("failed to enqueue settlement webhook")
		}
	}

	return txn, nil
}

// replay resolves a settlement against an already-terminal session.
func (c *Correlator) replay(payup *models.Payup) (*models.Transaction, error) {
	txn, err := c.transactions.GetByPayupID(payup.ID)
	if err != nil {
		return nil, err
	}
	if txn != nil {
		log.Debug().Str("payup_id", payup.ID).Str("transaction_id", txn.ID).Msg("duplicate settlement callback absorbed")
		return txn, nil
	}
	return nil, &pkgerrors.ConflictError{
		Reason: "payup " + payup.ID + " is " + string(payup.Status) + " with no settlement recorded",
	}
}

// mapOutcome translates a provider outcome into terminal statuses.
func mapOutcome(status string) (models.PayupStatus, models.TransactionStatus, error) {
	switch status {
	case "completed", "succeeded", "paid":
		return models.PayupCompleted, models.TransactionCompleted, nil
	case "failed", "declined":
		return models.PayupFailed, models.TransactionFailed, nil
	default:
		return "", "", &pkgerrors.ValidationError{Field: "status", Reason: "unknown settlement outcome: " + status}
	}
}
