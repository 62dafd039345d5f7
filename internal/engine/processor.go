package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/ledgerclient"
	"cardpay/internal/metrics"
	"cardpay/internal/model"
)

// ServiceName is the subject of the service token used for status updates.
const ServiceName = "payment-engine"

// Ledger is the subset of the ledger API the engine drives.
type Ledger interface {
	CreateTransaction(ctx context.Context, token string, req ledgerclient.CreateTransactionRequest) (*ledgerclient.Transaction, error)
	UpdateStatus(ctx context.Context, token, referenceID string, req ledgerclient.StatusUpdate) (*ledgerclient.Transaction, error)
	GetTransaction(ctx context.Context, token, referenceID string) (*ledgerclient.Transaction, error)
}

// TokenMinter issues short-lived service tokens.
type TokenMinter interface {
	GenerateServiceToken(serviceName string) (string, error)
}

// PaymentRequest is a payment submitted by an authenticated user.
type PaymentRequest struct {
	CardID       string
	Amount       decimal.Decimal
	Currency     string
	MerchantName string
	Description  string
}

// PaymentOutcome is the engine's answer for a processed payment.
type PaymentOutcome struct {
	ReferenceID   string    `json:"reference_id"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	MerchantName  string    `json:"merchant_name"`
	ProcessedAt   time.Time `json:"processed_at"`
	CardID        string    `json:"card_id"`
	UserID        string    `json:"user_id"`
}

// Processor runs a payment through the ledger and the decider.
type Processor struct {
	ledger  Ledger
	tokens  TokenMinter
	decider *Decider
	logger  *slog.Logger
	now     func() time.Time
}

func NewProcessor(ledger Ledger, tokens TokenMinter, decider *Decider, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		ledger:  ledger,
		tokens:  tokens,
		decider: decider,
		logger:  logger,
		now:     time.Now,
	}
}

// Process records the payment as PENDING using the caller's token, decides it,
// and writes the decision back with a service token. If the write-back fails
// the returned *errors.RelayError names the transaction left PENDING.
func (p *Processor) Process(ctx context.Context, bearer string, req PaymentRequest) (*PaymentOutcome, error) {
	if !req.Amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}

	pending, err := p.ledger.CreateTransaction(ctx, bearer, ledgerclient.CreateTransactionRequest{
		CardID:       req.CardID,
		Amount:       req.Amount.String(),
		Currency:     req.Currency,
		MerchantName: req.MerchantName,
		Description:  req.Description,
	})
	if err != nil {
		return nil, err
	}

	decision, err := p.decider.Decide(req.Amount)
	if err != nil {
		return nil, err
	}
	metrics.Decisions.WithLabelValues(string(decision.Status)).Inc()

	final, err := p.relay(ctx, pending.ReferenceID, decision)
	if err != nil {
		p.logger.Error("decision relay failed",
			slog.String("reference_id", pending.ReferenceID),
			slog.String("status", string(decision.Status)),
			slog.Any("error", err),
		)
		return nil, &apperrors.RelayError{ReferenceID: pending.ReferenceID, Err: err}
	}

	p.logger.Info("payment processed",
		slog.String("reference_id", final.ReferenceID),
		slog.String("status", final.Status),
	)

	outcome := &PaymentOutcome{
		ReferenceID:   final.ReferenceID,
		Status:        final.Status,
		FailureReason: final.FailureReason,
		Amount:        req.Amount.StringFixed(2),
		Currency:      pending.Currency,
		MerchantName:  pending.MerchantName,
		ProcessedAt:   p.now().UTC(),
		CardID:        req.CardID,
		UserID:        pending.UserID,
	}
	if amount, err := decimal.NewFromString(pending.Amount); err == nil {
		outcome.Amount = amount.StringFixed(2)
	}
	if pending.CardID != nil {
		outcome.CardID = *pending.CardID
	}
	return outcome, nil
}

func (p *Processor) relay(ctx context.Context, referenceID string, decision Decision) (*ledgerclient.Transaction, error) {
	token, err := p.tokens.GenerateServiceToken(ServiceName)
	if err != nil {
		return nil, fmt.Errorf("mint service token: %w", err)
	}

	update := ledgerclient.StatusUpdate{Status: string(decision.Status)}
	if decision.Status == model.TransactionStatusFailed {
		update.FailureReason = decision.FailureReason
	}

	txn, err := p.ledger.UpdateStatus(ctx, token, referenceID, update)
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		return nil, err
	}

	// An earlier attempt may have committed before its response was lost.
	current, getErr := p.ledger.GetTransaction(ctx, token, referenceID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status != string(decision.Status) {
		return nil, err
	}
	p.logger.Info("status already recorded", slog.String("reference_id", referenceID))
	return current, nil
}
