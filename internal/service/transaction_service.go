package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/metrics"
	"cardpay/internal/model"
	"cardpay/internal/repository"
)

const (
	referenceIDLength = 20
	referenceRetries  = 3
	defaultCurrency   = "USD"
	maxMerchantLength = 200
	maxDescription    = 500
	defaultPageSize   = 20
	maxPageSize       = 100
	dateLayout        = "2006-01-02"
)

// maxAmount is the first value that no longer fits decimal(12,2).
var maxAmount = decimal.New(1, 10)

// NewReferenceID returns 20 upper-case hex characters taken from a random UUID.
func NewReferenceID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:referenceIDLength]
}

// CreateTransactionInput carries a new PENDING transaction.
type CreateTransactionInput struct {
	CardID       uuid.UUID
	Amount       decimal.Decimal
	Currency     string
	MerchantName string
	Description  string
}

// TransactionQuery holds raw list filters as received on the query string.
type TransactionQuery struct {
	Status    string
	Search    string
	DateFrom  string
	DateTo    string
	AmountMin string
	AmountMax string
	UserID    string
	Ordering  string
	Page      int
	PageSize  int
}

// TransactionPage is one page of a filtered listing.
type TransactionPage struct {
	Items    []model.Transaction
	Total    int64
	Page     int
	PageSize int
}

// TransactionService records transactions and enforces the status state machine.
type TransactionService interface {
	Create(ctx context.Context, userID uuid.UUID, in CreateTransactionInput) (*model.Transaction, error)
	UpdateStatus(ctx context.Context, actor Actor, referenceID string, status model.TransactionStatus, failureReason string) (*model.Transaction, error)
	GetByReference(ctx context.Context, referenceID string) (*model.Transaction, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Transaction, error)
	List(ctx context.Context, userID uuid.UUID, q TransactionQuery) (*TransactionPage, error)
}

type transactionService struct {
	repos        *repository.Repositories
	newReference func() string
	log          *slog.Logger
}

// NewTransactionService creates a new transaction service.
func NewTransactionService(repos *repository.Repositories, log *slog.Logger) TransactionService {
	if log == nil {
		log = slog.Default()
	}
	return &transactionService{repos: repos, newReference: NewReferenceID, log: log}
}

func validateTransactionInput(in *CreateTransactionInput) error {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return apperrors.ErrInvalidAmount
	}

	verr := &apperrors.ValidationError{}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		verr.Add("amount", "must have at most 2 decimal places")
	}
	if in.Amount.GreaterThanOrEqual(maxAmount) {
		verr.Add("amount", "must be less than 10000000000")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if !isCurrencyCode(currency) {
		verr.Add("currency", "must be a 3-letter code")
	}
	in.Currency = currency

	in.MerchantName = strings.TrimSpace(in.MerchantName)
	switch {
	case in.MerchantName == "":
		verr.Add("merchant_name", "required")
	case len(in.MerchantName) > maxMerchantLength:
		verr.Add("merchant_name", "must be at most 200 characters")
	}
	if len(in.Description) > maxDescription {
		verr.Add("description", "must be at most 500 characters")
	}
	if !verr.Empty() {
		return verr
	}
	in.Amount = in.Amount.Round(2)
	return nil
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// Create records a PENDING transaction against one of the user's cards.
func (s *transactionService) Create(ctx context.Context, userID uuid.UUID, in CreateTransactionInput) (*model.Transaction, error) {
	if err := validateTransactionInput(&in); err != nil {
		return nil, err
	}

	card, err := s.repos.Cards.FindByIDForUser(ctx, in.CardID, userID)
	if err != nil {
		return nil, storeError(err, apperrors.ErrCardNotFound, "get card")
	}

	cardID := card.ID
	txn := &model.Transaction{
		UserID:       userID,
		CardID:       &cardID,
		Amount:       in.Amount,
		Currency:     in.Currency,
		MerchantName: in.MerchantName,
		Description:  in.Description,
		Status:       model.TransactionStatusPending,
	}

	for attempt := 0; ; attempt++ {
		txn.ID = uuid.New()
		txn.ReferenceID = s.newReference()
		err = s.repos.Transactions.Create(ctx, txn)
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) || attempt >= referenceRetries {
			return nil, storeError(err, nil, "create transaction")
		}
		s.log.Warn("reference id collision, regenerating", slog.Int("attempt", attempt+1))
	}

	txn.Card = card
	metrics.TransactionsCreated.Inc()
	s.log.Info("transaction created",
		slog.String("reference_id", txn.ReferenceID),
		slog.String("user_id", userID.String()),
		slog.String("amount", txn.Amount.StringFixed(2)),
		slog.String("currency", txn.Currency),
	)
	return txn, nil
}

// UpdateStatus moves a PENDING transaction to SUCCESS or FAILED exactly once.
// Concurrent callers race on a conditional update; losers get ErrInvalidTransition.
func (s *transactionService) UpdateStatus(ctx context.Context, actor Actor, referenceID string, status model.TransactionStatus, failureReason string) (*model.Transaction, error) {
	if !status.Terminal() {
		metrics.StatusTransitions.WithLabelValues("rejected").Inc()
		return nil, apperrors.ErrInvalidTransition
	}
	failureReason = strings.TrimSpace(failureReason)
	if status == model.TransactionStatusFailed && failureReason == "" {
		return nil, apperrors.NewValidationError("failure_reason", "required when status is FAILED")
	}
	if status == model.TransactionStatusSuccess {
		failureReason = ""
	}

	apply := func(ctx context.Context, repos *repository.Repositories) error {
		affected, err := repos.Transactions.UpdateStatusIfPending(ctx, referenceID, status, failureReason)
		if err != nil {
			return storeError(err, nil, "update status")
		}
		if affected == 0 {
			if _, err := repos.Transactions.FindByReference(ctx, referenceID); err != nil {
				return storeError(err, apperrors.ErrTransactionNotFound, "get transaction")
			}
			return apperrors.ErrInvalidTransition
		}
		if actor.Role == model.RoleAdmin {
			return recordAdminAction(ctx, repos.AdminLogs, actor, model.AdminActionUpdate, "Transaction", referenceID,
				fmt.Sprintf("Set transaction %s to %s", referenceID, status))
		}
		return nil
	}

	var err error
	if actor.Role == model.RoleAdmin {
		err = s.repos.Atomic(ctx, apply)
	} else {
		err = apply(ctx, s.repos)
	}
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidTransition):
			metrics.StatusTransitions.WithLabelValues("invalid_transition").Inc()
		case errors.Is(err, apperrors.ErrTransactionNotFound):
			metrics.StatusTransitions.WithLabelValues("not_found").Inc()
		default:
			metrics.StatusTransitions.WithLabelValues("error").Inc()
		}
		return nil, passThrough(err, "update status")
	}

	metrics.StatusTransitions.WithLabelValues(strings.ToLower(string(status))).Inc()
	s.log.Info("transaction status updated",
		slog.String("reference_id", referenceID),
		slog.String("status", string(status)),
		slog.String("actor", actor.Subject),
	)
	return s.GetByReference(ctx, referenceID)
}

func (s *transactionService) GetByReference(ctx context.Context, referenceID string) (*model.Transaction, error) {
	txn, err := s.repos.Transactions.FindByReference(ctx, referenceID)
	if err != nil {
		return nil, storeError(err, apperrors.ErrTransactionNotFound, "get transaction")
	}
	return txn, nil
}

// Get returns the transaction if it belongs to userID.
func (s *transactionService) Get(ctx context.Context, userID, id uuid.UUID) (*model.Transaction, error) {
	txn, err := s.repos.Transactions.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, apperrors.ErrTransactionNotFound, "get transaction")
	}
	if txn.UserID != userID {
		return nil, apperrors.ErrTransactionNotFound
	}
	return txn, nil
}

func (s *transactionService) List(ctx context.Context, userID uuid.UUID, q TransactionQuery) (*TransactionPage, error) {
	q.UserID = ""
	filter, err := ParseTransactionQuery(q)
	if err != nil {
		return nil, err
	}
	filter.UserID = &userID
	return listTransactions(ctx, s.repos.Transactions, filter)
}

func listTransactions(ctx context.Context, repo repository.TransactionRepository, filter repository.TransactionFilter) (*TransactionPage, error) {
	items, total, err := repo.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, nil, "list transactions")
	}
	page := 1
	if filter.Limit > 0 {
		page = filter.Offset/filter.Limit + 1
	}
	return &TransactionPage{Items: items, Total: total, Page: page, PageSize: filter.Limit}, nil
}

// ParseTransactionQuery validates raw filters into a repository filter.
// Dates are whole UTC days; date_to is inclusive.
func ParseTransactionQuery(q TransactionQuery) (repository.TransactionFilter, error) {
	var f repository.TransactionFilter
	verr := &apperrors.ValidationError{}

	if q.Status != "" {
		st := model.TransactionStatus(strings.ToUpper(q.Status))
		if !st.Valid() {
			verr.Add("status", "must be PENDING, SUCCESS or FAILED")
		}
		f.Status = st
	}
	f.Query = strings.TrimSpace(q.Search)

	if q.DateFrom != "" {
		d, err := time.ParseInLocation(dateLayout, q.DateFrom, time.UTC)
		if err != nil {
			verr.Add("date_from", "must be YYYY-MM-DD")
		} else {
			f.From = &d
		}
	}
	if q.DateTo != "" {
		d, err := time.ParseInLocation(dateLayout, q.DateTo, time.UTC)
		if err != nil {
			verr.Add("date_to", "must be YYYY-MM-DD")
		} else {
			until := d.AddDate(0, 0, 1)
			f.Until = &until
		}
	}
	if q.AmountMin != "" {
		d, err := decimal.NewFromString(q.AmountMin)
		if err != nil {
			verr.Add("amount_min", "must be a number")
		} else {
			f.AmountMin = &d
		}
	}
	if q.AmountMax != "" {
		d, err := decimal.NewFromString(q.AmountMax)
		if err != nil {
			verr.Add("amount_max", "must be a number")
		} else {
			f.AmountMax = &d
		}
	}
	if q.UserID != "" {
		id, err := uuid.Parse(q.UserID)
		if err != nil {
			verr.Add("user_id", "must be a UUID")
		} else {
			f.UserID = &id
		}
	}

	f.Ordering = "-created_at"
	if q.Ordering != "" {
		if !repository.ValidOrdering(q.Ordering) {
			verr.Add("ordering", "must be one of created_at, -created_at, amount, -amount")
		}
		f.Ordering = q.Ordering
	}

	page, size := q.Page, q.PageSize
	if page == 0 {
		page = 1
	}
	if page < 1 {
		verr.Add("page", "must be at least 1")
	}
	switch {
	case size == 0:
		size = defaultPageSize
	case size < 0:
		verr.Add("page_size", "must be positive")
	case size > maxPageSize:
		size = maxPageSize
	}
	if !verr.Empty() {
		return f, verr
	}
	f.Limit = size
	f.Offset = (page - 1) * size
	return f, nil
}
