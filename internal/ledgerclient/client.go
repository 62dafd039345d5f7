package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/metrics"
)

const (
	defaultTimeout = 2 * time.Second
	defaultRetries = 3
)

// CreateTransactionRequest is the body of POST /api/transactions.
type CreateTransactionRequest struct {
	CardID       string `json:"card_id"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	MerchantName string `json:"merchant_name"`
	Description  string `json:"description,omitempty"`
}

// StatusUpdate is the body of the internal status endpoint.
type StatusUpdate struct {
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Transaction is the ledger's view of a transaction.
type Transaction struct {
	ID            string    `json:"id"`
	ReferenceID   string    `json:"reference_id"`
	UserID        string    `json:"user_id"`
	CardID        *string   `json:"card_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	MerchantName  string    `json:"merchant_name"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Config controls timeouts and retries.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the ledger API on behalf of the decision engine.
type Client struct {
	baseURL string
	timeout time.Duration
	retries int
	http    *http.Client
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New builds a ledger client.
func New(cfg Config) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
		sleep:   sleepCtx,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.retries <= 0 {
		c.retries = defaultRetries
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// CreateTransaction records a PENDING transaction as the token's user.
// It is attempted once because a repeat could create a second transaction.
func (c *Client) CreateTransaction(ctx context.Context, token string, req CreateTransactionRequest) (*Transaction, error) {
	var txn Transaction
	err := c.attempt(ctx, "create", http.MethodPost, "/api/transactions", token, req, &txn)
	if err != nil {
		if isRetriable(err) {
			return nil, fmt.Errorf("%w: create transaction: %v", apperrors.ErrDownstreamUnavailable, err)
		}
		return nil, err
	}
	return &txn, nil
}

// UpdateStatus relays a decision. Retried on transport failures, 429 and 5xx.
func (c *Client) UpdateStatus(ctx context.Context, token, referenceID string, req StatusUpdate) (*Transaction, error) {
	var txn Transaction
	path := "/api/internal/transactions/" + url.PathEscape(referenceID) + "/status"
	if err := c.withRetry(ctx, "update_status", http.MethodPatch, path, token, req, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetTransaction reads a transaction by reference id.
func (c *Client) GetTransaction(ctx context.Context, token, referenceID string) (*Transaction, error) {
	var txn Transaction
	path := "/api/internal/transactions/" + url.PathEscape(referenceID)
	if err := c.withRetry(ctx, "get", http.MethodGet, path, token, nil, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (c *Client) withRetry(ctx context.Context, op, method, path, token string, body, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		err := c.attempt(ctx, op, method, path, token, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetriable(err) {
			return err
		}
		c.logger.Warn("ledger call failed",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if attempt < c.retries {
			if err := c.sleep(ctx, backoffDuration(attempt)); err != nil {
				break
			}
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", apperrors.ErrDownstreamUnavailable, op, c.retries, lastErr)
}

func (c *Client) attempt(ctx context.Context, op, method, path, token string, body, out interface{}) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.do(attemptCtx, method, path, token, body, out)
	result := "ok"
	switch {
	case err == nil:
	case isRetriable(err):
		result = "retriable"
	default:
		result = "rejected"
	}
	metrics.LedgerCalls.WithLabelValues(op, result).Inc()
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &transportError{err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode ledger response: %w", err)
		}
		return nil
	}
	return decodeError(resp.StatusCode, data)
}

// transportError marks timeouts and connection failures.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "ledger transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// statusError is a non-2xx response without a known error code.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger responded %d: %s", e.code, e.body)
}

var codeErrors = map[string]error{
	"INVALID_AMOUNT":        apperrors.ErrInvalidAmount,
	"INVALID_CARD_NUMBER":   apperrors.ErrInvalidCardNumber,
	"UNAUTHORIZED":          apperrors.ErrUnauthorized,
	"TOKEN_EXPIRED":         apperrors.ErrTokenExpired,
	"FORBIDDEN":             apperrors.ErrForbidden,
	"NOT_FOUND":             apperrors.ErrNotFound,
	"CARD_NOT_FOUND":        apperrors.ErrCardNotFound,
	"TRANSACTION_NOT_FOUND": apperrors.ErrTransactionNotFound,
	"USER_NOT_FOUND":        apperrors.ErrUserNotFound,
	"INVALID_TRANSITION":    apperrors.ErrInvalidTransition,
	"CONFLICT":              apperrors.ErrConflict,
}

func decodeError(status int, data []byte) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return &statusError{code: status, body: truncate(string(data))}
	}

	var body apperrors.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Code == "VALIDATION_ERROR" {
			return &apperrors.ValidationError{Fields: body.Fields}
		}
		if sentinel, ok := codeErrors[body.Code]; ok {
			return sentinel
		}
	}
	if status == http.StatusUnauthorized {
		return apperrors.ErrUnauthorized
	}
	return &statusError{code: status, body: truncate(string(data))}
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError
	}
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func backoffDuration(attempt int) time.Duration {
	base := 100 * time.Millisecond
	if attempt <= 1 {
		return base
	}
	return base * time.Duration(attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
