package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardpay/internal/auth"
	"cardpay/internal/cache"
	"cardpay/internal/config"
	"cardpay/internal/engine"
	"cardpay/internal/handler"
	"cardpay/internal/ledgerclient"
	"cardpay/internal/metrics"
	"cardpay/internal/repository"
	"cardpay/internal/seed"
	"cardpay/internal/service"
	"cardpay/internal/testutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stack struct {
	repos  *repository.Repositories
	jwt    *auth.JWTService
	ledger *httptest.Server
	engine *httptest.Server
}

func newStack(t *testing.T, cfg *config.Config, decider *engine.Decider) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	keys, err := auth.NewKeyring(map[string][]byte{"k1": []byte(testSecret)}, "k1")
	require.NoError(t, err)
	jwtService := auth.NewJWTService(keys, "cardpay")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cacheClient := cache.Wrap(rdb, logger)

	repos := repository.New(testutil.NewTestDB(t))
	ledgerReg := prometheus.NewRegistry()
	metrics.RegisterLedger(ledgerReg)
	le := New(cfg, logger, ledgerReg)
	RegisterLedger(le, cfg, jwtService, LedgerHandlers{
		Auth:         handler.NewAuthHandler(service.NewAuthService(repos.Users, jwtService, auth.NewTokenStore(rdb), cacheClient, logger)),
		Cards:        handler.NewCardHandler(service.NewCardService(repos.Cards, logger)),
		Transactions: handler.NewTransactionHandler(service.NewTransactionService(repos, logger)),
		Admin:        handler.NewAdminHandler(service.NewAdminService(repos, cacheClient, logger)),
	})
	ledgerSrv := httptest.NewServer(le)
	t.Cleanup(ledgerSrv.Close)

	client := ledgerclient.New(ledgerclient.Config{BaseURL: ledgerSrv.URL, Timeout: 2 * time.Second, Logger: logger})
	engineReg := prometheus.NewRegistry()
	metrics.RegisterEngine(engineReg)
	ee := New(cfg, logger, engineReg)
	RegisterEngine(ee, jwtService, handler.NewPaymentHandler(engine.NewProcessor(client, jwtService, decider, logger)))
	engineSrv := httptest.NewServer(ee)
	t.Cleanup(engineSrv.Close)

	return &stack{repos: repos, jwt: jwtService, ledger: ledgerSrv, engine: engineSrv}
}

func call(t *testing.T, method, url, token string, body interface{}) (int, map[string]interface{}, string) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out, string(raw)
}

func registerAndLogin(t *testing.T, s *stack, email string) string {
	t.Helper()
	status, _, raw := call(t, http.MethodPost, s.ledger.URL+"/api/auth/register", "", map[string]string{
		"email": email, "password": "Str0ngPass!", "password2": "Str0ngPass!",
	})
	require.Equal(t, http.StatusCreated, status, raw)
	return login(t, s, email, "Str0ngPass!")
}

func login(t *testing.T, s *stack, email, password string) string {
	t.Helper()
	status, body, raw := call(t, http.MethodPost, s.ledger.URL+"/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, status, raw)
	return body["access"].(string)
}

func addCard(t *testing.T, s *stack, token, number string) map[string]interface{} {
	t.Helper()
	status, body, raw := call(t, http.MethodPost, s.ledger.URL+"/api/cards", token, map[string]interface{}{
		"card_holder_name": "Jane Doe",
		"card_number":      number,
		"card_type":        "visa",
		"expiry_month":     12,
		"expiry_year":      2030,
		"is_default":       true,
	})
	require.Equal(t, http.StatusCreated, status, raw)
	return body
}

func TestPaymentFlow(t *testing.T) {
	s := newStack(t, &config.Config{}, engine.NewDecider(engine.DeciderConfig{Seed: 1}))
	token := registerAndLogin(t, s, "jane@example.com")

	card := addCard(t, s, token, "4111-1111-1111-1234")
	assert.Equal(t, "**** **** **** 1234", card["masked_number"])
	assert.Equal(t, "1234", card["last_four_digits"])
	assert.NotContains(t, card, "card_number")

	status, outcome, raw := call(t, http.MethodPost, s.engine.URL+"/payments/process", token, map[string]interface{}{
		"card_id":       card["id"],
		"amount":        "250.00",
		"merchant_name": "Coffee Shop",
	})
	require.Equal(t, http.StatusOK, status, raw)
	assert.Equal(t, "SUCCESS", outcome["status"])
	assert.Equal(t, "250.00", outcome["amount"])
	assert.Equal(t, "USD", outcome["currency"])
	assert.Equal(t, card["id"], outcome["card_id"])
	assert.Len(t, outcome["reference_id"], 20)

	status, page, raw := call(t, http.MethodGet, s.ledger.URL+"/api/transactions", token, nil)
	require.Equal(t, http.StatusOK, status, raw)
	assert.EqualValues(t, 1, page["count"])
	results := page["results"].([]interface{})
	require.Len(t, results, 1)
	txn := results[0].(map[string]interface{})
	assert.Equal(t, "SUCCESS", txn["status"])
	assert.Equal(t, "250.00", txn["amount"])
	assert.Equal(t, outcome["reference_id"], txn["reference_id"])
	assert.Equal(t, "**** **** **** 1234", txn["card_detail"].(map[string]interface{})["masked_number"])
	assert.NotContains(t, raw, "4111-1111")
	assert.NotContains(t, raw, "card_number")

	// A replayed settlement loses.
	serviceToken, err := s.jwt.GenerateServiceToken(engine.ServiceName)
	require.NoError(t, err)
	status, body, _ := call(t, http.MethodPatch, s.ledger.URL+"/api/internal/transactions/"+txn["reference_id"].(string)+"/status", serviceToken,
		map[string]string{"status": "FAILED", "failure_reason": "Insufficient funds"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", body["code"])
}

func TestDeclinedPaymentIsRecordedAsFailed(t *testing.T) {
	decider := engine.NewDecider(engine.DeciderConfig{Seed: 1, DeclineRate: 1, HighValueDeclineRate: 1})
	s := newStack(t, &config.Config{}, decider)
	token := registerAndLogin(t, s, "jane@example.com")
	card := addCard(t, s, token, "5500 0000 0000 0004")

	status, outcome, raw := call(t, http.MethodPost, s.engine.URL+"/payments/process", token, map[string]interface{}{
		"card_id":       card["id"],
		"amount":        6000,
		"merchant_name": "Electronics",
	})
	require.Equal(t, http.StatusOK, status, raw)
	assert.Equal(t, "FAILED", outcome["status"])
	assert.Contains(t, engine.DeclineReasons, outcome["failure_reason"])
	assert.Equal(t, "6000.00", outcome["amount"])

	txn, err := s.repos.Transactions.FindByReference(context.Background(), outcome["reference_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "FAILED", string(txn.Status))
	assert.Equal(t, outcome["failure_reason"], txn.FailureReason)
}

func TestEngineRejections(t *testing.T) {
	s := newStack(t, &config.Config{}, engine.NewDecider(engine.DeciderConfig{Seed: 1}))
	token := registerAndLogin(t, s, "jane@example.com")
	card := addCard(t, s, token, "4111111111111111")

	tests := []struct {
		name       string
		token      string
		body       map[string]interface{}
		wantStatus int
		wantCode   string
	}{
		{"missing token", "", map[string]interface{}{"card_id": card["id"], "amount": "10", "merchant_name": "M"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", "not-a-jwt", map[string]interface{}{"card_id": card["id"], "amount": "10", "merchant_name": "M"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"zero amount", token, map[string]interface{}{"card_id": card["id"], "amount": "0", "merchant_name": "M"}, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"negative amount", token, map[string]interface{}{"card_id": card["id"], "amount": "-5", "merchant_name": "M"}, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"foreign card", token, map[string]interface{}{"card_id": "6f1c1f0e-2f57-4a8e-9a55-1f1b6a0f0c11", "amount": "10", "merchant_name": "M"}, http.StatusNotFound, "CARD_NOT_FOUND"},
		{"missing merchant", token, map[string]interface{}{"card_id": card["id"], "amount": "10"}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, raw := call(t, http.MethodPost, s.engine.URL+"/payments/process", tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, status, raw)
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}

	_, total, err := s.repos.Transactions.List(context.Background(), repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestEngineHealth(t *testing.T) {
	s := newStack(t, &config.Config{}, engine.NewDecider(engine.DeciderConfig{Seed: 1}))

	status, body, _ := call(t, http.MethodGet, s.engine.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"status": "healthy", "service": "payment-processing", "version": "1.0.0"}, body)
}

func TestRoleEnforcement(t *testing.T) {
	s := newStack(t, &config.Config{}, engine.NewDecider(engine.DeciderConfig{Seed: 1}))
	userToken := registerAndLogin(t, s, "jane@example.com")
	serviceToken, err := s.jwt.GenerateServiceToken(engine.ServiceName)
	require.NoError(t, err)

	status, body, _ := call(t, http.MethodPatch, s.ledger.URL+"/api/internal/transactions/ABC/status", userToken, map[string]string{"status": "SUCCESS"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, _, _ = call(t, http.MethodGet, s.ledger.URL+"/api/admin-panel/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _, _ = call(t, http.MethodGet, s.ledger.URL+"/api/cards", serviceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body, _ = call(t, http.MethodPatch, s.ledger.URL+"/api/internal/transactions/ABC/status", serviceToken, map[string]string{"status": "SUCCESS"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "TRANSACTION_NOT_FOUND", body["code"])
}

func TestAdminSettlementIsAudited(t *testing.T) {
	s := newStack(t, &config.Config{}, engine.NewDecider(engine.DeciderConfig{Seed: 1}))
	ctx := context.Background()

	_, err := seed.New(s.repos, nil).EnsureAdmin(ctx, seed.DefaultAdminEmail, seed.DefaultAdminPassword)
	require.NoError(t, err)
	adminToken := login(t, s, seed.DefaultAdminEmail, seed.DefaultAdminPassword)

	userToken := registerAndLogin(t, s, "jane@example.com")
	card := addCard(t, s, userToken, "4111111111111111")
	status, txn, raw := call(t, http.MethodPost, s.ledger.URL+"/api/transactions", userToken, map[string]interface{}{
		"card_id": card["id"], "amount": "19.99", "merchant_name": "Bookshop",
	})
	require.Equal(t, http.StatusCreated, status, raw)
	assert.Equal(t, "PENDING", txn["status"])

	ref := txn["reference_id"].(string)
	req, err := http.NewRequest(http.MethodPatch, s.ledger.URL+"/api/internal/transactions/"+ref+"/status",
		strings.NewReader(`{"status":"success"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status, _, raw = call(t, http.MethodGet, s.ledger.URL+"/api/admin-panel/logs", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	var logs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "UPDATE", logs[0]["action"])
	assert.Equal(t, ref, logs[0]["target_id"])
	assert.Equal(t, seed.DefaultAdminEmail, logs[0]["admin"])
	assert.Equal(t, "203.0.113.7", logs[0]["ip_address"])
}

func TestRefreshAndLogout(t *testing.T) {
	s := newStack(t, &config.Config{}, engine.NewDecider(engine.DeciderConfig{Seed: 1}))
	registerAndLogin(t, s, "jane@example.com")

	status, body, _ := call(t, http.MethodPost, s.ledger.URL+"/api/auth/login", "", map[string]string{
		"email": "jane@example.com", "password": "Str0ngPass!",
	})
	require.Equal(t, http.StatusOK, status)
	access, refresh := body["access"].(string), body["refresh"].(string)

	status, body, _ = call(t, http.MethodPost, s.ledger.URL+"/api/auth/token/refresh", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["access"])

	// A refresh token is not an access token.
	status, _, _ = call(t, http.MethodGet, s.ledger.URL+"/api/auth/profile", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _, _ = call(t, http.MethodPost, s.ledger.URL+"/api/auth/logout", access, map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, status)

	status, body, _ = call(t, http.MethodPost, s.ledger.URL+"/api/auth/token/refresh", "", map[string]string{"refresh": refresh})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", body["code"])
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newStack(t, &config.Config{LoginRateLimit: 0.01}, engine.NewDecider(engine.DeciderConfig{Seed: 1}))

	creds := map[string]string{"email": "nobody@example.com", "password": "whatever"}
	status, _, _ := call(t, http.MethodPost, s.ledger.URL+"/api/auth/login", "", creds)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body, _ := call(t, http.MethodPost, s.ledger.URL+"/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", body["code"])
}
