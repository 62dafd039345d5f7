package service

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/model"
)

var referencePattern = regexp.MustCompile(`^[0-9A-F]{20}$`)

var engineActor = Actor{Subject: "payment-engine", Role: model.RoleService}

func TestTransactionService_CreateReferencesAreUnique(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewTransactionService(repos, nil)
	user := seedUser(t, repos, "jane@example.com")
	card := seedCard(t, NewCardService(repos.Cards, nil), user.ID, true)

	const n = 1000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		txn := seedTransaction(t, svc, user.ID, card.ID, "1.00")
		require.Regexp(t, referencePattern, txn.ReferenceID)
		_, dup := seen[txn.ReferenceID]
		require.False(t, dup, "duplicate reference %s", txn.ReferenceID)
		seen[txn.ReferenceID] = struct{}{}
	}

	page, err := svc.List(context.Background(), user.ID, TransactionQuery{PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, n, page.Total)
}

func TestTransactionService_Create(t *testing.T) {
	repos := newTestRepos(t)
	cards := NewCardService(repos.Cards, nil)
	svc := NewTransactionService(repos, nil)
	user := seedUser(t, repos, "jane@example.com")
	other := seedUser(t, repos, "other@example.com")
	card := seedCard(t, cards, user.ID, true)
	ctx := context.Background()

	txn, err := svc.Create(ctx, user.ID, CreateTransactionInput{
		CardID:       card.ID,
		Amount:       decimal.RequireFromString("250.00"),
		Currency:     "usd",
		MerchantName: "Coffee Shop",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusPending, txn.Status)
	assert.Equal(t, "USD", txn.Currency)
	assert.Equal(t, "250.00", txn.Amount.StringFixed(2))
	assert.Regexp(t, referencePattern, txn.ReferenceID)
	assert.Empty(t, txn.FailureReason)

	_, err = svc.Create(ctx, other.ID, CreateTransactionInput{
		CardID:       card.ID,
		Amount:       decimal.NewFromInt(10),
		MerchantName: "Coffee Shop",
	})
	assert.ErrorIs(t, err, apperrors.ErrCardNotFound)
}

func TestTransactionService_CreateValidation(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewTransactionService(repos, nil)
	user := seedUser(t, repos, "jane@example.com")
	card := seedCard(t, NewCardService(repos.Cards, nil), user.ID, false)

	tests := []struct {
		name    string
		in      CreateTransactionInput
		wantErr error
		field   string
	}{
		{name: "zero amount", in: CreateTransactionInput{Amount: decimal.Zero, MerchantName: "m"}, wantErr: apperrors.ErrInvalidAmount},
		{name: "negative amount", in: CreateTransactionInput{Amount: decimal.NewFromInt(-5), MerchantName: "m"}, wantErr: apperrors.ErrInvalidAmount},
		{name: "three decimals", in: CreateTransactionInput{Amount: decimal.RequireFromString("1.005"), MerchantName: "m"}, field: "amount"},
		{name: "bad currency", in: CreateTransactionInput{Amount: decimal.NewFromInt(1), Currency: "US1", MerchantName: "m"}, field: "currency"},
		{name: "missing merchant", in: CreateTransactionInput{Amount: decimal.NewFromInt(1)}, field: "merchant_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.CardID = card.ID
			_, err := svc.Create(context.Background(), user.ID, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestTransactionService_RegeneratesDuplicateReference(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewTransactionService(repos, nil).(*transactionService)
	user := seedUser(t, repos, "jane@example.com")
	card := seedCard(t, NewCardService(repos.Cards, nil), user.ID, false)

	refs := []string{"AAAAAAAAAAAAAAAAAAAA", "AAAAAAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBBBBBB"}
	var mu sync.Mutex
	svc.newReference = func() string {
		mu.Lock()
		defer mu.Unlock()
		ref := refs[0]
		refs = refs[1:]
		return ref
	}

	first := seedTransaction(t, svc, user.ID, card.ID, "10.00")
	second := seedTransaction(t, svc, user.ID, card.ID, "11.00")
	assert.Equal(t, "AAAAAAAAAAAAAAAAAAAA", first.ReferenceID)
	assert.Equal(t, "BBBBBBBBBBBBBBBBBBBB", second.ReferenceID)
}

func TestTransactionService_UpdateStatus(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewTransactionService(repos, nil)
	user := seedUser(t, repos, "jane@example.com")
	card := seedCard(t, NewCardService(repos.Cards, nil), user.ID, false)
	ctx := context.Background()

	t.Run("success clears reason", func(t *testing.T) {
		txn := seedTransaction(t, svc, user.ID, card.ID, "250.00")
		got, err := svc.UpdateStatus(ctx, engineActor, txn.ReferenceID, model.TransactionStatusSuccess, "ignored")
		require.NoError(t, err)
		assert.Equal(t, model.TransactionStatusSuccess, got.Status)
		assert.Empty(t, got.FailureReason)
	})

	t.Run("failed requires reason", func(t *testing.T) {
		txn := seedTransaction(t, svc, user.ID, card.ID, "20.00")
		_, err := svc.UpdateStatus(ctx, engineActor, txn.ReferenceID, model.TransactionStatusFailed, " ")
		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "failure_reason")

		got, err := svc.UpdateStatus(ctx, engineActor, txn.ReferenceID, model.TransactionStatusFailed, "Insufficient funds")
		require.NoError(t, err)
		assert.Equal(t, model.TransactionStatusFailed, got.Status)
		assert.Equal(t, "Insufficient funds", got.FailureReason)
	})

	t.Run("terminal status is immutable", func(t *testing.T) {
		txn := seedTransaction(t, svc, user.ID, card.ID, "30.00")
		_, err := svc.UpdateStatus(ctx, engineActor, txn.ReferenceID, model.TransactionStatusSuccess, "")
		require.NoError(t, err)

		_, err = svc.UpdateStatus(ctx, engineActor, txn.ReferenceID, model.TransactionStatusFailed, "late")
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		_, err = svc.UpdateStatus(ctx, engineActor, txn.ReferenceID, model.TransactionStatusSuccess, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

		got, err := svc.GetByReference(ctx, txn.ReferenceID)
		require.NoError(t, err)
		assert.Equal(t, model.TransactionStatusSuccess, got.Status)
		assert.Empty(t, got.FailureReason)
	})

	t.Run("pending is not a target", func(t *testing.T) {
		txn := seedTransaction(t, svc, user.ID, card.ID, "40.00")
		_, err := svc.UpdateStatus(ctx, engineActor, txn.ReferenceID, model.TransactionStatusPending, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		_, err = svc.UpdateStatus(ctx, engineActor, txn.ReferenceID, "REFUNDED", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, engineActor, "00000000000000000000", model.TransactionStatusSuccess, "")
		assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	})

	t.Run("admin caller is audited", func(t *testing.T) {
		txn := seedTransaction(t, svc, user.ID, card.ID, "50.00")
		adminID := uuid.New()
		admin := Actor{ID: &adminID, Subject: adminID.String(), Email: "admin@example.com", Role: model.RoleAdmin, IP: "10.0.0.1"}
		_, err := svc.UpdateStatus(ctx, admin, txn.ReferenceID, model.TransactionStatusFailed, "manual review")
		require.NoError(t, err)

		logs, err := repos.AdminLogs.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, model.AdminActionUpdate, logs[0].Action)
		assert.Equal(t, txn.ReferenceID, logs[0].TargetID)
		assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
	})
}

func TestTransactionService_RacingUpdates(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewTransactionService(repos, nil)
	user := seedUser(t, repos, "jane@example.com")
	card := seedCard(t, NewCardService(repos.Cards, nil), user.ID, false)
	txn := seedTransaction(t, svc, user.ID, card.ID, "99.99")

	const callers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, reason := model.TransactionStatusSuccess, ""
			if i%2 == 1 {
				status, reason = model.TransactionStatusFailed, "Card declined by issuer"
			}
			_, err := svc.UpdateStatus(context.Background(), engineActor, txn.ReferenceID, status, reason)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, apperrors.ErrInvalidTransition):
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, rejected)
}

func TestTransactionService_List(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewTransactionService(repos, nil)
	user := seedUser(t, repos, "jane@example.com")
	other := seedUser(t, repos, "other@example.com")
	cards := NewCardService(repos.Cards, nil)
	card := seedCard(t, cards, user.ID, false)
	otherCard := seedCard(t, cards, other.ID, false)
	ctx := context.Background()

	small := seedTransaction(t, svc, user.ID, card.ID, "5.00")
	big := seedTransaction(t, svc, user.ID, card.ID, "6000.00")
	_ = seedTransaction(t, svc, other.ID, otherCard.ID, "7.00")
	_, err := svc.UpdateStatus(ctx, engineActor, big.ReferenceID, model.TransactionStatusFailed, "Insufficient funds")
	require.NoError(t, err)

	page, err := svc.List(ctx, user.ID, TransactionQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 2)
	require.NotNil(t, page.Items[0].Card)

	page, err = svc.List(ctx, user.ID, TransactionQuery{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, big.ID, page.Items[0].ID)

	page, err = svc.List(ctx, user.ID, TransactionQuery{AmountMax: "100", Ordering: "amount"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, small.ID, page.Items[0].ID)

	page, err = svc.List(ctx, user.ID, TransactionQuery{Ordering: "-amount"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, big.ID, page.Items[0].ID)

	page, err = svc.List(ctx, user.ID, TransactionQuery{Search: small.ReferenceID[:8]})
	require.NoError(t, err)
	assert.NotEmpty(t, page.Items)

	page, err = svc.List(ctx, user.ID, TransactionQuery{PageSize: 1, Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.Page)

	_, err = svc.List(ctx, user.ID, TransactionQuery{DateFrom: "yesterday"})
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "date_from")

	_, err = svc.Get(ctx, other.ID, small.ID)
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
}
