package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cardpay/internal/model"
	"cardpay/internal/repository"
	"cardpay/internal/testutil"
)

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	return repository.New(testutil.NewTestDB(t))
}

func seedUser(t *testing.T, repos *repository.Repositories, email string) *model.User {
	t.Helper()
	user := &model.User{ID: uuid.New(), Email: email, PasswordHash: "x", IsActive: true}
	require.NoError(t, repos.Users.Create(context.Background(), user))
	return user
}

func seedCard(t *testing.T, svc CardService, userID uuid.UUID, isDefault bool) *model.Card {
	t.Helper()
	card, err := svc.Create(context.Background(), userID, CreateCardInput{
		CardHolderName: "Jane Doe",
		CardNumber:     "4111 1111 1111 1111",
		CardType:       model.CardNetworkVisa,
		ExpiryMonth:    12,
		ExpiryYear:     2030,
		IsDefault:      isDefault,
	})
	require.NoError(t, err)
	return card
}

func seedTransaction(t *testing.T, svc TransactionService, userID, cardID uuid.UUID, amount string) *model.Transaction {
	t.Helper()
	txn, err := svc.Create(context.Background(), userID, CreateTransactionInput{
		CardID:       cardID,
		Amount:       decimal.RequireFromString(amount),
		MerchantName: "Coffee Shop",
	})
	require.NoError(t, err)
	return txn
}

func countDefaults(t *testing.T, svc CardService, userID uuid.UUID) int {
	t.Helper()
	cards, err := svc.List(context.Background(), userID)
	require.NoError(t, err)
	n := 0
	for _, card := range cards {
		if card.IsDefault {
			n++
		}
	}
	return n
}
