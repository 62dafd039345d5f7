package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/model"
)

func adminActor(t *testing.T) Actor {
	t.Helper()
	id := uuid.New()
	return Actor{ID: &id, Subject: id.String(), Email: "admin@example.com", Role: model.RoleAdmin, IP: "192.0.2.1"}
}

func TestAdminService_UpdateUser(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewAdminService(repos, nil, nil)
	user := seedUser(t, repos, "jane@example.com")
	ctx := context.Background()

	inactive := false
	promoted := true
	got, err := svc.UpdateUser(ctx, adminActor(t), user.ID, UpdateUserInput{IsActive: &inactive, IsAdmin: &promoted})
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.True(t, got.IsAdmin)

	logs, err := svc.ListLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AdminActionUpdate, logs[0].Action)
	assert.Equal(t, "User", logs[0].TargetModel)
	assert.Equal(t, user.ID.String(), logs[0].TargetID)
	assert.Equal(t, "admin@example.com", logs[0].AdminEmail)

	_, err = svc.UpdateUser(ctx, adminActor(t), uuid.New(), UpdateUserInput{IsActive: &inactive})
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestAdminService_DeleteUserCascades(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewAdminService(repos, nil, nil)
	cards := NewCardService(repos.Cards, nil)
	txns := NewTransactionService(repos, nil)
	user := seedUser(t, repos, "jane@example.com")
	keep := seedUser(t, repos, "keep@example.com")
	ctx := context.Background()

	card := seedCard(t, cards, user.ID, true)
	seedTransaction(t, txns, user.ID, card.ID, "12.00")
	keepCard := seedCard(t, cards, keep.ID, true)
	seedTransaction(t, txns, keep.ID, keepCard.ID, "13.00")

	require.NoError(t, svc.DeleteUser(ctx, adminActor(t), user.ID))

	_, err := svc.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	allCards, err := svc.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, allCards, 1)
	assert.Equal(t, keepCard.ID, allCards[0].ID)
	require.NotNil(t, allCards[0].User)
	assert.Equal(t, "keep@example.com", allCards[0].User.Email)

	page, err := svc.ListTransactions(ctx, TransactionQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	logs, err := svc.ListLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AdminActionDelete, logs[0].Action)

	assert.ErrorIs(t, svc.DeleteUser(ctx, adminActor(t), user.ID), apperrors.ErrUserNotFound)
}

func TestAdminService_ListTransactionsByUser(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewAdminService(repos, nil, nil)
	cards := NewCardService(repos.Cards, nil)
	txns := NewTransactionService(repos, nil)
	a := seedUser(t, repos, "a@example.com")
	b := seedUser(t, repos, "b@example.com")
	ctx := context.Background()

	seedTransaction(t, txns, a.ID, seedCard(t, cards, a.ID, false).ID, "1.00")
	seedTransaction(t, txns, b.ID, seedCard(t, cards, b.ID, false).ID, "2.00")

	page, err := svc.ListTransactions(ctx, TransactionQuery{UserID: b.ID.String()})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, b.ID, page.Items[0].UserID)

	_, err = svc.ListTransactions(ctx, TransactionQuery{UserID: "nope"})
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAdminService_DailySummary(t *testing.T) {
	repos := newTestRepos(t)
	svc := NewAdminService(repos, nil, nil)
	cards := NewCardService(repos.Cards, nil)
	txns := NewTransactionService(repos, nil)
	user := seedUser(t, repos, "jane@example.com")
	card := seedCard(t, cards, user.ID, false)
	ctx := context.Background()

	ok1 := seedTransaction(t, txns, user.ID, card.ID, "10.50")
	ok2 := seedTransaction(t, txns, user.ID, card.ID, "4.25")
	bad := seedTransaction(t, txns, user.ID, card.ID, "100.00")
	seedTransaction(t, txns, user.ID, card.ID, "1.00")
	for _, ref := range []string{ok1.ReferenceID, ok2.ReferenceID} {
		_, err := txns.UpdateStatus(ctx, engineActor, ref, model.TransactionStatusSuccess, "")
		require.NoError(t, err)
	}
	_, err := txns.UpdateStatus(ctx, engineActor, bad.ReferenceID, model.TransactionStatusFailed, "Suspicious activity detected")
	require.NoError(t, err)

	rows, err := svc.DailySummary(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	today := time.Now().UTC().Format("2006-01-02")
	byStatus := map[model.TransactionStatus]DailySummaryRow{}
	for _, r := range rows {
		assert.Equal(t, today, r.Date)
		byStatus[r.Status] = r
	}
	assert.Equal(t, int64(2), byStatus[model.TransactionStatusSuccess].Count)
	assert.Equal(t, "14.75", byStatus[model.TransactionStatusSuccess].Total.StringFixed(2))
	assert.Equal(t, int64(1), byStatus[model.TransactionStatusFailed].Count)
	assert.Equal(t, "100.00", byStatus[model.TransactionStatusFailed].Total.StringFixed(2))
	assert.Equal(t, int64(1), byStatus[model.TransactionStatusPending].Count)

	rows, err = svc.DailySummary(ctx, "2000-01-01", "2000-01-31")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
