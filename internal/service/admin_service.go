package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cardpay/internal/cache"
	apperrors "cardpay/internal/errors"
	"cardpay/internal/model"
	"cardpay/internal/repository"
)

const (
	adminLogLimit      = 200
	defaultSummaryDays = 30
)

// Actor identifies the caller of a privileged operation.
type Actor struct {
	ID      *uuid.UUID
	Subject string
	Email   string
	Role    string
	IP      string
}

func recordAdminAction(ctx context.Context, repo repository.AdminLogRepository, actor Actor, action model.AdminAction, target, targetID, description string) error {
	entry := &model.AdminLog{
		AdminID:     actor.ID,
		AdminEmail:  actor.Email,
		Action:      action,
		TargetModel: target,
		TargetID:    targetID,
		Description: description,
		IPAddress:   actor.IP,
	}
	if err := repo.Create(ctx, entry); err != nil {
		return storeError(err, nil, "write admin log")
	}
	return nil
}

// UpdateUserInput is a partial update of account flags.
type UpdateUserInput struct {
	IsActive *bool
	IsAdmin  *bool
}

// DailySummaryRow aggregates one (date, status) bucket.
type DailySummaryRow struct {
	Date   string
	Status model.TransactionStatus
	Count  int64
	Total  decimal.Decimal
}

// AdminService serves the admin reporting surface.
type AdminService interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateUser(ctx context.Context, actor Actor, id uuid.UUID, in UpdateUserInput) (*model.User, error)
	DeleteUser(ctx context.Context, actor Actor, id uuid.UUID) error
	ListCards(ctx context.Context) ([]model.Card, error)
	ListTransactions(ctx context.Context, q TransactionQuery) (*TransactionPage, error)
	DailySummary(ctx context.Context, dateFrom, dateTo string) ([]DailySummaryRow, error)
	ListLogs(ctx context.Context) ([]model.AdminLog, error)
}

type adminService struct {
	repos *repository.Repositories
	cache *cache.Client
	now   func() time.Time
	log   *slog.Logger
}

// NewAdminService creates a new admin service. cache may be nil.
func NewAdminService(repos *repository.Repositories, cache *cache.Client, log *slog.Logger) AdminService {
	if log == nil {
		log = slog.Default()
	}
	return &adminService{repos: repos, cache: cache, now: time.Now, log: log}
}

func (s *adminService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.repos.Users.List(ctx)
	if err != nil {
		return nil, storeError(err, nil, "list users")
	}
	return users, nil
}

func (s *adminService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repos.Users.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, apperrors.ErrUserNotFound, "get user")
	}
	return user, nil
}

// UpdateUser toggles is_active / is_admin and records the change.
func (s *adminService) UpdateUser(ctx context.Context, actor Actor, id uuid.UUID, in UpdateUserInput) (*model.User, error) {
	fields := map[string]interface{}{}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	if in.IsAdmin != nil {
		fields["is_admin"] = *in.IsAdmin
	}

	var updated *model.User
	err := s.repos.Atomic(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		user, err := repos.Users.FindByID(ctx, id)
		if err != nil {
			return storeError(err, apperrors.ErrUserNotFound, "get user")
		}
		if len(fields) > 0 {
			if err := repos.Users.UpdateFields(ctx, id, fields); err != nil {
				return storeError(err, nil, "update user")
			}
		}
		if err := recordAdminAction(ctx, repos.AdminLogs, actor, model.AdminActionUpdate, "User", id.String(),
			fmt.Sprintf("Updated user %s", user.Email)); err != nil {
			return err
		}
		updated, err = repos.Users.FindByID(ctx, id)
		return storeError(err, apperrors.ErrUserNotFound, "reload user")
	})
	if err != nil {
		return nil, passThrough(err, "update user")
	}

	_ = s.cache.Delete(ctx, profileCacheKey(id))
	s.log.Info("admin updated user", slog.String("user_id", id.String()), slog.String("admin", actor.Email))
	return updated, nil
}

// DeleteUser removes the user with its cards and transactions in one unit of work.
func (s *adminService) DeleteUser(ctx context.Context, actor Actor, id uuid.UUID) error {
	err := s.repos.Atomic(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		user, err := repos.Users.FindByID(ctx, id)
		if err != nil {
			return storeError(err, apperrors.ErrUserNotFound, "get user")
		}
		if err := repos.Users.Delete(ctx, id); err != nil {
			return storeError(err, apperrors.ErrUserNotFound, "delete user")
		}
		return recordAdminAction(ctx, repos.AdminLogs, actor, model.AdminActionDelete, "User", id.String(),
			fmt.Sprintf("Deleted user %s", user.Email))
	})
	if err != nil {
		return passThrough(err, "delete user")
	}

	_ = s.cache.Delete(ctx, profileCacheKey(id))
	s.log.Info("admin deleted user", slog.String("user_id", id.String()), slog.String("admin", actor.Email))
	return nil
}

func (s *adminService) ListCards(ctx context.Context) ([]model.Card, error) {
	cards, err := s.repos.Cards.ListAll(ctx)
	if err != nil {
		return nil, storeError(err, nil, "list cards")
	}
	return cards, nil
}

// ListTransactions lists across all users; filters as for user listings plus user_id.
func (s *adminService) ListTransactions(ctx context.Context, q TransactionQuery) (*TransactionPage, error) {
	filter, err := ParseTransactionQuery(q)
	if err != nil {
		return nil, err
	}
	return listTransactions(ctx, s.repos.Transactions, filter)
}

// DailySummary buckets transactions by UTC day and status, newest day first.
// Without bounds it covers the last 30 days.
func (s *adminService) DailySummary(ctx context.Context, dateFrom, dateTo string) ([]DailySummaryRow, error) {
	filter, err := ParseTransactionQuery(TransactionQuery{DateFrom: dateFrom, DateTo: dateTo})
	if err != nil {
		return nil, err
	}
	if filter.From == nil && filter.Until == nil {
		today := s.now().UTC().Truncate(24 * time.Hour)
		from := today.AddDate(0, 0, -(defaultSummaryDays - 1))
		filter.From = &from
	}

	rows, err := s.repos.Transactions.ScanRange(ctx, filter.From, filter.Until)
	if err != nil {
		return nil, storeError(err, nil, "scan transactions")
	}

	type key struct {
		date   string
		status model.TransactionStatus
	}
	buckets := map[key]*DailySummaryRow{}
	for _, r := range rows {
		k := key{date: r.CreatedAt.UTC().Format(dateLayout), status: r.Status}
		b, ok := buckets[k]
		if !ok {
			b = &DailySummaryRow{Date: k.date, Status: k.status, Total: decimal.Zero}
			buckets[k] = b
		}
		b.Count++
		b.Total = b.Total.Add(r.Amount)
	}

	out := make([]DailySummaryRow, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (s *adminService) ListLogs(ctx context.Context) ([]model.AdminLog, error) {
	logs, err := s.repos.AdminLogs.ListRecent(ctx, adminLogLimit)
	if err != nil {
		return nil, storeError(err, nil, "list admin logs")
	}
	return logs, nil
}
