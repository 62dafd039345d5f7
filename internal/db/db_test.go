package db

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cardpay/internal/model"
)

func openCaptured(t *testing.T) (*gorm.DB, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := Open(DriverSQLite, dsn, log)
	require.NoError(t, err)
	require.NoError(t, Migrate(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	buf.Reset()
	return gormDB, &buf
}

func TestOpenLogsFailedStatementsWithoutValues(t *testing.T) {
	gormDB, buf := openCaptured(t)
	ctx := context.Background()

	first := &model.User{Email: "jane@example.com", PasswordHash: "$2a$10$FIRSTHASHFIRSTHASH", IsActive: true}
	require.NoError(t, gormDB.WithContext(ctx).Create(first).Error)

	second := &model.User{Email: "jane@example.com", PasswordHash: "$2a$10$SECONDHASHSECONDHASH", IsActive: true}
	err := gormDB.WithContext(ctx).Create(second).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"component":"gorm"`)
	assert.Contains(t, out, "INSERT INTO")
	assert.NotContains(t, out, "SECONDHASH")
	assert.NotContains(t, out, "jane@example.com")
}

func TestOpenSkipsRecordNotFound(t *testing.T) {
	gormDB, buf := openCaptured(t)

	var user model.User
	err := gormDB.Where("email = ?", "nobody@example.com").First(&user).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())
}

func TestNewLoggerWithoutSlogDiscards(t *testing.T) {
	assert.NotNil(t, NewLogger(nil))
}
