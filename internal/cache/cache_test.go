package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestClientFailsSafe(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := Wrap(rdb, nil)
	ctx := context.Background()

	mock.ExpectGet("profile:1").SetErr(errors.New("connection refused"))
	data, err := c.Get(ctx, "profile:1")
	assert.NoError(t, err)
	assert.Nil(t, data)

	mock.ExpectSet("profile:1", []byte("x"), time.Minute).SetErr(errors.New("connection refused"))
	assert.NoError(t, c.Set(ctx, "profile:1", []byte("x"), time.Minute))

	mock.ExpectDel("profile:1").SetErr(errors.New("connection refused"))
	assert.NoError(t, c.Delete(ctx, "profile:1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientMissAndHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := Wrap(rdb, nil)
	ctx := context.Background()

	mock.ExpectGet("k").RedisNil()
	data, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, data)

	mock.ExpectGet("k").SetVal(`{"name":"jane"}`)
	var got struct {
		Name string `json:"name"`
	}
	assert.True(t, c.GetJSON(ctx, "k", &got))
	assert.Equal(t, "jane", got.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilClientIsNoop(t *testing.T) {
	var c *Client
	data, err := c.Get(context.Background(), "k")
	assert.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, c.Set(context.Background(), "k", nil, time.Second))
	assert.Error(t, c.Ping(context.Background()))
}
