package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db)

	mock.ExpectGet("link:abc").SetVal("https://example.com")
	url, err := c.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url)

	mock.ExpectGet("link:none").RedisNil()
	_, err = c.Get(context.Background(), "none")
	assert.ErrorIs(t, err, ErrMiss)

	mock.ExpectGet("link:down").SetErr(errors.New("connection refused"))
	_, err = c.Get(context.Background(), "down")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db)

	mock.ExpectSet("link:abc", "https://example.com", time.Hour).SetVal("OK")
	assert.NoError(t, c.Set(context.Background(), "abc", "https://example.com", time.Hour))

	mock.ExpectSet("link:abc", "https://example.com", time.Hour).SetErr(errors.New("timeout"))
	assert.Error(t, c.Set(context.Background(), "abc", "https://example.com", time.Hour))

	assert.NoError(t, mock.ExpectationsWereMet())
}
