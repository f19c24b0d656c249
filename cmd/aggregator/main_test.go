package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/config"
)

func TestRun_RequiresSharedBackends(t *testing.T) {
	err := run(context.Background(), &config.Options{DatabaseDSN: "postgres://db"}, zap.NewNop())
	require.Error(t, err)

	err = run(context.Background(), &config.Options{RedisURL: "redis://cache"}, zap.NewNop())
	require.Error(t, err)
}
