package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-review-reply-backend/internal/auth"
	"github.com/tbourn/go-review-reply-backend/internal/config"
	"github.com/tbourn/go-review-reply-backend/internal/redisstore"
	"github.com/tbourn/go-review-reply-backend/internal/repo"
)

func TestBuildQuotaStore_SQLDefault(t *testing.T) {
	store, closeFn, err := buildQuotaStore(context.Background(), config.QuotaConfig{Backend: "sql"}, nil)
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	require.IsType(t, repo.SQLQuotaStore{}, store)
	closeFn()
}

func TestBuildQuotaStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, closeFn, err := buildQuotaStore(ctx, config.QuotaConfig{
		Backend:        "redis",
		RedisURL:       "redis://" + mr.Addr(),
		RedisKeyPrefix: "test:quota:",
	}, nil)
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &redisstore.QuotaStore{}, store)

	_, err = store.ResetIfNewDay(ctx, "u1", time.Now(), time.UTC)
	require.NoError(t, err)
	n, ok, err := store.Increment(ctx, "u1", time.Now(), 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"test:quota:u1"}, mr.Keys())
}

func TestBuildQuotaStore_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, _, err := buildQuotaStore(context.Background(), config.QuotaConfig{
		Backend:  "redis",
		RedisURL: "redis://" + addr,
	}, nil)
	require.Error(t, err)
}

func TestBuildResolver_Modes(t *testing.T) {
	ctx := context.Background()

	r, err := buildResolver(ctx, config.AuthConfig{Mode: "none"})
	require.NoError(t, err)
	_, err = r.Resolve(ctx, "Bearer abc", "")
	require.ErrorIs(t, err, auth.ErrProviderUnavailable)

	r, err = buildResolver(ctx, config.AuthConfig{Mode: "jwt", JWTSecret: "s3cret"})
	require.NoError(t, err)
	signer, err := auth.NewJWTVerifier("s3cret", "")
	require.NoError(t, err)
	tok, err := signer.Sign("user-7", time.Minute)
	require.NoError(t, err)
	id, err := r.Resolve(ctx, "Bearer "+tok, "")
	require.NoError(t, err)
	require.Equal(t, "user-7", id.Subject)
	require.True(t, id.Verified)

	_, err = buildResolver(ctx, config.AuthConfig{Mode: "jwt"})
	require.Error(t, err)

	_, err = buildResolver(ctx, config.AuthConfig{Mode: "oidc"})
	require.Error(t, err)
}

func TestGenerationKey(t *testing.T) {
	cfg := config.GenerationConfig{GeminiAPIKey: "g", OpenAIAPIKey: "o"}
	cfg.Provider = "gemini"
	require.Equal(t, "g", generationKey(cfg))
	cfg.Provider = "openai"
	require.Equal(t, "o", generationKey(cfg))
}
