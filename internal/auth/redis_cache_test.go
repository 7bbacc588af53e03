package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/auth"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

// TestRedisPairCacheIntegration mirrors a credential pair through a real
// Redis container and reads it back the way a restarted process would.
func TestRedisPairCacheIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})
	cache := auth.NewRedisPairCache(client)

	// Nothing cached yet.
	pair, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)

	saved := models.CredentialPair{
		AccessToken:  signedToken(t, 15*time.Minute),
		RefreshToken: signedToken(t, 24*time.Hour),
		IssuedAt:     time.Now(),
	}
	require.NoError(t, cache.Save(ctx, saved))

	loaded, err := cache.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.AccessToken, loaded.AccessToken)
	assert.Equal(t, saved.RefreshToken, loaded.RefreshToken)

	// A restarted store picks the mirrored pair up automatically.
	store := auth.NewStore(time.Minute).WithCache(ctx, cache)
	require.NotNil(t, store.Pair())
	assert.Equal(t, saved.AccessToken, store.Pair().AccessToken)

	// A pair whose refresh token is dead reads back as absent.
	require.NoError(t, cache.Save(ctx, models.CredentialPair{
		AccessToken:  signedToken(t, -time.Hour),
		RefreshToken: signedToken(t, -time.Minute),
	}))
	loaded, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, cache.Clear(ctx))
	loaded, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
