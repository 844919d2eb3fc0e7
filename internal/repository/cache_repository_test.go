package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

func unreachableRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	repo := NewCacheRepository(unreachableRedis(t), "qa:", nil)

	assert.Equal(t, "qa:ratelimit:u1", repo.key("ratelimit:u1"))
	assert.Equal(t, "qa:stats:*", repo.key("qa:stats:*"))

	bare := NewCacheRepository(unreachableRedis(t), "", nil)
	assert.Equal(t, "stats:*", bare.key("stats:*"))
}

func TestCacheRepositorySurfacesConnectionErrors(t *testing.T) {
	repo := NewCacheRepository(unreachableRedis(t), "qa:", nil)
	ctx := context.Background()

	var out int
	err := repo.Get(ctx, "stats:u1", &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrCacheMiss)

	assert.Error(t, repo.Set(ctx, "stats:u1", 1, time.Minute))
	_, _, err = repo.IncrWithin(ctx, "rate_limit:create_report:user:u1", 5, time.Minute)
	assert.Error(t, err)
	assert.Error(t, repo.Ping(ctx))
}
