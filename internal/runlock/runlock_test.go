package runlock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	release, err := Noop{}.Acquire(context.Background(), "runs")
	require.NoError(t, err)
	release()
	release()
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 10*time.Minute, o.TTL)
	assert.Equal(t, 500*time.Millisecond, o.Backoff)
	assert.Equal(t, 2*time.Minute, o.Wait)
}

func TestNewRedisBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not a url", Options{})
	assert.Error(t, err)
}

func TestRedisLockIsExclusive(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}
	ctx := context.Background()
	l, err := NewRedis(ctx, url, Options{TTL: 5 * time.Second, Backoff: 50 * time.Millisecond, Wait: 200 * time.Millisecond})
	require.NoError(t, err)
	defer l.Close()

	release, err := l.Acquire(ctx, "test")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "test")
	assert.ErrorIs(t, err, ErrBusy)

	release()
	again, err := l.Acquire(ctx, "test")
	require.NoError(t, err)
	again()
}
