package preference

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")

	s1, err := NewFileStore(path)
	require.NoError(t, err)

	_, found, err := s1.Get(ctx, KeyCurrentViewer)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s1.Set(ctx, KeyCurrentViewer, "yass"))
	require.NoError(t, s1.Set(ctx, KeyCurrentViewer, "other"))

	s2, err := NewFileStore(path)
	require.NoError(t, err)
	v, found, err := s2.Get(ctx, KeyCurrentViewer)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "other", v)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, _, err = s.Get(context.Background(), KeyCurrentViewer)
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("Skipping: REDIS_ADDRESS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: could not ping redis: %v", err)
	}

	hash := "duochat:test:prefs"
	client.Del(ctx, hash)
	s := NewRedisStore(client, hash)

	_, found, err := s.Get(ctx, KeyCurrentViewer)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, KeyCurrentViewer, "yass"))
	v, found, err := s.Get(ctx, KeyCurrentViewer)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "yass", v)
}
