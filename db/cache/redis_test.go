package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawaudit/db"
	"lawaudit/decision/audit"
	"lawaudit/pkg/platform"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "lawaudit:report:abc", Key("abc"))
	assert.Equal(t, "lawaudit:report:redacted:abc", Key("redacted:abc"))
}

func TestNew_DefaultTTL(t *testing.T) {
	c := New("localhost:0", "", 0, 0)
	defer c.Close()
	assert.Equal(t, time.Hour, c.ttl)
}

// TestCache_Integration requires a running Redis.
// We skip if connection fails.
func TestCache_Integration(t *testing.T) {
	c := New(platform.GetEnv("REDIS_ADDR", "localhost:6379"), "", 0, time.Minute)
	defer c.Close()
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	text := "date,attorney,hours,rate,description\n2024-03-02,AC,0.2,350,Email\n"
	digest := db.Digest(text + time.Now().String())

	_, ok, err := c.Get(ctx, digest)
	require.NoError(t, err)
	assert.False(t, ok)

	report := audit.Process(text)
	require.NoError(t, c.Put(ctx, digest, report))

	got, ok, err := c.Get(ctx, digest)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, report.TotalLeakage.Equal(got.TotalLeakage))
	assert.Equal(t, report.Violations[0].ID, got.Violations[0].ID)
}
