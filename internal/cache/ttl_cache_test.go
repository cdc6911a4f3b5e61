package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_SetAndGet(t *testing.T) {
	c := NewTTLCache(time.Minute, 30*time.Second)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "cities", []byte(`["Haifa"]`))
	value, ok := c.Get(ctx, "cities")

	assert.True(t, ok)
	assert.Equal(t, `["Haifa"]`, string(value))
}

func TestTTLCache_Miss(t *testing.T) {
	c := NewTTLCache(time.Minute, 30*time.Second)
	defer c.Close()

	value, ok := c.Get(context.Background(), "missing")

	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestTTLCache_StoresCopy(t *testing.T) {
	c := NewTTLCache(time.Minute, 30*time.Second)
	defer c.Close()
	ctx := context.Background()

	buf := []byte("abc")
	c.Set(ctx, "k", buf)
	buf[0] = 'z'

	value, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(value))
}

func TestTTLCache_Expiration(t *testing.T) {
	c := NewTTLCache(50*time.Millisecond, time.Hour)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"))
	time.Sleep(80 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestTTLCache_Cleanup(t *testing.T) {
	c := NewTTLCache(20*time.Millisecond, 10*time.Millisecond)
	defer c.Close()

	c.Set(context.Background(), "a", []byte("1"))
	c.Set(context.Background(), "b", []byte("2"))

	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 10*time.Millisecond)
}

func TestTTLCache_DeleteAndClear(t *testing.T) {
	c := NewTTLCache(time.Minute, time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	c.Delete(ctx, "a")

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestTTLCache_Stats(t *testing.T) {
	c := NewTTLCache(time.Minute, time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"))
	c.Get(ctx, "a")
	c.Get(ctx, "b")

	stats := c.Stats(ctx)
	assert.Equal(t, "memory", stats["backend"])
	assert.Equal(t, 1, stats["active_entries"])
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
}

func TestTTLCache_CloseTwice(t *testing.T) {
	c := NewTTLCache(time.Minute, time.Minute)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestJSONHelpers(t *testing.T) {
	c := NewTTLCache(time.Minute, time.Minute)
	defer c.Close()
	ctx := context.Background()

	SetJSON(ctx, c, Key("Cities"), []string{"Haifa", "Eilat"})

	var cities []string
	assert.True(t, GetJSON(ctx, c, "cities", &cities))
	assert.Equal(t, []string{"Haifa", "Eilat"}, cities)

	c.Set(ctx, "broken", []byte("{"))
	var out []string
	assert.False(t, GetJSON(ctx, c, "broken", &out))
	assert.Equal(t, 1, c.Size())

	assert.False(t, GetJSON(ctx, nil, "cities", &out))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "search:tel aviv:milk", Key("search", " Tel Aviv ", "MILK"))
}
