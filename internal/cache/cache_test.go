package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTTLExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[string]("test", 1800*time.Second, WithClock(clock.Now))

	c.Set("k", "v")

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	clock.Advance(1799 * time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok, "entry should still be fresh just before the TTL")

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry older than the TTL is treated as absent")
	assert.Equal(t, 1, c.Len(), "stale entries are not evicted")

	c.Set("k", "v2")
	got, ok = c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", got)
}

func TestNoExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := New[int]("geocode", 0, WithClock(clock.Now))

	c.Set("paris", 1)
	clock.Advance(365 * 24 * time.Hour)

	got, ok := c.Get("paris")
	assert.True(t, ok)
	assert.Equal(t, 1, got)
}

func TestMissingKey(t *testing.T) {
	c := New[int]("test", time.Minute)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestKeyNormalization(t *testing.T) {
	assert.Equal(t, Key("Tel Aviv", "all"), Key("  tel aviv ", "ALL"))
	assert.NotEqual(t, Key("tel aviv", "eat"), Key("tel aviv", "do"))
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int]("test", time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("same", i)
			c.Get("same")
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("same")
	assert.True(t, ok)
}

func TestTakeIsSingleUse(t *testing.T) {
	c := New[bool]("test", time.Minute)
	c.Set("state", true)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Take("state"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Zero(t, c.Len())
}

func TestTakeExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[bool]("test", time.Minute, WithClock(clock.Now))
	c.Set("state", true)

	clock.Advance(2 * time.Minute)
	_, ok := c.Take("state")

	assert.False(t, ok)
	assert.Zero(t, c.Len(), "taking a stale entry still removes it")
}

func TestPrune(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[string]("test", time.Minute, WithClock(clock.Now))

	c.Set("old", "a")
	clock.Advance(50 * time.Second)
	c.Set("new", "b")
	clock.Advance(20 * time.Second)

	c.Prune()

	assert.Equal(t, 1, c.Len())
	got, ok := c.Get("new")
	assert.True(t, ok)
	assert.Equal(t, "b", got)
}
