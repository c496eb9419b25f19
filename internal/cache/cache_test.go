package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/searchscout/searchscout/internal/pattern"
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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func samplePattern(domain string) pattern.SearchPattern {
	return pattern.SearchPattern{
		Domain:     domain,
		Type:       pattern.TypeQueryParam,
		Confidence: 0.8,
	}
}

func TestPatternCache_PutGet(t *testing.T) {
	t.Parallel()
	c := New(0, newFakeClock())

	_, ok := c.Get("example.com")
	require.False(t, ok)

	c.Put(samplePattern("example.com"))
	got, ok := c.Get("example.com")
	require.True(t, ok)
	require.Equal(t, "example.com", got.Domain)
	require.Equal(t, 1, c.Len())
}

func TestPatternCache_Invalidate(t *testing.T) {
	t.Parallel()
	c := New(0, newFakeClock())

	c.Put(samplePattern("example.com"))
	c.Invalidate("example.com")
	_, ok := c.Get("example.com")
	require.False(t, ok)
}

func TestPatternCache_TTLExpiry(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	c := New(time.Minute, clock)

	c.Put(samplePattern("example.com"))
	_, ok := c.Get("example.com")
	require.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get("example.com")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestPatternCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	c := New(0, newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			domain := fmt.Sprintf("site-%d.example", i%10)
			c.Put(samplePattern(domain))
			c.Get(domain)
			if i%3 == 0 {
				c.Invalidate(domain)
			}
		}(i)
	}
	wg.Wait()
}

func TestPatternCache_LockDomainSerializes(t *testing.T) {
	t.Parallel()
	c := New(0, newFakeClock())

	var inSection int32
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := c.LockDomain("example.com")
			defer unlock()
			inSection++
			if inSection != 1 {
				errs <- fmt.Errorf("concurrent critical section")
			}
			inSection--
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
