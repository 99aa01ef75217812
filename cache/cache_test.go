package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_StableForEqualPayloads(t *testing.T) {
	type req struct {
		Principal float64 `json:"principal"`
		Months    int     `json:"months"`
	}

	a, err := Key("schedule", req{Principal: 100, Months: 12})
	require.NoError(t, err)
	b, err := Key("schedule", req{Principal: 100, Months: 12})
	require.NoError(t, err)
	c, err := Key("schedule", req{Principal: 100, Months: 13})
	require.NoError(t, err)
	d, err := Key("compare", req{Principal: 100, Months: 12})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Contains(t, a, "schedule:")

	_, err = Key("bad", func() {})
	assert.Error(t, err)
}

func TestMemory_ExpiresEntries(t *testing.T) {
	// GIVEN: An entry with a one minute TTL
	clock := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("v"), 0))

	// WHEN: Reading before and after expiry
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	clock = clock.Add(time.Minute)

	// THEN: The expired entry is gone, the unbounded one stays
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
	assert.Equal(t, 1, m.Len())
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	calls := 0
	compute := func() (map[string]float64, error) {
		calls++
		return map[string]float64{"emi": 116060.21}, nil
	}

	v, hit, err := Remember(ctx, m, "k", time.Minute, nil, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 116060.21, v["emi"])

	v, hit, err = Remember(ctx, m, "k", time.Minute, nil, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 116060.21, v["emi"])
	assert.Equal(t, 1, calls)
}

func TestRemember_CacheFailuresAreReportedNotReturned(t *testing.T) {
	var reported []error

	v, hit, err := Remember(context.Background(), failingCache{}, "k", 0,
		func(err error) { reported = append(reported, err) },
		func() (int, error) { return 42, nil },
	)

	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v)
	assert.Len(t, reported, 2)
}

func TestRemember_ComputeErrorIsNotCached(t *testing.T) {
	m := NewMemory()
	boom := errors.New("boom")

	_, _, err := Remember(context.Background(), m, "k", 0, nil, func() (int, error) { return 0, boom })

	assert.ErrorIs(t, err, boom)
	assert.Zero(t, m.Len())
}

func TestSweeper_PurgesExpiredEntries(t *testing.T) {
	// GIVEN: One expired and one live entry
	clock := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return clock }
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "old", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "new", []byte("2"), time.Hour))
	clock = clock.Add(time.Minute)

	// WHEN: Sweeping
	s := NewSweeper(m, nil)
	removed := s.RunNow()

	// THEN: Only the expired entry is gone
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Len())
}

func TestSweeper_StartStop(t *testing.T) {
	s := NewSweeper(NewMemory(), nil)
	s.Interval = time.Millisecond

	s.Start()
	s.Start()
	time.Sleep(5 * time.Millisecond)
	s.Stop()
	s.Stop()
}
