package cachecore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_L1HitMiss(t *testing.T) {
	s, err := NewStore("test", 10, nil)
	require.NoError(t, err)

	_, _, ok := s.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Metrics.L1Misses.Load())

	s.Set(context.Background(), "k", []byte("v"), time.Minute)
	v, layer, ok := s.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.Equal(t, LayerL1, layer)
	assert.Equal(t, int64(1), s.Metrics.L1Hits.Load())
}

func TestStore_L1Expiry(t *testing.T) {
	s, err := NewStore("test", 10, nil)
	require.NoError(t, err)

	s.Set(context.Background(), "k", []byte("v"), time.Nanosecond)
	time.Sleep(time.Millisecond)
	_, _, ok := s.Get(context.Background(), "k")
	assert.False(t, ok)
}

type fakeRemote struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newFakeRemote() *fakeRemote { return &fakeRemote{data: map[string][]byte{}} }

func (f *fakeRemote) Get(_ context.Context, key string) ([]byte, bool, error) {
	if f.fail {
		return nil, false, assertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeRemote) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if f.fail {
		return assertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeRemote) Ping(context.Context) error {
	if f.fail {
		return assertErr
	}
	return nil
}

var assertErr = &testError{"remote unavailable"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestStore_L2PromotionOnL1Miss(t *testing.T) {
	remote := newFakeRemote()
	s, err := NewStore("test", 10, remote)
	require.NoError(t, err)

	require.NoError(t, remote.Set(context.Background(), "test:k", []byte("from-l2"), time.Minute))

	v, layer, ok := s.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, []byte("from-l2"), v)
	assert.Equal(t, LayerL2, layer)
	assert.Equal(t, int64(1), s.Metrics.L2Hits.Load())

	// second read should now hit L1
	v2, layer2, ok := s.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, v, v2)
	assert.Equal(t, LayerL1, layer2)
	assert.Equal(t, int64(1), s.Metrics.L1Hits.Load())
}

func TestStore_L2FailureDegradesToMiss(t *testing.T) {
	remote := newFakeRemote()
	remote.fail = true
	s, err := NewStore("test", 10, remote)
	require.NoError(t, err)

	_, _, ok := s.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Metrics.L2Errors.Load())
}

func TestGroup_DeduplicatesConcurrentCalls(t *testing.T) {
	var g Group
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([][]byte, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, _, _ := g.Do("key", func() ([]byte, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return []byte("42"), nil
			})
			results[idx] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, []byte("42"), r)
	}
}
