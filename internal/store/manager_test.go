package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/daig/daig-node/internal/errors"
	"github.com/daig/daig-node/internal/retry"
)

// flakyStore wraps MemoryStore with failure injection for writes
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	setFails int
	setCalls int
}

func (f *flakyStore) Set(ctx context.Context, collection, docID string, doc Document) error {
	f.mu.Lock()
	f.setCalls++
	fail := f.setCalls <= f.setFails
	f.mu.Unlock()

	if fail {
		return errors.New("simulated write failure")
	}
	return f.MemoryStore.Set(ctx, collection, docID, doc)
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}
}

func countingDialer(st DocumentStore, dials *int) Dialer {
	return func(ctx context.Context, cfg Config, logger *zap.Logger) (DocumentStore, error) {
		*dials++
		return st, nil
	}
}

func TestManager_InitializeAndHandle(t *testing.T) {
	mem := NewMemoryStore()
	dials := 0
	m := NewManager(Config{ProjectID: "daig-test", UseEmulator: true, EmulatorHost: "localhost:8080"},
		testPolicy(), zap.NewNop(), WithDialer(countingDialer(mem, &dials)))

	handle, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, handle.Healthy())
	assert.Equal(t, HandleHealthy, m.State())

	got, err := m.Handle()
	require.NoError(t, err)
	assert.Same(t, handle, got)

	// The health check must not leave its marker behind
	_, err = mem.Get(context.Background(), HealthCollection, "connection_test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_InvalidConfigSkipsNetwork(t *testing.T) {
	dials := 0
	m := NewManager(Config{ProjectID: ""},
		testPolicy(), zap.NewNop(), WithDialer(countingDialer(NewMemoryStore(), &dials)))

	_, err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfiguration))
	assert.Equal(t, 0, dials)
}

func TestManager_CredentialsPathMustResolve(t *testing.T) {
	m := NewManager(Config{ProjectID: "daig-test", CredentialsPath: "/nonexistent/creds"},
		testPolicy(), zap.NewNop())

	_, err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfiguration))
}

func TestManager_InitializeIsIdempotent(t *testing.T) {
	dials := 0
	m := NewManager(Config{ProjectID: "daig-test"},
		testPolicy(), zap.NewNop(), WithDialer(countingDialer(NewMemoryStore(), &dials)))

	first, err := m.Initialize(context.Background())
	require.NoError(t, err)

	second, err := m.Initialize(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, dials)
}

func TestManager_DialFailureExhaustsRetries(t *testing.T) {
	cause := errors.New("connection refused")
	dials := 0
	m := NewManager(Config{ProjectID: "daig-test"}, testPolicy(), zap.NewNop(),
		WithDialer(func(ctx context.Context, cfg Config, logger *zap.Logger) (DocumentStore, error) {
			dials++
			return nil, cause
		}))

	_, err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInitialization))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, dials)
	assert.Equal(t, HandleFailed, m.State())

	_, err = m.Handle()
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotInitialized))
}

func TestManager_HealthCheckFailureClosesStore(t *testing.T) {
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), setFails: 100}
	dials := 0
	m := NewManager(Config{ProjectID: "daig-test"},
		testPolicy(), zap.NewNop(), WithDialer(countingDialer(flaky, &dials)))

	_, err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInitialization))
	assert.True(t, flaky.Closed())
	assert.Equal(t, HandleFailed, m.State())
}

func TestManager_HealthCheckAbsorbsTransientFailures(t *testing.T) {
	// Fails twice, succeeds on the third attempt: within the retry budget
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), setFails: 2}
	m := NewManager(Config{ProjectID: "daig-test"},
		testPolicy(), zap.NewNop(), WithDialer(countingDialer(flaky, new(int))))

	handle, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, handle.Healthy())
}

func TestManager_HandleBeforeInitialize(t *testing.T) {
	m := NewManager(Config{ProjectID: "daig-test"}, testPolicy(), zap.NewNop())

	_, err := m.Handle()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotInitialized))
}

func TestManager_Shutdown(t *testing.T) {
	mem := NewMemoryStore()
	m := NewManager(Config{ProjectID: "daig-test"},
		testPolicy(), zap.NewNop(), WithDialer(countingDialer(mem, new(int))))

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	m.Shutdown(context.Background())

	assert.True(t, mem.Closed())
	assert.Equal(t, HandleAbsent, m.State())

	_, err = m.Handle()
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotInitialized))

	// Shutting down an already shut-down manager is a no-op
	m.Shutdown(context.Background())
	assert.Equal(t, HandleAbsent, m.State())
}

func TestManager_ConcurrentInitialize(t *testing.T) {
	dials := 0
	m := NewManager(Config{ProjectID: "daig-test"},
		testPolicy(), zap.NewNop(), WithDialer(countingDialer(NewMemoryStore(), &dials)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Initialize(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, dials)
}
