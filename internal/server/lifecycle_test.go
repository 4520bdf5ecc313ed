package server_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/hexbeat/internal/server"
)

type mockService struct {
	started atomic.Bool
	stopped atomic.Bool
	stop    chan struct{}
	once    sync.Once
	startFn func() error
	onStop  func()
}

func newMock() *mockService { return &mockService{stop: make(chan struct{})} }

func (m *mockService) Start() error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn()
	}
	<-m.stop
	return nil
}

func (m *mockService) Stop() {
	m.stopped.Store(true)
	if m.onStop != nil {
		m.onStop()
	}
	m.once.Do(func() { close(m.stop) })
}

func runAsync(lc *server.Lifecycle, ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()
	return done
}

func TestLifecycleStartsAndStopsServices(t *testing.T) {
	lc := server.NewLifecycle(zaptest.NewLogger(t))
	svc1, svc2 := newMock(), newMock()
	lc.Add("svc1", svc1)
	lc.Add("svc2", svc2)
	assert.Equal(t, []string{"svc1", "svc2"}, lc.Names())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(lc, ctx)

	require.Eventually(t, func() bool {
		return svc1.started.Load() && svc2.started.Load()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.True(t, svc1.stopped.Load())
	assert.True(t, svc2.stopped.Load())
}

func TestLifecycleStopsInReverseOrder(t *testing.T) {
	lc := server.NewLifecycle(zaptest.NewLogger(t))
	var mu sync.Mutex
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		svc := newMock()
		svc.onStop = func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
		lc.Add(name, svc)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, lc.Run(ctx))
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestLifecycleReturnsServiceFailure(t *testing.T) {
	lc := server.NewLifecycle(zaptest.NewLogger(t))
	healthy := newMock()
	boom := errors.New("listen failed")
	failing := newMock()
	failing.startFn = func() error { return boom }
	lc.Add("healthy", healthy)
	lc.Add("failing", failing)

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "service failing")
	assert.True(t, healthy.stopped.Load())
}

func TestLifecycleEndsWhenEveryServiceReturns(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	lc := server.NewLifecycle(zap.New(core))
	oneshot := newMock()
	oneshot.startFn = func() error { return nil }
	lc.Add("oneshot", oneshot)

	require.NoError(t, lc.Run(context.Background()))
	assert.True(t, oneshot.stopped.Load())
	assert.Equal(t, 1, logs.FilterMessage("service exited").Len())
}

func TestLifecycleDrainTimeout(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	lc := server.NewLifecycle(zap.New(core))
	lc.DrainTimeout = 20 * time.Millisecond
	stuck := &server.FuncService{
		StartFn: func() error { select {} },
		StopFn:  func() {},
	}
	lc.Add("stuck", stuck)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, lc.Run(ctx))
	assert.Equal(t, 1, logs.FilterMessage("services did not return after stop").Len())
}

func TestLifecyclePanicsOnBadInput(t *testing.T) {
	assert.Panics(t, func() { server.NewLifecycle(nil) })
	lc := server.NewLifecycle(zaptest.NewLogger(t))
	assert.Panics(t, func() { lc.Add("", newMock()) })
	assert.Panics(t, func() { lc.Add("x", nil) })
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false

	svc := &server.FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() {
			stopped = true
		},
	}

	err := svc.Start()
	assert.NoError(t, err)
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)
}
