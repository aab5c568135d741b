// Package shutdown coordinates graceful shutdown of the API server: signal
// handling, cleanup registration and a bounded drain.
package shutdown

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
)

// CleanupFunc releases one resource. ctx expires when the drain times out.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager runs registered cleanups once, in reverse registration order.
type Manager struct {
	mu         sync.Mutex
	cleanups   []cleanupEntry
	shutdown   bool
	shutdownCh chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	stopSignal func()
	log        *log.Logger
}

// NewManager creates a new shutdown manager. A nil logger discards output.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		log:        logger,
	}
}

// RegisterCleanup adds fn under name. The last one registered runs first.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// WatchSignals triggers Shutdown on the first SIGINT or SIGTERM (or the given
// signals). It may be called once.
func (m *Manager) WatchSignals(sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	stop := make(chan struct{})
	m.mu.Lock()
	m.stopSignal = func() {
		signal.Stop(ch)
		close(stop)
	}
	m.mu.Unlock()

	go func() {
		select {
		case sig := <-ch:
			m.log.Info("received signal, shutting down", "signal", sig.String())
			m.Shutdown()
		case <-stop:
		}
	}()
}

// Shutdown marks the manager as shutting down and cancels Context.
// Only the first call has an effect.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		stop := m.stopSignal
		m.stopSignal = nil
		m.mu.Unlock()

		if stop != nil {
			stop()
		}
		m.cancel()
		close(m.shutdownCh)
	})
}

// Done is closed once Shutdown has been called.
func (m *Manager) Done() <-chan struct{} {
	return m.shutdownCh
}

func (m *Manager) runCleanups(ctx context.Context) error {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.cleanups = nil
	m.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		c := cleanups[i]
		if err := c.fn(ctx); err != nil {
			m.log.Warn("cleanup failed", "name", c.name, "err", err)
			errs = append(errs, err)
			continue
		}
		m.log.Debug("cleanup done", "name", c.name)
	}
	return errors.Join(errs...)
}

// Wait runs every cleanup and returns their joined errors, or ctx's error if
// the drain does not finish in time. Cleanups run at most once.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- m.runCleanups(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown reports whether Shutdown has been called.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Context is cancelled when shutdown starts.
func (m *Manager) Context() context.Context {
	return m.ctx
}
