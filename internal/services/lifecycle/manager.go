package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// StartFunc brings a component up. It should return once the component runs.
type StartFunc func(ctx context.Context) error

// ShutdownFunc describes a graceful shutdown callback.
type ShutdownFunc func(ctx context.Context) error

// Component is one long-lived part of the process (store, scheduler, server).
type Component struct {
	Name  string
	Start StartFunc
	Stop  ShutdownFunc
}

type entry struct {
	Component
	started bool
}

// Manager starts components in registration order and stops the started ones
// in reverse, either on a start failure or on an OS signal.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu         sync.Mutex
	components []*entry
}

// New creates a lifecycle manager with the desired timeout.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Add registers a component to be started by Start.
func (m *Manager) Add(c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, &entry{Component: c})
}

// Register adds a resource that is already open. It is always closed on
// Shutdown, even when Start never ran.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, &entry{Component: Component{Name: name, Stop: fn}, started: true})
}

// Start runs every pending start hook in order. When one fails, the
// components started so far are stopped and the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	pending := make([]*entry, 0, len(m.components))
	for _, e := range m.components {
		if !e.started {
			pending = append(pending, e)
		}
	}
	m.mu.Unlock()

	for _, e := range pending {
		if e.Start != nil {
			if err := e.Start(ctx); err != nil {
				m.logger.Error("component failed to start", zap.String("component", e.Name), zap.Error(err))
				startErr := fmt.Errorf("start %s: %w", e.Name, err)
				if stopErr := m.Shutdown(context.Background()); stopErr != nil {
					return errors.Join(startErr, stopErr)
				}
				return startErr
			}
		}
		m.mu.Lock()
		e.started = true
		m.mu.Unlock()
		m.logger.Info("component started", zap.String("component", e.Name))
	}
	return nil
}

// Shutdown stops every started component in reverse order, respecting the
// configured timeout. Each component is stopped at most once.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result error
	for i := len(m.components) - 1; i >= 0; i-- {
		e := m.components[i]
		if !e.started {
			continue
		}
		e.started = false
		if e.Stop == nil {
			continue
		}
		if err := e.Stop(ctx); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", e.Name), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		m.logger.Info("component stopped", zap.String("component", e.Name))
	}
	return result
}

// Listen blocks until an OS termination signal is received and then invokes the provided cancel function.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		sig := <-sigCh
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
}
