package chat

import (
	"context"
	"fmt"
	"sync"
)

// HandlerFunc answers one command or callback.
type HandlerFunc func(ctx context.Context, req *Request) (Reply, error)

// Dispatcher routes slash commands and button callbacks by name.
type Dispatcher struct {
	commands  map[string]HandlerFunc
	callbacks map[string]HandlerFunc
	mu        sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		commands:  make(map[string]HandlerFunc),
		callbacks: make(map[string]HandlerFunc),
	}
}

func (d *Dispatcher) RegisterCommand(name string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[name] = handler
}

func (d *Dispatcher) RegisterCallback(name string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[name] = handler
}

func (d *Dispatcher) ExecuteCommand(ctx context.Context, name string, req *Request) (Reply, error) {
	d.mu.RLock()
	handler, ok := d.commands[name]
	d.mu.RUnlock()
	if !ok {
		return Reply{}, fmt.Errorf("%w: /%s", errUnknownCommand, name)
	}
	return handler(ctx, req)
}

func (d *Dispatcher) ExecuteCallback(ctx context.Context, name string, req *Request) (Reply, error) {
	d.mu.RLock()
	handler, ok := d.callbacks[name]
	d.mu.RUnlock()
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", errUnknownCallback, name)
	}
	return handler(ctx, req)
}
