package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownCommand   = errors.New("command: unknown command")
	ErrInvalidName      = errors.New("command: invalid name")
	ErrInvalidHandler   = errors.New("command: nil handler")
	ErrDuplicateCommand = errors.New("command: duplicate registration")
)

// Registry maps command names to descriptors. Register is a startup-only
// operation; once the catalog is populated the table is read-only and
// safe for concurrent Classify calls from every listener goroutine.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Descriptor),
	}
}

// Register adds one command to the catalog. Called only during startup
// wiring; the command set is closed before any listener starts.
func (r *Registry) Register(name string, tier Tier, handler Handler) error {
	key := strings.TrimSpace(name)
	if key == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrInvalidHandler, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, key)
	}
	r.entries[key] = Descriptor{Name: key, Tier: tier, Handler: handler}
	return nil
}

// Classify resolves a command name to its descriptor.
func (r *Registry) Classify(name string) (Descriptor, error) {
	key := strings.TrimSpace(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.entries[key]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return desc, nil
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
