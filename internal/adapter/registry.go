package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"virtnet/internal/domain"
)

// Registry manages registered sources and their lifecycle. It delegates
// Neighbors and Initial to the active source, so it can be handed to the
// network service directly.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	started map[string]bool
	active  string
	logger  *zap.Logger
}

// NewRegistry creates a new source registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sources: make(map[string]Source),
		started: make(map[string]bool),
		logger:  logger.Named("registry"),
	}
}

// Register adds a source to the registry. The first registered source
// becomes active.
func (r *Registry) Register(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("source %s already registered", name)
	}

	r.sources[name] = src
	if r.active == "" {
		r.active = name
	}
	r.logger.Info("registered source", zap.String("source", name), zap.Bool("active", r.active == name))
	return nil
}

// Use selects the source that answers Neighbors and Initial
func (r *Registry) Use(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; !exists {
		return fmt.Errorf("source %s not found", name)
	}
	r.active = name
	return nil
}

// Get returns a registered source
func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[name]
	return src, ok
}

// Names lists the registered sources in name order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start initializes every registered source. A source that fails to start
// is logged and left out; the call fails only if the active one failed.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var activeErr error
	for name, src := range r.sources {
		if r.started[name] {
			continue
		}
		if err := src.Start(ctx); err != nil {
			r.logger.Warn("failed to start source", zap.String("source", name), zap.Error(err))
			if name == r.active {
				activeErr = fmt.Errorf("start %s: %w", name, err)
			}
			continue
		}
		r.started[name] = true
		r.logger.Info("source started", zap.String("source", name))
	}
	return activeErr
}

// Stop gracefully shuts down all started sources
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, src := range r.sources {
		if !r.started[name] {
			continue
		}
		if err := src.Stop(ctx); err != nil {
			r.logger.Warn("error stopping source", zap.String("source", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		delete(r.started, name)
	}
	return errors.Join(errs...)
}

// Reload re-reads the active source if it is file backed
func (r *Registry) Reload() error {
	src, err := r.current()
	if err != nil {
		return err
	}
	if rl, ok := src.(Reloader); ok {
		return rl.Reload()
	}
	return nil
}

// Name reports the active source name
func (r *Registry) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == "" {
		return "registry"
	}
	return r.active
}

// Neighbors delegates to the active source
func (r *Registry) Neighbors(ctx context.Context, seedID string, kind domain.NodeKind) (*domain.GraphFragment, error) {
	src, err := r.current()
	if err != nil {
		return nil, err
	}
	return src.Neighbors(ctx, seedID, kind)
}

// Initial delegates to the active source
func (r *Registry) Initial(ctx context.Context) (*domain.GraphFragment, error) {
	src, err := r.current()
	if err != nil {
		return nil, err
	}
	return src.Initial(ctx)
}

func (r *Registry) current() (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[r.active]
	if !ok {
		return nil, errors.New("no active source")
	}
	if !r.started[r.active] {
		return nil, fmt.Errorf("source %s is not started", r.active)
	}
	return src, nil
}
