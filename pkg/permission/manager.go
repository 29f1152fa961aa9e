package permission

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/go-drift/permissions/pkg/errors"
)

// DefaultProbeConcurrency bounds the parallel native checks made by CheckAll.
const DefaultProbeConcurrency = 4

// Change reports the current status of a capability after the platform
// signaled that its authorization changed.
type Change struct {
	Capability Capability `json:"capability"`
	Status     Status     `json:"status"`
}

// Manager is the entry point for checking and requesting capabilities.
type Manager struct {
	auth        Authorizer
	registry    *Registry
	coordinator *Coordinator
	logger      *slog.Logger
	probeLimit  int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and its coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRegistry replaces the default capability table.
func WithRegistry(registry *Registry) Option {
	return func(m *Manager) {
		m.registry = registry
	}
}

// WithProbeConcurrency bounds the parallel checks made by CheckAll.
func WithProbeConcurrency(n int) Option {
	return func(m *Manager) {
		m.probeLimit = n
	}
}

// NewManager returns a manager whose strategies are backed by auth.
func NewManager(auth Authorizer, opts ...Option) *Manager {
	m := &Manager{
		auth:       auth,
		probeLimit: DefaultProbeConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.registry == nil {
		m.registry = DefaultRegistry(auth)
	}
	if m.probeLimit <= 0 {
		m.probeLimit = DefaultProbeConcurrency
	}
	m.coordinator = NewCoordinator(m.registry, m.logger)
	return m
}

// Registry returns the capability table in use.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// CheckStatus returns the current status of c without prompting. A
// capability without a strategy reports StatusUnknown.
func (m *Manager) CheckStatus(c Capability) Status {
	strategy, ok := m.registry.Resolve(c)
	if !ok {
		return StatusUnknown
	}
	return strategy.Status(c)
}

// CheckAll checks every unique capability in caps in parallel. It fails only
// if ctx ends before all checks have run.
func (m *Manager) CheckAll(ctx context.Context, caps []Capability) (Result, error) {
	unique := dedupe(caps)
	statuses := make([]Status, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.probeLimit)
	for i, c := range unique {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			statuses[i] = m.CheckStatus(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(Result, len(unique))
	for i, c := range unique {
		out[c] = statuses[i]
	}
	return out, nil
}

// RequestBatch requests caps and calls emit once with the combined Result.
// See Coordinator.RequestBatch.
func (m *Manager) RequestBatch(caps []Capability, emit func(Result)) {
	m.coordinator.RequestBatch(caps, emit)
}

// Request requests caps and waits for the combined Result or for ctx to end.
func (m *Manager) Request(ctx context.Context, caps ...Capability) (Result, error) {
	return m.coordinator.Request(ctx, caps...)
}

// OpenAppSettings opens the system settings page for the app and reports
// whether navigation succeeded. It does not interact with pending batches.
func (m *Manager) OpenAppSettings(ctx context.Context) bool {
	opener, ok := m.auth.(SettingsOpener)
	if !ok || ctx.Err() != nil {
		return false
	}
	opened, err := opener.OpenSettings()
	if err != nil {
		errors.Report(&errors.Error{
			Op:      "permission.openSettings",
			Kind:    errors.KindPlatform,
			Channel: MethodChannelName,
			Err:     err,
		})
		return false
	}
	return opened
}

// Listen calls handler with the fresh status of every capability backed by
// a native domain that reports a change. It returns an unsubscribe function.
// If the authorizer cannot observe changes, handler is never called.
func (m *Manager) Listen(handler func(Change)) (unsubscribe func()) {
	watcher, ok := m.auth.(ChangeWatcher)
	if !ok {
		return func() {}
	}
	return watcher.WatchChanges(func(src NativeRequest) {
		for _, c := range m.affected(src) {
			handler(Change{Capability: c, Status: m.CheckStatus(c)})
		}
	})
}

// affected returns the capabilities whose strategy reads the changed domain.
// A change without a target touches every capability of the domain.
func (m *Manager) affected(src NativeRequest) []Capability {
	var out []Capability
	for _, c := range m.registry.Capabilities() {
		strategy, _ := m.registry.Resolve(c)
		s, ok := strategy.(sourced)
		if !ok {
			continue
		}
		own := s.Source(c)
		if own.Domain != src.Domain {
			continue
		}
		if src.Target != "" && own.Target != src.Target {
			continue
		}
		out = append(out, c)
	}
	m.logger.Debug("authorization changed", "domain", src.Domain, "target", src.Target, "capabilities", len(out))
	return out
}
