package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kdimtricp/formfill/internal/status"
	"github.com/kdimtricp/formfill/internal/templates"
)

const DefaultTTL = 2 * time.Hour

type Options struct {
	StatusInterval time.Duration
	Scheduler      status.Scheduler
	TTL            time.Duration
}

// Manager owns the workspaces of all connected browsers, keyed by an
// opaque browser id. Workspaces live in memory only.
type Manager struct {
	mu         sync.Mutex
	registry   *templates.Registry
	opts       Options
	workspaces map[string]*Workspace
	now        func() time.Time
	logger     *slog.Logger
}

func NewManager(registry *templates.Registry, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Manager{
		registry:   registry,
		opts:       opts,
		workspaces: make(map[string]*Workspace),
		now:        time.Now,
		logger:     logger,
	}
}

func (m *Manager) Registry() *templates.Registry {
	return m.registry
}

// Get returns the workspace for id and marks it as used.
func (m *Manager) Get(id string) (*Workspace, bool) {
	m.mu.Lock()
	ws, ok := m.workspaces[id]
	m.mu.Unlock()

	if ok {
		ws.touch(m.now())
	}
	return ws, ok
}

// Create starts a workspace under a fresh browser id.
func (m *Manager) Create() *Workspace {
	id := uuid.New().String()
	ws := NewWorkspace(id, m.registry, status.NewNotifier(m.opts.StatusInterval, m.opts.Scheduler), m.logger)
	ws.touch(m.now())

	m.mu.Lock()
	m.workspaces[id] = ws
	m.mu.Unlock()

	m.logger.Info("session.workspace.created", "workspace", id)
	return ws
}

// GetOrCreate returns the workspace for id, creating a new one (with a new
// id) when id is unknown. The boolean reports whether one was created.
func (m *Manager) GetOrCreate(id string) (*Workspace, bool) {
	if id != "" {
		if ws, ok := m.Get(id); ok {
			return ws, false
		}
	}
	return m.Create(), true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// Sweep drops workspaces idle for longer than the TTL. Workspaces with an
// upload in flight are kept.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.opts.TTL)

	m.mu.Lock()
	var evicted []*Workspace
	for id, ws := range m.workspaces {
		lastSeen, inFlight := ws.idleSince()
		if inFlight || lastSeen.After(cutoff) {
			continue
		}
		delete(m.workspaces, id)
		evicted = append(evicted, ws)
	}
	m.mu.Unlock()

	for _, ws := range evicted {
		ws.Close()
		m.logger.Info("session.workspace.evicted", "workspace", ws.ID())
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}
