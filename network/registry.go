package network

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/habiliai/agentmesh/agent"
	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mylog"
	"github.com/habiliai/agentmesh/runtime"
)

type (
	// AgentRegistration binds a card, an agent and its task presentation.
	AgentRegistration struct {
		Name          string
		Card          entity.AgentCard
		Agent         agent.Agent
		StatusMessage string
		ArtifactName  string
	}

	// Runnable is a server the supervisor can run until its context ends.
	Runnable interface {
		ListenAndServe(ctx context.Context) error
	}

	LaunchSpec struct {
		Name    string
		Host    string
		Port    int
		Factory func() (Runnable, error)
	}

	RegisterOption func(*AgentRegistration)

	RegistryOption func(*Registry)

	Registry struct {
		mu      sync.RWMutex
		entries map[string]AgentRegistration

		logger       *mylog.Logger
		serverOpts   []runtime.ServerOption
		storeFactory func(name string) runtime.TaskStore
	}
)

func WithArtifactName(name string) RegisterOption {
	return func(r *AgentRegistration) {
		if name != "" {
			r.ArtifactName = name
		}
	}
}

// WithServerOptions appends options to every server the registry builds.
func WithServerOptions(opts ...runtime.ServerOption) RegistryOption {
	return func(r *Registry) { r.serverOpts = append(r.serverOpts, opts...) }
}

// WithTaskStoreFactory gives every built server its own task store.
func WithTaskStoreFactory(f func(name string) runtime.TaskStore) RegistryOption {
	return func(r *Registry) { r.storeFactory = f }
}

func NewRegistry(logger *mylog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = mylog.Discard()
	}
	r := &Registry{
		entries: map[string]AgentRegistration{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores the agent under name, replacing any previous entry.
func (r *Registry) Register(name string, card entity.AgentCard, a agent.Agent, statusMessage string, opts ...RegisterOption) {
	reg := AgentRegistration{
		Name:          name,
		Card:          card,
		Agent:         a,
		StatusMessage: statusMessage,
		ArtifactName:  entity.DefaultArtifactName,
	}
	for _, opt := range opts {
		opt(&reg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		r.logger.Debug("replacing agent registration", slog.String("name", name))
	}
	r.entries[name] = reg
}

func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

func (r *Registry) Lookup(name string) (AgentRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[name]
	if !ok {
		return AgentRegistration{}, errors.Wrapf(errors.ErrNotFound, "agent %s is not registered", name)
	}
	return reg, nil
}

func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListForLaunch snapshots the registry. Each factory builds a fresh server.
func (r *Registry) ListForLaunch() []LaunchSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]LaunchSpec, 0, len(r.entries))
	for _, reg := range r.entries {
		specs = append(specs, LaunchSpec{
			Name:    reg.Name,
			Host:    reg.Card.Host,
			Port:    reg.Card.Port,
			Factory: r.factory(reg),
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	return specs
}

func (r *Registry) factory(reg AgentRegistration) func() (Runnable, error) {
	opts := append([]runtime.ServerOption{
		runtime.WithLogger(r.logger),
	}, r.serverOpts...)

	return func() (Runnable, error) {
		serverOpts := append(slices.Clip(opts),
			runtime.WithCard(reg.Card),
			runtime.WithAgent(reg.Agent),
			runtime.WithStatusMessage(reg.StatusMessage),
			runtime.WithArtifactName(reg.ArtifactName),
		)
		if r.storeFactory != nil {
			serverOpts = append(serverOpts, runtime.WithTaskStore(r.storeFactory(reg.Name)))
		}

		server, err := runtime.NewServer(serverOpts...)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to build server for %s", reg.Name)
		}
		return server, nil
	}
}
