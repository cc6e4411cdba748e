package agentmesh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/habiliai/agentmesh/config"
	"github.com/habiliai/agentmesh/engine"
	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mylog"
	"github.com/habiliai/agentmesh/internal/stringslices"
	"github.com/habiliai/agentmesh/network"
	"github.com/habiliai/agentmesh/runtime"
	"github.com/habiliai/agentmesh/tool"
	"github.com/mokiat/gog"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type (
	// ModelFactory picks the LLM an agent runs on.
	ModelFactory func(conf *config.AgentConfig) (engine.Model, error)

	// Mesh hosts a set of agents in one process and wires orchestrators to
	// the agents they may call.
	Mesh struct {
		conf       *config.MeshConfig
		logger     *mylog.Logger
		agents     []config.AgentConfig
		registry   *network.Registry
		supervisor *network.Supervisor

		// orchestrator name -> its remote client
		clients map[string]*network.RemoteAgentClient

		db            *gorm.DB
		modelFactory  ModelFactory
		mcpFactory    *tool.MCPClientFactory
		serverOptions []runtime.ServerOption
	}

	Option func(*Mesh)
)

func WithLogger(logger *mylog.Logger) Option {
	return func(m *Mesh) { m.logger = logger }
}

func WithMeshConfig(conf *config.MeshConfig) Option {
	return func(m *Mesh) { m.conf = conf }
}

func WithAgents(agents ...config.AgentConfig) Option {
	return func(m *Mesh) { m.agents = append(m.agents, agents...) }
}

// WithDB persists tasks in db instead of memory.
func WithDB(db *gorm.DB) Option {
	return func(m *Mesh) { m.db = db }
}

func WithModelFactory(f ModelFactory) Option {
	return func(m *Mesh) { m.modelFactory = f }
}

func WithMCPClientFactory(f *tool.MCPClientFactory) Option {
	return func(m *Mesh) { m.mcpFactory = f }
}

func WithServerOptions(opts ...runtime.ServerOption) Option {
	return func(m *Mesh) { m.serverOptions = append(m.serverOptions, opts...) }
}

// New validates the agent definitions and registers every agent. It starts nothing.
func New(opts ...Option) (*Mesh, error) {
	m := &Mesh{
		clients: map[string]*network.RemoteAgentClient{},
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.conf == nil {
		m.conf = config.DefaultMeshConfig()
	}
	if err := m.conf.Validate(); err != nil {
		return nil, err
	}
	if m.logger == nil {
		m.logger = mylog.NewLogger(m.conf.LogLevel, m.conf.LogHandler)
	}
	if m.modelFactory == nil {
		modelConf := m.conf.ModelConfig
		m.modelFactory = func(ac *config.AgentConfig) (engine.Model, error) {
			return engine.NewModel(&modelConf, ac.Model)
		}
	}
	if m.mcpFactory == nil {
		m.mcpFactory = tool.NewMCPClientFactory()
	}
	if len(m.agents) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "no agents to serve")
	}

	registryOpts := []network.RegistryOption{network.WithServerOptions(m.serverOptions...)}
	if m.db != nil {
		registryOpts = append(registryOpts, network.WithTaskStoreFactory(func(name string) runtime.TaskStore {
			return runtime.NewGormTaskStore(m.db, name)
		}))
	}
	m.registry = network.NewRegistry(m.logger, registryOpts...)
	m.supervisor = network.NewSupervisor(m.logger,
		network.WithReadyMaxWait(m.conf.ReadyMaxWait()),
		network.WithReadyPollInterval(m.conf.ReadyPollInterval()),
		network.WithReadyProbeTimeout(m.conf.ReadyProbeTimeout()),
	)

	for i := range m.agents {
		if err := m.register(&m.agents[i]); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Mesh) register(ac *config.AgentConfig) error {
	if ac.Host == "" {
		ac.Host = m.conf.Host
	}
	if err := ac.Validate(); err != nil {
		return err
	}
	card, err := ac.Card()
	if err != nil {
		return err
	}

	model, err := m.modelFactory(ac)
	if err != nil {
		return errors.Wrapf(err, "agent %s: failed to create model %s", ac.Name, ac.Model)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(m.logger.With(slog.String("agent", ac.Name))),
		engine.WithSystemPromptFunc(func() (string, error) {
			return ac.RenderSystemPrompt(time.Now())
		}),
		engine.WithMCPClientFactory(m.mcpFactory),
	}
	if len(ac.MCPServers) > 0 {
		engineOpts = append(engineOpts, engine.WithToolServers(ac.MCPServers))
	}
	if ac.Orchestrator {
		clientOpts := []network.ClientOption{
			network.WithClientLogger(m.logger.With(slog.String("orchestrator", ac.Name))),
			network.WithTimeouts(network.DefaultTimeouts().WithRequest(m.conf.OrchestratorDispatchTimeout())),
		}
		if m.conf.DispatchRatePerSecond > 0 {
			clientOpts = append(clientOpts, network.WithRateLimit(rate.Limit(m.conf.DispatchRatePerSecond), 1))
		}
		client := network.NewRemoteAgentClient(clientOpts...)
		tools, err := client.Tools()
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, engine.WithTools(tools...))
		m.clients[ac.Name] = client
	}

	m.registry.Register(ac.Name, card, engine.NewEngine(ac.Name, model, engineOpts...), ac.StatusMessage,
		network.WithArtifactName(ac.ArtifactName),
	)
	m.logger.Info("agent registered", slog.String("name", ac.Name), slog.String("url", card.URL), slog.String("model", ac.Model))

	return nil
}

// Start launches every registered agent, waits for the fleet to become
// ready and introduces the callable agents to each orchestrator.
func (m *Mesh) Start(ctx context.Context) network.Readiness {
	m.supervisor.Launch(ctx, m.registry.ListForLaunch())
	readiness := m.supervisor.WaitReady(ctx)

	for _, ac := range m.agents {
		client, ok := m.clients[ac.Name]
		if !ok {
			continue
		}
		urls := gog.Map(m.remotesOf(ac), func(remote config.AgentConfig) string {
			return fmt.Sprintf("http://%s:%d", entity.DialHost(remote.Host), remote.Port)
		})
		for _, url := range urls {
			client.AddRemoteAgent(url)
		}

		for url, doc := range client.ListRemoteAgents(ctx) {
			m.logger.Info("remote agent",
				slog.String("orchestrator", ac.Name),
				slog.String("url", url),
				slog.Any("name", doc["name"]),
				slog.Any("version", doc["version"]),
			)
		}
	}

	return readiness
}

func (m *Mesh) remotesOf(orchestrator config.AgentConfig) []config.AgentConfig {
	return lo.Filter(m.agents, func(ac config.AgentConfig, _ int) bool {
		if ac.Orchestrator || ac.Name == orchestrator.Name {
			return false
		}
		return len(orchestrator.RemoteAgents) == 0 || stringslices.ContainsFold(orchestrator.RemoteAgents, ac.Name)
	})
}

// Wait blocks until every agent server has stopped.
func (m *Mesh) Wait() {
	m.supervisor.Wait()
}

func (m *Mesh) Registry() *network.Registry {
	return m.registry
}

func (m *Mesh) Supervisor() *network.Supervisor {
	return m.supervisor
}

// Client returns the remote client of the named orchestrator.
func (m *Mesh) Client(orchestrator string) (*network.RemoteAgentClient, error) {
	client, ok := m.clients[orchestrator]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "%s is not an orchestrator", orchestrator)
	}
	return client, nil
}

// Orchestrators lists the cards of the orchestrator agents.
func (m *Mesh) Orchestrators() []entity.AgentCard {
	var cards []entity.AgentCard
	for _, ac := range m.agents {
		if !ac.Orchestrator {
			continue
		}
		if card, err := ac.Card(); err == nil {
			cards = append(cards, card)
		}
	}
	return cards
}
