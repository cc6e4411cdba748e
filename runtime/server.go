package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/habiliai/agentmesh/agent"
	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mylog"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type (
	// Server serves one agent over A2A.
	Server struct {
		card    entity.AgentCard
		logger  *mylog.Logger
		handler http.Handler
	}

	serverOptions struct {
		card          *entity.AgentCard
		agent         agent.Agent
		statusMessage string
		artifactName  string
		logger        *mylog.Logger
		store         TaskStore
		registerer    prometheus.Registerer
		fallback      bool
	}

	ServerOption func(*serverOptions)
)

func WithCard(card entity.AgentCard) ServerOption {
	return func(o *serverOptions) { o.card = &card }
}

func WithAgent(a agent.Agent) ServerOption {
	return func(o *serverOptions) { o.agent = a }
}

func WithStatusMessage(msg string) ServerOption {
	return func(o *serverOptions) { o.statusMessage = msg }
}

func WithArtifactName(name string) ServerOption {
	return func(o *serverOptions) {
		if name != "" {
			o.artifactName = name
		}
	}
}

func WithLogger(logger *mylog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = logger }
}

// WithTaskStore replaces the default in-memory task store.
func WithTaskStore(store TaskStore) ServerOption {
	return func(o *serverOptions) { o.store = store }
}

func WithMetricsRegisterer(reg prometheus.Registerer) ServerOption {
	return func(o *serverOptions) { o.registerer = reg }
}

// WithFallbackWithoutToolServers enables or disables retrying a turn
// without tool servers when they are forbidden. Enabled by default.
func WithFallbackWithoutToolServers(enabled bool) ServerOption {
	return func(o *serverOptions) { o.fallback = enabled }
}

// NewServer builds the HTTP surface of an agent. It opens no socket.
func NewServer(opts ...ServerOption) (*Server, error) {
	o := serverOptions{
		artifactName: entity.DefaultArtifactName,
		fallback:     true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.card == nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "agent card is required")
	}
	if err := o.card.Validate(); err != nil {
		return nil, err
	}
	if o.agent == nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "agent %s has no implementation", o.card.Name)
	}
	if o.logger == nil {
		o.logger = mylog.Discard()
	}
	if o.store == nil {
		o.store = NewMemoryTaskStore()
	}

	logger := o.logger.With(slog.String("agent", o.card.Name))
	metrics, err := NewMetrics(o.card.Name, o.registerer)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "agent %s: failed to register metrics: %v", o.card.Name, err)
	}

	svc := &A2AService{
		executor: NewExecutor(o.agent, o.statusMessage, o.artifactName, o.fallback, logger),
		store:    o.store,
		metrics:  metrics,
		logger:   logger,
	}
	rpcHandler, err := newA2AHandler(svc, logger)
	if err != nil {
		return nil, err
	}

	card := *o.card
	document, err := json.Marshal(card)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode agent card")
	}

	router := mux.NewRouter()
	router.HandleFunc(entity.WellKnownAgentPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(document)
	}).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.Handle("/", rpcHandler).Methods(http.MethodPost)

	return &Server{
		card:   card,
		logger: logger,
		handler: handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		)(router),
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Name() string {
	return s.card.Name
}

func (s *Server) Addr() string {
	return s.card.Addr()
}

func (s *Server) Card() entity.AgentCard {
	return s.card
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.Addr())
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.Addr())
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is canceled or the
// listener fails. The server is shut down before Serve returns.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-serveCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("failed to shut down gracefully", mylog.Err(err))
		}
	}()

	s.logger.Info("agent server listening", slog.String("addr", listener.Addr().String()), slog.String("url", s.card.URL))
	err := server.Serve(listener)
	stop()
	<-shutdownDone

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "agent %s stopped serving", s.card.Name)
	}
	return nil
}
