package network

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mylog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultReadyMaxWait      = 30 * time.Second
	DefaultReadyPollInterval = 500 * time.Millisecond
	DefaultReadyProbeTimeout = time.Second
)

type (
	AgentStatus struct {
		Name    string `json:"name"`
		URL     string `json:"url"`
		Alive   bool   `json:"alive"`
		Healthy bool   `json:"healthy"`
		// Err is the reason the worker stopped, if it did.
		Err error `json:"-"`
	}

	Readiness struct {
		Ready   bool          `json:"ready"`
		Elapsed time.Duration `json:"elapsed"`
		Agents  []AgentStatus `json:"agents"`
	}

	SupervisorOption func(*Supervisor)

	// Supervisor runs one worker per agent server and watches their readiness.
	Supervisor struct {
		logger       *mylog.Logger
		httpClient   *http.Client
		maxWait      time.Duration
		pollInterval time.Duration
		probeTimeout time.Duration

		mu      sync.Mutex
		workers map[string]*worker
		wg      sync.WaitGroup
	}

	worker struct {
		spec  LaunchSpec
		alive atomic.Bool

		mu  sync.Mutex
		err error
	}
)

func WithReadyMaxWait(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.maxWait = d }
}

func WithReadyPollInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.pollInterval = d }
}

func WithReadyProbeTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.probeTimeout = d }
}

func WithProbeClient(c *http.Client) SupervisorOption {
	return func(s *Supervisor) { s.httpClient = c }
}

func NewSupervisor(logger *mylog.Logger, opts ...SupervisorOption) *Supervisor {
	if logger == nil {
		logger = mylog.Discard()
	}
	s := &Supervisor{
		logger:       logger,
		httpClient:   &http.Client{},
		maxWait:      DefaultReadyMaxWait,
		pollInterval: DefaultReadyPollInterval,
		probeTimeout: DefaultReadyProbeTimeout,
		workers:      map[string]*worker{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Launch starts a worker per spec. A worker that fails or panics is logged
// and reported not alive. It is never restarted.
func (s *Supervisor) Launch(ctx context.Context, specs []LaunchSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, spec := range specs {
		if w, ok := s.workers[spec.Name]; ok && w.alive.Load() {
			s.logger.Warn("agent is already running", slog.String("agent", spec.Name))
			continue
		}

		w := &worker{spec: spec}
		w.alive.Store(true)
		s.workers[spec.Name] = w

		s.wg.Add(1)
		go s.run(ctx, w)
	}
}

func (s *Supervisor) run(ctx context.Context, w *worker) {
	defer s.wg.Done()
	defer w.alive.Store(false)

	logger := s.logger.With(slog.String("agent", w.spec.Name), slog.Int("port", w.spec.Port))
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("panic: %v", r)
			}
		}()

		server, err := w.spec.Factory()
		if err != nil {
			return err
		}
		logger.Info("starting agent server")
		return server.ListenAndServe(ctx)
	}()

	w.mu.Lock()
	w.err = err
	w.mu.Unlock()

	if err != nil {
		logger.Error("agent server crashed", mylog.Err(err))
		return
	}
	logger.Info("agent server stopped")
}

// Wait blocks until every worker has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) Alive(name string) bool {
	s.mu.Lock()
	w, ok := s.workers[name]
	s.mu.Unlock()

	return ok && w.alive.Load()
}

// WaitReady polls until every worker is alive and answers its discovery
// endpoint, or until the wait bound passes. It always returns.
func (s *Supervisor) WaitReady(ctx context.Context) Readiness {
	start := time.Now()
	deadline := start.Add(s.maxWait)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var (
		statuses []AgentStatus
		ready    bool
	)
	for {
		statuses = s.check(ctx)
		ready = allReady(statuses)
		if ready || len(statuses) == 0 || ctx.Err() != nil || !time.Now().Before(deadline) {
			break
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		case <-time.After(time.Until(deadline)):
		}
	}

	readiness := Readiness{
		Ready:   ready,
		Elapsed: time.Since(start),
		Agents:  statuses,
	}
	s.report(readiness)

	return readiness
}

func allReady(statuses []AgentStatus) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, st := range statuses {
		if !st.Alive || !st.Healthy {
			return false
		}
	}
	return true
}

func (s *Supervisor) report(r Readiness) {
	if r.Ready {
		s.logger.Info("all agents are ready", slog.Int("agents", len(r.Agents)), slog.Duration("elapsed", r.Elapsed))
	} else {
		s.logger.Warn("agents are not ready", slog.Int("agents", len(r.Agents)), slog.Duration("elapsed", r.Elapsed))
	}
	for _, st := range r.Agents {
		attrs := []any{
			slog.String("agent", st.Name),
			slog.Bool("alive", st.Alive),
			slog.Bool("healthy", st.Healthy),
		}
		if st.Err != nil {
			attrs = append(attrs, mylog.Err(st.Err))
		}
		s.logger.Info("agent status", attrs...)
	}
}

func (s *Supervisor) check(ctx context.Context) []AgentStatus {
	s.mu.Lock()
	workers := make([]*worker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()
	sort.Slice(workers, func(i, j int) bool { return workers[i].spec.Name < workers[j].spec.Name })

	statuses := make([]AgentStatus, len(workers))
	var g errgroup.Group
	for i, w := range workers {
		w.mu.Lock()
		werr := w.err
		w.mu.Unlock()

		statuses[i] = AgentStatus{
			Name:  w.spec.Name,
			URL:   fmt.Sprintf("http://%s:%d", entity.DialHost(w.spec.Host), w.spec.Port),
			Alive: w.alive.Load(),
			Err:   werr,
		}
		if !statuses[i].Alive {
			continue
		}
		g.Go(func() error {
			statuses[i].Healthy = s.probe(ctx, statuses[i].URL+entity.WellKnownAgentPath)
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}

func (s *Supervisor) probe(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
