package network

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mylog"
	"github.com/habiliai/agentmesh/runtime"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type (
	// DispatchResult is the outcome of a dispatch. It always renders as text.
	DispatchResult struct {
		Output string
		Err    error
	}

	ClientOption func(*RemoteAgentClient)

	// RemoteAgentClient discovers remote agents and dispatches tasks to them.
	// Discovery documents are cached per normalized URL and never expire.
	RemoteAgentClient struct {
		mu     sync.Mutex
		agents map[string]map[string]any

		logger     *mylog.Logger
		timeouts   Timeouts
		httpClient *http.Client
		limiter    *rate.Limiter
		newClient  func(url string, httpClient *http.Client) runtime.A2AClient
	}
)

func (r DispatchResult) Text() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return r.Output
}

func (r DispatchResult) OK() bool {
	return r.Err == nil
}

func WithClientLogger(logger *mylog.Logger) ClientOption {
	return func(c *RemoteAgentClient) { c.logger = logger }
}

func WithTimeouts(t Timeouts) ClientOption {
	return func(c *RemoteAgentClient) { c.timeouts = t }
}

// WithHTTPClient overrides the client built from the configured timeouts.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *RemoteAgentClient) { c.httpClient = httpClient }
}

// WithRateLimit bounds outbound dispatches per second.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *RemoteAgentClient) { c.limiter = rate.NewLimiter(limit, burst) }
}

func WithA2AClientFactory(f func(url string, httpClient *http.Client) runtime.A2AClient) ClientOption {
	return func(c *RemoteAgentClient) { c.newClient = f }
}

func NewRemoteAgentClient(opts ...ClientOption) *RemoteAgentClient {
	c := &RemoteAgentClient{
		agents:    map[string]map[string]any{},
		logger:    mylog.Discard(),
		timeouts:  DefaultTimeouts(),
		newClient: runtime.NewA2AClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = c.timeouts.HTTPClient()
	}
	return c
}

// NormalizeURL adds a missing http scheme, lowercases the scheme and drops
// trailing slashes. A URL without a host normalizes to "".
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)

	scheme, rest := "http", u
	if i := strings.Index(u, "://"); i > 0 && isScheme(u[:i]) {
		scheme, rest = strings.ToLower(u[:i]), u[i+len("://"):]
	}
	rest = strings.TrimRight(rest, "/")
	if rest == "" {
		return ""
	}
	return scheme + "://" + rest
}

func isScheme(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func (c *RemoteAgentClient) AddRemoteAgent(agentURL string) {
	u := NormalizeURL(agentURL)
	if u == "" {
		c.logger.Warn("ignoring remote agent without a host", slog.String("url", agentURL))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.agents[u]; !ok {
		c.agents[u] = nil
	}
}

func (c *RemoteAgentClient) RemoveRemoteAgent(agentURL string) {
	u := NormalizeURL(agentURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.agents, u)
}

// RemoteAgentURLs lists every registered URL, fetched or not.
func (c *RemoteAgentClient) RemoteAgentURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	urls := make([]string, 0, len(c.agents))
	for u := range c.agents {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// ListRemoteAgents returns the discovery document of every reachable agent.
// Unfetched agents are fetched once; a failed fetch is logged and the agent
// is left out of this listing only.
func (c *RemoteAgentClient) ListRemoteAgents(ctx context.Context) map[string]map[string]any {
	result := map[string]map[string]any{}
	var pending []string

	c.mu.Lock()
	for u, doc := range c.agents {
		if doc != nil {
			result[u] = doc
		} else {
			pending = append(pending, u)
		}
	}
	c.mu.Unlock()

	var (
		g       errgroup.Group
		fetchMu sync.Mutex
	)
	for _, u := range pending {
		g.Go(func() error {
			doc, err := c.fetchCard(ctx, u)
			if err != nil {
				c.logger.Warn("failed to fetch agent info", slog.String("url", u), mylog.Err(err))
				return nil
			}
			// skip agents removed while the fetch was in flight
			if !c.store(u, doc, true) {
				return nil
			}

			fetchMu.Lock()
			result[u] = doc
			fetchMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// CreateTask sends message to the agent at agentURL as a new task and
// returns the first text artifact of the reply. Failures come back as data.
func (c *RemoteAgentClient) CreateTask(ctx context.Context, agentURL, message string) DispatchResult {
	u := NormalizeURL(agentURL)
	logger := c.logger.With(slog.String("url", u))

	output, err := c.createTask(ctx, u, message)
	if err != nil {
		logger.Warn("dispatch failed", mylog.Err(err))
		return DispatchResult{Err: err}
	}
	logger.Debug("dispatch completed", slog.Int("output_len", len(output)))

	return DispatchResult{Output: output}
}

func (c *RemoteAgentClient) GetTask(ctx context.Context, agentURL, taskID string) (*entity.Task, error) {
	client, err := c.clientFor(ctx, NormalizeURL(agentURL))
	if err != nil {
		return nil, err
	}
	return client.GetTask(ctx, &runtime.TaskQueryParams{ID: taskID})
}

func (c *RemoteAgentClient) CancelTask(ctx context.Context, agentURL, taskID string) (*entity.Task, error) {
	client, err := c.clientFor(ctx, NormalizeURL(agentURL))
	if err != nil {
		return nil, err
	}
	return client.CancelTask(ctx, &runtime.TaskIDParams{ID: taskID})
}

func (c *RemoteAgentClient) createTask(ctx context.Context, u, message string) (string, error) {
	client, err := c.clientFor(ctx, u)
	if err != nil {
		return "", err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", errors.Wrapf(err, "rate limited")
		}
	}

	res, err := client.SendMessage(ctx, &runtime.MessageSendParams{
		Message: entity.NewTextMessage(entity.RoleUser, message),
	})
	if err != nil {
		return "", err
	}

	return extractText(res)
}

func (c *RemoteAgentClient) clientFor(ctx context.Context, u string) (runtime.A2AClient, error) {
	doc, err := c.resolve(ctx, u)
	if err != nil {
		return nil, err
	}

	var card entity.AgentCard
	if err := mapstructure.Decode(doc, &card); err != nil {
		return nil, errors.Wrapf(err, "invalid agent card from %s", u)
	}
	target := u
	if card.URL != "" {
		target = card.URL
	}

	return c.newClient(target, c.httpClient), nil
}

func (c *RemoteAgentClient) resolve(ctx context.Context, u string) (map[string]any, error) {
	if u == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "agent url has no host")
	}

	c.mu.Lock()
	doc, registered := c.agents[u]
	c.mu.Unlock()
	if doc != nil {
		return doc, nil
	}

	doc, err := c.fetchCard(ctx, u)
	if err != nil {
		return nil, err
	}
	c.store(u, doc, registered)

	return doc, nil
}

// store caches doc under u. With mustExist it only fills an entry that is
// still registered and reports whether it did.
func (c *RemoteAgentClient) store(u string, doc map[string]any, mustExist bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.agents[u]; mustExist && !ok {
		return false
	}
	c.agents[u] = doc
	return true
}

func (c *RemoteAgentClient) fetchCard(ctx context.Context, u string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+entity.WellKnownAgentPath, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid agent url %s", u)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch agent card from %s", u)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read agent card from %s", u)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("agent card request to %s returned %s", u, resp.Status)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrapf(err, "invalid agent card from %s", u)
	}
	if doc == nil {
		return nil, errors.Errorf("empty agent card from %s", u)
	}

	return doc, nil
}

func extractText(res *entity.SendMessageResult) (string, error) {
	switch {
	case res == nil:
		return "", errors.Wrapf(errors.ErrInvalidRequest, "empty dispatch result")
	case res.Task != nil:
		if text, ok := res.Task.ArtifactText(); ok {
			return text, nil
		}
	case res.Message != nil:
		if text, ok := res.Message.Text(); ok {
			return text, nil
		}
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode dispatch result")
	}
	return string(data), nil
}
