package engine

import (
	"context"
	"log/slog"

	"github.com/habiliai/agentmesh/agent"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mylog"
	"github.com/habiliai/agentmesh/tool"
	"golang.org/x/sync/errgroup"
)

const defaultMaxTurns = 10

type (
	// Engine runs one LLM-plus-tools turn per task.
	Engine struct {
		name        string
		logger      *slog.Logger
		model       Model
		system      func() (string, error)
		toolServers map[string]tool.MCPServerConfig
		tools       []tool.Tool
		factory     *tool.MCPClientFactory
		maxTurns    int
		maxTokens   int
	}

	Option func(*Engine)
)

var (
	_ agent.Agent = (*Engine)(nil)
)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithSystemPrompt(system string) Option {
	return func(e *Engine) {
		e.system = func() (string, error) { return system, nil }
	}
}

// WithSystemPromptFunc renders the system prompt at the start of every turn.
func WithSystemPromptFunc(fn func() (string, error)) Option {
	return func(e *Engine) { e.system = fn }
}

func WithToolServers(servers map[string]tool.MCPServerConfig) Option {
	return func(e *Engine) { e.toolServers = servers }
}

func WithTools(tools ...tool.Tool) Option {
	return func(e *Engine) { e.tools = append(e.tools, tools...) }
}

func WithMCPClientFactory(factory *tool.MCPClientFactory) Option {
	return func(e *Engine) { e.factory = factory }
}

func WithMaxTurns(n int) Option {
	return func(e *Engine) { e.maxTurns = n }
}

func WithMaxTokens(n int) Option {
	return func(e *Engine) { e.maxTokens = n }
}

func NewEngine(name string, model Model, opts ...Option) *Engine {
	e := &Engine{
		name:     name,
		logger:   slog.Default(),
		model:    model,
		system:   func() (string, error) { return "", nil },
		factory:  tool.NewMCPClientFactory(),
		maxTurns: defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("agent", name)

	return e
}

func (e *Engine) Run(ctx context.Context, input string, opts ...agent.RunOption) (string, error) {
	runOpts := agent.NewRunOptions(opts...)

	tools := tool.NewSet(e.tools...)
	if !runOpts.SkipToolServers && len(e.toolServers) > 0 {
		session, err := e.factory.Open(ctx, e.logger, e.toolServers)
		if err != nil {
			return "", err
		}
		defer func() {
			if err := session.Close(); err != nil {
				e.logger.Warn("failed to close tool servers", mylog.Err(err))
			}
		}()
		tools.Add(session.Tools()...)
	}

	system, err := e.system()
	if err != nil {
		return "", errors.Wrapf(err, "failed to render system prompt")
	}

	messages := []Message{{Role: RoleUser, Content: input}}
	for turn := 0; turn < e.maxTurns; turn++ {
		resp, err := e.model.Generate(ctx, &Request{
			System:    system,
			Messages:  messages,
			Tools:     tools.Definitions(),
			MaxTokens: e.maxTokens,
		})
		if err != nil {
			return "", err
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		results, err := e.callTools(ctx, tools, resp.ToolCalls)
		if err != nil {
			return "", err
		}
		messages = append(messages, results...)
	}

	return "", errors.Errorf("agent %s did not finish within %d turns", e.name, e.maxTurns)
}

// callTools runs the calls concurrently. A failing tool is reported to the
// model as text so it can recover.
func (e *Engine) callTools(ctx context.Context, tools *tool.Set, calls []ToolCall) ([]Message, error) {
	results := make([]Message, len(calls))

	eg, ctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		eg.Go(func() error {
			e.logger.Debug("call tool", "tool", call.Name, "arguments", call.Arguments)
			out, err := tools.Call(ctx, call.Name, call.Arguments)
			if err != nil {
				e.logger.Warn("tool call failed", "tool", call.Name, mylog.Err(err))
				out = "Error: " + err.Error()
			}
			results[i] = Message{
				Role:       RoleTool,
				Content:    out,
				ToolCallID: call.ID,
			}
			return ctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, errors.Wrapf(err, "tool calls interrupted")
	}

	return results, nil
}
