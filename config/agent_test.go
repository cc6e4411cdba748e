package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/habiliai/agentmesh/config"
	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const echoAgentYAML = `
name: Echo Agent
description: repeats things
model: openai/gpt-4o-mini
port: 18080
statusMessage: Echoing...
system: 'Today is {{ now | date "2006-01-02" }} ({{ .CurrentDate }}) for {{ .Name }}.'
skills:
  - id: echo
    name: Echo
    examples: [say hi]
mcpServers:
  files:
    command: npx
    args: ["-y", "server-files"]
    env:
      TOKEN: ${TOKEN}
`

func TestParseAgent(t *testing.T) {
	agent, err := config.ParseAgent([]byte(echoAgentYAML), "echo.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Echo Agent", agent.Name)
	assert.Equal(t, "0.0.0.0", agent.Host)
	assert.Equal(t, entity.DefaultArtifactName, agent.ArtifactName)
	assert.Equal(t, tool.MCPTransportStdio, func() tool.MCPTransportType {
		s := agent.MCPServers["files"]
		return s.GetTransport()
	}())
	assert.Equal(t, "${TOKEN}", agent.MCPServers["files"].Env["TOKEN"])

	card, err := agent.Card()
	require.NoError(t, err)
	assert.Equal(t, 18080, card.Port)
	assert.Equal(t, "http://127.0.0.1:18080/", card.URL)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, []string{"say hi"}, card.Skills[0].Examples)

	prompt, err := agent.RenderSystemPrompt(time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, prompt, "(2025-07-01) for Echo Agent.")
}

func TestParseAgentRejectsInvalid(t *testing.T) {
	for name, doc := range map[string]string{
		"missing name":   "model: m\nport: 1\nstatusMessage: s",
		"missing model":  "name: a\nport: 1\nstatusMessage: s",
		"missing status": "name: a\nmodel: m\nport: 1",
		"bad port":       "name: a\nmodel: m\nport: 0\nstatusMessage: s",
		"bad template":   "name: a\nmodel: m\nport: 1\nstatusMessage: s\nsystem: '{{ .Name'",
		"not yaml":       "name: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.ParseAgent([]byte(doc), name)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestLoadAgentsFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(echoAgentYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	files, err := config.ExpandAgentFiles([]string{dir})
	require.NoError(t, err)
	require.Len(t, files, 1)

	agents, err := config.LoadAgentsFromFiles(files)
	require.NoError(t, err)
	assert.Equal(t, "Echo Agent", agents[0].Name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(echoAgentYAML), 0o644))
	files, err = config.ExpandAgentFiles([]string{dir})
	require.NoError(t, err)
	_, err = config.LoadAgentsFromFiles(files)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig, "duplicate ports")

	_, err = config.ExpandAgentFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestDefaultAgents(t *testing.T) {
	agents, err := config.DefaultAgents()
	require.NoError(t, err)
	require.Len(t, agents, 5)

	byName := map[string]config.AgentConfig{}
	for _, a := range agents {
		byName[a.Name] = a
	}
	assert.Equal(t, "Searching for Gmail messages...", byName["Gmail Agent"].StatusMessage)
	assert.Equal(t, "Searching for Calendar events...", byName["Calendar Agent"].StatusMessage)
	assert.Equal(t, "Searching for Todoist tasks...", byName["Todoist Agent"].StatusMessage)
	assert.Equal(t, "Managing Obsidian vault...", byName["Obsidian Agent"].StatusMessage)
	assert.Equal(t, "Orchestrating agents...", byName["Orchestration Agent"].StatusMessage)
	assert.True(t, byName["Orchestration Agent"].Orchestrator)
	assert.Equal(t, tool.MCPTransportHTTP, byName["Gmail Agent"].MCPServers["gmail"].Transport)
}
