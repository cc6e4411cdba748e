package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/goccy/go-yaml"
	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/tool"
)

type AgentConfig struct {
	Name          string                          `yaml:"name"`
	Description   string                          `yaml:"description"`
	Model         string                          `yaml:"model"`
	System        string                          `yaml:"system"`
	Host          string                          `yaml:"host"`
	Port          int                             `yaml:"port"`
	Organization  string                          `yaml:"organization"`
	Version       string                          `yaml:"version"`
	StatusMessage string                          `yaml:"statusMessage"`
	ArtifactName  string                          `yaml:"artifactName"`
	Skills        []entity.AgentSkill             `yaml:"skills"`
	MCPServers    map[string]tool.MCPServerConfig `yaml:"mcpServers"`

	// Orchestrator agents get the remote agent tools instead of MCP servers.
	Orchestrator bool `yaml:"orchestrator"`
	// RemoteAgents limits which agents an orchestrator may call; empty means all.
	RemoteAgents []string `yaml:"remoteAgents"`
}

func (c *AgentConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "agent name is required")
	}
	if c.Model == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "agent %s: model is required", c.Name)
	}
	if c.StatusMessage == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "agent %s: statusMessage is required", c.Name)
	}
	if _, err := c.Card(); err != nil {
		return err
	}
	if _, err := c.parseSystemPrompt(); err != nil {
		return err
	}

	return nil
}

// Card builds the discovery card the agent is served with.
func (c *AgentConfig) Card() (entity.AgentCard, error) {
	return entity.NewAgentCard(c.Name, c.Host, c.Port,
		entity.WithDescription(c.Description),
		entity.WithOrganization(c.Organization),
		entity.WithVersion(c.Version),
		entity.WithSkills(c.Skills...),
	)
}

// RenderSystemPrompt executes the system prompt template with sprig
// functions, e.g. {{ now | date "2006-01-02" }}.
func (c *AgentConfig) RenderSystemPrompt(now time.Time) (string, error) {
	tmpl, err := c.parseSystemPrompt()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{
		"Name":        c.Name,
		"Description": c.Description,
		"CurrentDate": now.Format("2006-01-02"),
		"Now":         now,
	}); err != nil {
		return "", errors.Wrapf(err, "failed to render system prompt of %s", c.Name)
	}

	return buf.String(), nil
}

func (c *AgentConfig) parseSystemPrompt() (*template.Template, error) {
	tmpl, err := template.New(c.Name).Funcs(sprig.TxtFuncMap()).Parse(c.System)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "agent %s: invalid system prompt: %v", c.Name, err)
	}
	return tmpl, nil
}

func ParseAgent(data []byte, source string) (agent AgentConfig, err error) {
	if err = yaml.Unmarshal(data, &agent); err != nil {
		err = errors.Wrapf(errors.ErrInvalidConfig, "failed to unmarshal %s: %v", source, err)
		return
	}
	if agent.Host == "" {
		agent.Host = "0.0.0.0"
	}
	if agent.ArtifactName == "" {
		agent.ArtifactName = entity.DefaultArtifactName
	}
	err = agent.Validate()
	return
}

func LoadAgentFromFile(file string) (AgentConfig, error) {
	yamlBytes, err := os.ReadFile(file)
	if err != nil {
		return AgentConfig{}, errors.Wrapf(err, "failed to read file %s", file)
	}

	return ParseAgent(yamlBytes, file)
}

func LoadAgentsFromFiles(files []string) ([]AgentConfig, error) {
	agents := make([]AgentConfig, 0, len(files))
	for _, file := range files {
		agent, err := LoadAgentFromFile(file)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := checkUnique(agents); err != nil {
		return nil, err
	}

	return agents, nil
}

// ExpandAgentFiles turns files and directories into a sorted list of yaml files.
func ExpandAgentFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		stat, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrapf(err, "agent-file or agent-files-dir does not exist")
		}
		if !stat.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read agent-files-dir")
		}
		for _, entry := range entries {
			if entry.IsDir() ||
				(!strings.HasSuffix(entry.Name(), ".yaml") && !strings.HasSuffix(entry.Name(), ".yml")) {
				continue
			}
			files = append(files, filepath.Join(p, entry.Name()))
		}
	}
	sort.Strings(files)

	return files, nil
}

func checkUnique(agents []AgentConfig) error {
	ports := map[int]string{}
	for _, a := range agents {
		if other, ok := ports[a.Port]; ok {
			return errors.Wrapf(errors.ErrInvalidConfig, "agents %s and %s share port %d", other, a.Name, a.Port)
		}
		ports[a.Port] = a.Name
	}
	return nil
}
