package config

import (
	"embed"
	"io/fs"
	"path"
	"sort"

	"github.com/habiliai/agentmesh/errors"
)

//go:embed agents/*.yaml
var defaultAgentsFS embed.FS

// DefaultAgents returns the built-in gmail, calendar, todoist, obsidian and
// orchestration agents.
func DefaultAgents() ([]AgentConfig, error) {
	names, err := fs.Glob(defaultAgentsFS, "agents/*.yaml")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Strings(names)

	agents := make([]AgentConfig, 0, len(names))
	for _, name := range names {
		data, err := defaultAgentsFS.ReadFile(name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", name)
		}
		agent, err := ParseAgent(data, path.Base(name))
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
