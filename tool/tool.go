package tool

import (
	"context"
	"sort"

	"github.com/habiliai/agentmesh/errors"
	"github.com/samber/lo"
)

// Definition is what a model sees of a tool.
type Definition struct {
	Name        string
	Description string
	// Parameters is a JSON schema object describing the arguments.
	Parameters map[string]any
}

type Tool interface {
	Definition() Definition
	// Call runs the tool with JSON encoded arguments and returns text for the model.
	Call(ctx context.Context, arguments string) (string, error)
}

// Set indexes tools by name. Later tools shadow earlier ones with the same name.
type Set struct {
	tools map[string]Tool
	order []string
}

func NewSet(tools ...Tool) *Set {
	s := &Set{tools: make(map[string]Tool, len(tools))}
	s.Add(tools...)
	return s
}

func (s *Set) Add(tools ...Tool) {
	for _, t := range tools {
		name := t.Definition().Name
		if _, ok := s.tools[name]; !ok {
			s.order = append(s.order, name)
		}
		s.tools[name] = t
	}
}

func (s *Set) Len() int {
	return len(s.tools)
}

func (s *Set) Definitions() []Definition {
	return lo.Map(s.order, func(name string, _ int) Definition {
		return s.tools[name].Definition()
	})
}

func (s *Set) Names() []string {
	names := lo.Keys(s.tools)
	sort.Strings(names)
	return names
}

func (s *Set) Call(ctx context.Context, name string, arguments string) (string, error) {
	t, ok := s.tools[name]
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "tool %s", name)
	}

	return t.Call(ctx, arguments)
}
