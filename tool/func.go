package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/habiliai/agentmesh/errors"
	"github.com/invopop/jsonschema"
)

type funcTool[In any] struct {
	def Definition
	fn  func(ctx context.Context, in In) (string, error)
}

// NewFunc exposes fn as a tool whose parameter schema is reflected from In.
func NewFunc[In any](name, description string, fn func(ctx context.Context, in In) (string, error)) (Tool, error) {
	params, err := reflectParameters[In]()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build schema for tool %s", name)
	}

	return &funcTool[In]{
		def: Definition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
		fn: fn,
	}, nil
}

func (t *funcTool[In]) Definition() Definition {
	return t.def
}

func (t *funcTool[In]) Call(ctx context.Context, arguments string) (string, error) {
	var in In
	if strings.TrimSpace(arguments) != "" {
		if err := json.Unmarshal([]byte(arguments), &in); err != nil {
			return "", errors.Wrapf(errors.ErrInvalidParams, "tool %s: %v", t.def.Name, err)
		}
	}

	return t.fn(ctx, in)
}

func reflectParameters[In any]() (map[string]any, error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(new(In))
	schema.Version = ""

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	if _, ok := params["properties"]; !ok {
		params["properties"] = map[string]any{}
	}
	params["type"] = "object"
	delete(params, "additionalProperties")

	return params, nil
}
