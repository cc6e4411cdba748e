package entity

import (
	"fmt"

	"github.com/habiliai/agentmesh/errors"
)

const (
	DefaultCardVersion  = "1.0.0"
	WellKnownAgentPath  = "/.well-known/agent.json"
	DefaultArtifactName = "response"
)

// AgentProvider represents the service provider of an agent.
type AgentProvider struct {
	// Agent provider's organization name.
	Organization string `json:"organization" mapstructure:"organization"`
	// Agent provider's URL.
	URL string `json:"url,omitempty" mapstructure:"url"`
}

// AgentCapabilities lists the optional protocol features an agent supports.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming" mapstructure:"streaming"`
	PushNotifications      bool `json:"pushNotifications" mapstructure:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory" mapstructure:"stateTransitionHistory"`
}

// AgentCard conveys key information about an agent:
// - Overall details (version, name, description, uses)
// - Skills: A set of capabilities the agent can perform
// - Default modalities/content types supported by the agent.
// - Network identity (host and port) the agent is served on
type AgentCard struct {
	// Human readable name of the agent.
	// Example: "Gmail Agent"
	Name string `json:"name" mapstructure:"name"`
	// A human-readable description of the agent. Used to assist users and
	// other agents in understanding what the agent can do.
	Description string `json:"description" mapstructure:"description"`
	// A URL to the address the agent is hosted at.
	URL string `json:"url" mapstructure:"url"`
	// The service provider of the agent.
	Provider *AgentProvider `json:"provider,omitempty" mapstructure:"provider"`
	// The version of the agent - format is up to the provider.
	Version string `json:"version" mapstructure:"version"`
	// A URL to documentation for the agent.
	DocumentationURL *string `json:"documentationUrl,omitempty" mapstructure:"documentationUrl"`
	// Optional capabilities supported by the agent.
	Capabilities AgentCapabilities `json:"capabilities" mapstructure:"capabilities"`
	// Supported media types for input.
	DefaultInputModes []string `json:"defaultInputModes" mapstructure:"defaultInputModes"`
	// Supported media types for output.
	DefaultOutputModes []string `json:"defaultOutputModes" mapstructure:"defaultOutputModes"`
	// Skills are the units of capability the agent can perform.
	Skills []AgentSkill `json:"skills" mapstructure:"skills"`

	Host string `json:"-" mapstructure:"-"`
	Port int    `json:"-" mapstructure:"-"`
}

// CardOption customizes an AgentCard built by NewAgentCard.
type CardOption func(*AgentCard)

func WithDescription(description string) CardOption {
	return func(c *AgentCard) { c.Description = description }
}

func WithSkills(skills ...AgentSkill) CardOption {
	return func(c *AgentCard) { c.Skills = append(c.Skills, skills...) }
}

func WithOrganization(organization string) CardOption {
	return func(c *AgentCard) {
		if organization == "" {
			return
		}
		c.Provider = &AgentProvider{Organization: organization}
	}
}

func WithVersion(version string) CardOption {
	return func(c *AgentCard) {
		if version != "" {
			c.Version = version
		}
	}
}

// NewAgentCard builds a validated card served at host:port.
func NewAgentCard(name, host string, port int, opts ...CardOption) (AgentCard, error) {
	card := AgentCard{
		Name:               name,
		Host:               host,
		Port:               port,
		Version:            DefaultCardVersion,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills:             []AgentSkill{},
	}
	for _, opt := range opts {
		opt(&card)
	}
	card.URL = fmt.Sprintf("http://%s:%d/", DialHost(host), port)

	if err := card.Validate(); err != nil {
		return AgentCard{}, err
	}

	return card, nil
}

func (c AgentCard) Validate() error {
	if c.Name == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "agent card name is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Wrapf(errors.ErrInvalidConfig, "agent %s: port %d is out of range", c.Name, c.Port)
	}
	for i, skill := range c.Skills {
		if skill.ID == "" {
			return errors.Wrapf(errors.ErrInvalidConfig, "agent %s: skill #%d has no id", c.Name, i)
		}
	}

	return nil
}

func (c AgentCard) Organization() string {
	if c.Provider == nil {
		return ""
	}
	return c.Provider.Organization
}

// Addr is the listen address of the agent.
func (c AgentCard) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DialHost maps wildcard listen hosts onto the loopback address.
func DialHost(host string) string {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		return "127.0.0.1"
	default:
		return host
	}
}
