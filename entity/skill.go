package entity

// AgentSkill describes one capability advertised on an agent card.
type AgentSkill struct {
	ID          string   `json:"id" yaml:"id" mapstructure:"id"`
	Name        string   `json:"name" yaml:"name" mapstructure:"name"`
	Description string   `json:"description" yaml:"description" mapstructure:"description"`
	Tags        []string `json:"tags,omitempty" yaml:"tags" mapstructure:"tags"`
	Examples    []string `json:"examples,omitempty" yaml:"examples" mapstructure:"examples"`
}
