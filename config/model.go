package config

const DefaultOpenAIBaseURL = "https://openrouter.ai/api/v1"

type ModelConfig struct {
	OpenAIAPIKey          string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string `env:"OPENAI_BASE_URL"`
	AnthropicAPIKey       string `env:"ANTHROPIC_API_KEY"`
	RequestTimeoutSeconds int    `env:"MODEL_REQUEST_TIMEOUT_SECONDS"`
}
