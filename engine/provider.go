package engine

import (
	"net/url"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/habiliai/agentmesh/config"
	"github.com/habiliai/agentmesh/errors"
	"github.com/sashabaranov/go-openai"
)

const (
	providerAnthropic = "anthropic/"
	providerOpenAI    = "openai/"
)

// NewModel picks a provider from the model name prefix. "anthropic/..." goes
// to Anthropic, everything else to the OpenAI compatible endpoint.
func NewModel(conf *config.ModelConfig, name string) (Model, error) {
	if name == "" {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "model name is required")
	}

	if apiModel, ok := strings.CutPrefix(name, providerAnthropic); ok {
		if conf.AnthropicAPIKey == "" {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "ANTHROPIC_API_KEY is required for %s", name)
		}
		client := anthropic.NewClient(
			option.WithAPIKey(conf.AnthropicAPIKey),
			option.WithRequestTimeout(time.Duration(conf.RequestTimeoutSeconds)*time.Second),
		)
		return NewAnthropicModel(&client, apiModel), nil
	}

	if conf.OpenAIAPIKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "OPENAI_API_KEY is required for %s", name)
	}

	clientConfig := openai.DefaultConfig(conf.OpenAIAPIKey)
	if conf.OpenAIBaseURL != "" {
		clientConfig.BaseURL = conf.OpenAIBaseURL
	}

	apiModel := name
	if isOpenAIHost(clientConfig.BaseURL) {
		apiModel = strings.TrimPrefix(name, providerOpenAI)
	}

	return NewOpenAIModel(openai.NewClientWithConfig(clientConfig), apiModel), nil
}

func isOpenAIHost(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return u.Hostname() == "api.openai.com"
}
