package config

import (
	"time"

	"github.com/habiliai/agentmesh/errors"
	"github.com/jcooky/go-din"
)

type MeshConfig struct {
	LogConfig
	ModelConfig

	Host string `env:"HOST"`

	DispatchTimeoutSeconds             int `env:"DISPATCH_TIMEOUT_SECONDS"`
	OrchestratorDispatchTimeoutSeconds int `env:"ORCHESTRATOR_DISPATCH_TIMEOUT_SECONDS"`

	// DispatchRatePerSecond bounds an orchestrator's outbound tasks; zero is unlimited.
	DispatchRatePerSecond float64 `env:"DISPATCH_RATE_PER_SECOND"`

	ReadyMaxWaitMillis      int `env:"READY_MAX_WAIT_MILLIS"`
	ReadyPollIntervalMillis int `env:"READY_POLL_INTERVAL_MILLIS"`
	ReadyProbeTimeoutMillis int `env:"READY_PROBE_TIMEOUT_MILLIS"`

	// TaskStoreDSN selects a sqlite file for task persistence; empty keeps tasks in memory.
	TaskStoreDSN string `env:"TASK_STORE_DSN"`
}

func DefaultMeshConfig() *MeshConfig {
	return &MeshConfig{
		LogConfig: LogConfig{
			LogLevel:   "debug",
			LogHandler: "default",
		},
		ModelConfig: ModelConfig{
			OpenAIBaseURL:         DefaultOpenAIBaseURL,
			RequestTimeoutSeconds: 120,
		},
		Host:                               "0.0.0.0",
		DispatchTimeoutSeconds:             120,
		OrchestratorDispatchTimeoutSeconds: 300,
		ReadyMaxWaitMillis:                 30_000,
		ReadyPollIntervalMillis:            500,
		ReadyProbeTimeoutMillis:            1_000,
	}
}

func ResolveMeshConfig(testing bool) (*MeshConfig, error) {
	conf := DefaultMeshConfig()
	if err := resolveConfig(conf, testing); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func (c *MeshConfig) Validate() error {
	if c.DispatchTimeoutSeconds <= 0 || c.OrchestratorDispatchTimeoutSeconds <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "dispatch timeouts must be positive")
	}
	if c.ReadyMaxWaitMillis <= 0 || c.ReadyPollIntervalMillis <= 0 || c.ReadyProbeTimeoutMillis <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "readiness bounds must be positive")
	}
	if c.DispatchRatePerSecond < 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "dispatch rate must not be negative")
	}

	return nil
}

func (c *MeshConfig) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSeconds) * time.Second
}

func (c *MeshConfig) OrchestratorDispatchTimeout() time.Duration {
	return time.Duration(c.OrchestratorDispatchTimeoutSeconds) * time.Second
}

func (c *MeshConfig) ReadyMaxWait() time.Duration {
	return time.Duration(c.ReadyMaxWaitMillis) * time.Millisecond
}

func (c *MeshConfig) ReadyPollInterval() time.Duration {
	return time.Duration(c.ReadyPollIntervalMillis) * time.Millisecond
}

func (c *MeshConfig) ReadyProbeTimeout() time.Duration {
	return time.Duration(c.ReadyProbeTimeoutMillis) * time.Millisecond
}

func init() {
	din.RegisterT(func(c *din.Container) (*MeshConfig, error) {
		return ResolveMeshConfig(c.Env == din.EnvTest)
	})
}
