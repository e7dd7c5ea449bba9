package config

const (
	defaultDifyUser    = "livekit-agent"
	defaultDifyTimeout = "5m"

	defaultAgentName = "default_agent"
	defaultEnvFile   = ".env.local"

	defaultKafkaTopic = "difyvoice.metrics"
	defaultAPIListen  = ":8081"

	defaultNumWorkers = 3
	defaultQueueSize  = 256
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Dify: DifyConfig{
			User:    defaultDifyUser,
			Timeout: defaultDifyTimeout,
		},
		Agent: AgentConfig{
			Name:    defaultAgentName,
			EnvFile: defaultEnvFile,
		},
		EventStream: EventStreamConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Worker: WorkerConfig{
			NumWorkers: defaultNumWorkers,
			QueueSize:  defaultQueueSize,
		},
	}
}
