// Package agent wires the Dify adapter into a voice agent session: persona
// settings from the process environment, the opening greeting, lifecycle
// notifications and a text-mode turn runner.
package agent

import "os"

// Environment variables read from the agent env file.
const (
	EnvDifyAPIKey  = "DIFY_API_KEY"
	EnvDifyBaseURL = "DIFY_BASE_URL"
	EnvUsername    = "USERNAME"
	EnvVoice       = "VOICE"
	EnvAgentName   = "AGENT_NAME"

	DefaultAgentName = "default_agent"
)

// Settings is the agent configuration found in the process environment.
type Settings struct {
	APIKey    string
	BaseURL   string
	Username  string
	Voice     string
	AgentName string
}

// SettingsFromEnv reads Settings from the process environment. AGENT_NAME
// defaults to DefaultAgentName.
func SettingsFromEnv() Settings {
	return SettingsFromMap(environ())
}

// SettingsFromMap reads Settings from an already parsed env file.
func SettingsFromMap(env map[string]string) Settings {
	s := Settings{
		APIKey:    env[EnvDifyAPIKey],
		BaseURL:   env[EnvDifyBaseURL],
		Username:  env[EnvUsername],
		Voice:     env[EnvVoice],
		AgentName: env[EnvAgentName],
	}
	if s.AgentName == "" {
		s.AgentName = DefaultAgentName
	}
	return s
}

func environ() map[string]string {
	keys := []string{EnvDifyAPIKey, EnvDifyBaseURL, EnvUsername, EnvVoice, EnvAgentName}
	env := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env
}

var greetings = map[string]string{
	"lawyer":     "你好！我是张雨婷，很高兴为你解答法律相关的问题!",
	"stewardess": "我是你的空姐朱莉娅。请问有什么我可以帮到你的吗？",
}

// Greeting returns the opening line for a persona.
func Greeting(agentName string) (string, bool) {
	g, ok := greetings[agentName]
	return g, ok
}
