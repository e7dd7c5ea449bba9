// Package envcmder provides the env command for editing the agent env file
// (.env.local) that holds Dify credentials and persona settings.
package envcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/difyvoice/pkg/config"
)

const envLongDesc string = `Manage the agent env file.

The env file (default .env.local, see config key agent.env_file) holds the
process environment of the voice agent:
  DIFY_API_KEY, DIFY_BASE_URL, CARTESIA_API_KEY, USERNAME, VOICE, AGENT_NAME

A running "difyvoice chat" reloads the file when it changes.

Examples:
  difyvoice env set AGENT_NAME stewardess
  difyvoice env set DIFY_API_KEY app-xxxxxxxx --env-file /srv/agent/.env.local
  difyvoice env list`

const envShortDesc string = "Manage the agent env file"

type envCommander struct {
	envFile string
}

func NewEnvCmd() *cobra.Command {
	cmder := &envCommander{}

	cmd := &cobra.Command{
		Use:   "env",
		Short: envShortDesc,
		Long:  envLongDesc,
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagEnvFile, &cmder.envFile)

	cmd.AddCommand(newSetCmd(cmder))
	cmd.AddCommand(newListCmd(cmder))

	return cmd
}

// resolveEnvFile applies flag > DIFYVOICE_AGENT_ENV_FILE > config.toml >
// default precedence to the env file path.
func (c *envCommander) resolveEnvFile(cmd *cobra.Command) (string, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return "", err
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagEnvFile})
	c.envFile = v.GetString("agent.env_file")
	return c.envFile, nil
}
