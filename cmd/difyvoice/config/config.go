// Package configcmder provides the config command for managing persistent
// difyvoice configuration stored in the .difyvoice/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent difyvoice configuration.

Configuration is stored as config.toml in the .difyvoice/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  dify.base_url, dify.user, dify.timeout,
  agent.name, agent.username, agent.voice, agent.env_file,
  storage.sqlite_path, storage.postgres_dsn,
  eventstream.kafka_brokers, eventstream.kafka_topic,
  api.listen, worker.num_workers, worker.queue_size

The Dify API key is not a config key. Keep it in the agent env file
(see "difyvoice env set DIFY_API_KEY <key>").

Use subcommands to get, set, or list configuration values:
  difyvoice config set <key> <value>    Set a configuration value
  difyvoice config get <key>            Get a configuration value
  difyvoice config list                 List all configuration values

Examples:
  difyvoice config set agent.name lawyer
  difyvoice config set dify.timeout 90s
  difyvoice config get storage.sqlite_path
  difyvoice config list`

const configShortDesc string = "Manage persistent difyvoice configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
