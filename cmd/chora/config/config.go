// Package configcmder provides the config command for managing persistent
// chora configuration stored in the .chora/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent chora configuration.

Configuration is stored as config.toml in the .chora/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.sqlite_path,
  pulse.enabled, pulse.interval_seconds, pulse.signal_limit,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  keyring.path,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  persona.id

Use subcommands to get, set, or list configuration values:
  chora config set <key> <value>    Set a configuration value
  chora config get <key>            Get a configuration value
  chora config list                 List all configuration values

Examples:
  chora config set pulse.interval_seconds 30
  chora config set embedding.model nomic-embed-text
  chora config get eventstream.provider
  chora config list`

const configShortDesc string = "Manage persistent chora configuration"

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
