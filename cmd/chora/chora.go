// Package choracmder
package choracmder

import (
	"github.com/spf13/cobra"

	capabilitiescmder "github.com/papercomputeco/chora/cmd/chora/capabilities"
	circlecmder "github.com/papercomputeco/chora/cmd/chora/circle"
	configcmder "github.com/papercomputeco/chora/cmd/chora/config"
	initcmder "github.com/papercomputeco/chora/cmd/chora/init"
	invokecmder "github.com/papercomputeco/chora/cmd/chora/invoke"
	pulsecmder "github.com/papercomputeco/chora/cmd/chora/pulse"
	showcmder "github.com/papercomputeco/chora/cmd/chora/show"
	statuscmder "github.com/papercomputeco/chora/cmd/chora/status"
	versioncmder "github.com/papercomputeco/chora/cmd/version"
)

const choraLongDesc string = `Chora is an event-sourced graph virtual machine.

Entities and bonds form a living graph; primitives mutate it, protocols
compose primitives, and the pulse metabolizes signals in the background.

Common commands:
  chora init                      Initialize a .chora/ directory
  chora invoke <intent>           Dispatch an intent
  chora capabilities              List protocols and primitives
  chora pulse                     Run one pulse now
  chora status                    Show graph and pulse status`

const choraShortDesc string = "Chora - Graph Virtual Machine"

func NewChoraCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chora",
		Short: choraShortDesc,
		Long:  choraLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .chora/ directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(invokecmder.NewInvokeCmd())
	cmd.AddCommand(capabilitiescmder.NewCapabilitiesCmd())
	cmd.AddCommand(pulsecmder.NewPulseCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(showcmder.NewShowCmd())
	cmd.AddCommand(circlecmder.NewCircleCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
