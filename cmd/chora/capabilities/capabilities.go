// Package capabilitiescmder provides the capabilities command for listing
// dispatchable protocols and primitives.
package capabilitiescmder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chora/pkg/cliui"
	"github.com/papercomputeco/chora/pkg/start"
)

const capabilitiesLongDesc string = `List everything the graph can dispatch.

Protocols come from protocol entities in the store; primitives come from
the registry. Protocols are listed first. Each entry shows its id, kind,
and declared inputs.

Examples:
  chora capabilities
  chora capabilities --json`

const capabilitiesShortDesc string = "List protocols and primitives"

func NewCapabilitiesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: capabilitiesShortDesc,
		Long:  capabilitiesLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runCapabilities(configDir, debug, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the capability list as JSON")

	return cmd
}

func runCapabilities(configDir string, debug, asJSON bool) error {
	s, err := start.Open(start.Options{ConfigDir: configDir, Debug: debug})
	if err != nil {
		return err
	}
	defer s.Close()

	caps, err := s.Engine.Capabilities(context.Background())
	if err != nil {
		return fmt.Errorf("listing capabilities: %w", err)
	}

	if asJSON {
		out, err := json.MarshalIndent(caps, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding capabilities: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println()
	for _, c := range caps {
		fmt.Printf("  %s %s\n",
			cliui.KeyStyle.Render(c.ID),
			cliui.DimStyle.Render("("+c.Kind+")"),
		)
		if c.Description != "" {
			fmt.Printf("      %s\n", cliui.ValueStyle.Render(c.Description))
		}
		if len(c.Interface.Required) > 0 {
			fmt.Printf("      required: %s\n", strings.Join(c.Interface.Required, ", "))
		}
		if len(c.Interface.Optional) > 0 {
			fmt.Printf("      optional: %s\n", strings.Join(c.Interface.Optional, ", "))
		}
	}
	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d capabilities", len(caps))))
	return nil
}
