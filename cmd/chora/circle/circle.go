// Package circlecmder provides the circle command for managing keyring
// bindings and invitations.
package circlecmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chora/pkg/circle"
	"github.com/papercomputeco/chora/pkg/cliui"
	"github.com/papercomputeco/chora/pkg/config"
	"github.com/papercomputeco/chora/pkg/dotdir"
)

const circleLongDesc string = `Manage circle membranes.

The keyring records which circles this identity can cross and whether
their changes stay local or sync to cloud. Invitations carry a circle's
encryption key sealed to a member's public key.

Use subcommands to bind circles and exchange invitations:
  chora circle list                         List keyring bindings
  chora circle bind <circle-id>             Bind a circle
  chora circle keygen                       Generate an invitation keypair
  chora circle invite <user> <circle-id>    Write a sealed invitation
  chora circle accept <file>                Accept an invitation
  chora circle members <circle-id>          List invited members

Examples:
  chora circle bind circle-garden --policy cloud
  chora circle invite ada circle-garden --public-key <base64>`

const circleShortDesc string = "Manage circle bindings and invitations"

func NewCircleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circle",
		Short: circleShortDesc,
		Long:  circleLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newBindCmd())
	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newInviteCmd())
	cmd.AddCommand(newAcceptCmd())
	cmd.AddCommand(newMembersCmd())

	return cmd
}

// keyringPath resolves the keyring file through the config layer.
func keyringPath(configDir string) (string, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	return cfger.ResolvePath(cfg.Keyring.Path), nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List keyring bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(configDir)
		},
	}
}

func runList(configDir string) error {
	path, err := keyringPath(configDir)
	if err != nil {
		return err
	}
	keyring, err := circle.LoadKeyring(path)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s %s\n\n", cliui.KeyStyle.Render("Identity:"), cliui.ValueStyle.Render(keyring.Identity.UserID))

	if len(keyring.Bindings) == 0 {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No circle bindings."))
		return nil
	}

	for id, b := range keyring.Bindings {
		marker := " "
		if b.Default {
			marker = "*"
		}
		fmt.Printf("  %s %s %s\n",
			marker,
			cliui.KeyStyle.Render(id),
			cliui.DimStyle.Render("("+b.SyncPolicy+")"),
		)
	}
	fmt.Println()
	return nil
}

func newMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members <circle-id>",
		Short: "List invited members of a circle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runMembers(args[0], configDir)
		},
	}
}

func runMembers(circleID, configDir string) error {
	accessDir, err := dotdir.NewManager().AccessDir(configDir)
	if err != nil {
		return err
	}

	members, err := circle.Members(accessDir, circleID)
	if err != nil {
		return err
	}

	if len(members) == 0 {
		fmt.Printf("  %s\n", cliui.DimStyle.Render("No invitations for "+circleID))
		return nil
	}
	for _, m := range members {
		fmt.Printf("  %s\n", cliui.ValueStyle.Render(m))
	}
	return nil
}
