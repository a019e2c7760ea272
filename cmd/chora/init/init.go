// Package initcmder provides the init command for initializing a local .chora
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chora/pkg/circle"
	"github.com/papercomputeco/chora/pkg/config"
)

const (
	dirName = ".chora"
)

const initLongDesc string = `Initialize a new .chora/ directory in the current working directory.

Creates a local .chora/ directory that takes precedence over the default
~/.chora/ directory, seeds a default config.toml, and creates an empty
keyring for the given user.

This is useful for maintaining a separate graph per project or directory.

Examples:
  chora init
  chora init --user ada`

const initShortDesc string = "Initialize a local .chora/ directory"

func NewInitCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(user)
		},
	}

	cmd.Flags().StringVar(&user, "user", "anonymous", "Identity recorded in the keyring")

	return cmd
}

func runInit(user string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .chora directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}
	if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	keyring := circle.NewKeyring(user)
	if err := keyring.Save(filepath.Join(dir, "keyring.json")); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}

	fmt.Printf("Initialized .chora directory: %s\n", dir)
	return nil
}
