package circlecmder

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chora/pkg/circle"
	"github.com/papercomputeco/chora/pkg/cliui"
)

const bindLongDesc string = `Bind a circle into the keyring.

Local-only circles never leave this machine; cloud circles sync through
the configured eventstream. Binding a cloud circle without a key
generates a fresh symmetric key for it.

Examples:
  chora circle bind circle-garden --policy cloud
  chora circle bind circle-private --policy local-only --default`

func newBindCmd() *cobra.Command {
	var (
		policy     string
		setDefault bool
	)

	cmd := &cobra.Command{
		Use:   "bind <circle-id>",
		Short: "Bind a circle into the keyring",
		Long:  bindLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runBind(args[0], policy, setDefault, configDir)
		},
	}

	cmd.Flags().StringVar(&policy, "policy", circle.PolicyLocalOnly, "Sync policy: local-only or cloud")
	cmd.Flags().BoolVar(&setDefault, "default", false, "Mark this circle as the default")

	return cmd
}

func runBind(circleID, policy string, setDefault bool, configDir string) error {
	if policy != circle.PolicyLocalOnly && policy != circle.PolicyCloud {
		return fmt.Errorf("invalid policy %q: expected %s or %s", policy, circle.PolicyLocalOnly, circle.PolicyCloud)
	}

	path, err := keyringPath(configDir)
	if err != nil {
		return err
	}
	keyring, err := circle.LoadKeyring(path)
	if err != nil {
		return err
	}

	binding := circle.Binding{SyncPolicy: policy, Default: setDefault}
	if existing, ok := keyring.Binding(circleID); ok {
		binding.EncryptionKeyB64 = existing.EncryptionKeyB64
	}
	if policy == circle.PolicyCloud && binding.EncryptionKeyB64 == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generating circle key: %w", err)
		}
		binding.EncryptionKeyB64 = base64.StdEncoding.EncodeToString(key)
	}

	keyring.AddBinding(circleID, binding)
	if err := keyring.Save(path); err != nil {
		return err
	}

	fmt.Printf("  %s Bound %s %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(circleID),
		cliui.DimStyle.Render("("+policy+")"),
	)
	return nil
}
