package circlecmder

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chora/pkg/circle"
	"github.com/papercomputeco/chora/pkg/cliui"
	"github.com/papercomputeco/chora/pkg/dotdir"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an invitation keypair",
		Long: `Generate an X25519 keypair for receiving invitations.

Share the public key with whoever invites you; keep the private key.

Examples:
  chora circle keygen`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			pub, priv, err := circle.GenerateKeypair()
			if err != nil {
				return err
			}
			fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("public: "), base64.StdEncoding.EncodeToString(pub[:]))
			fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("private:"), base64.StdEncoding.EncodeToString(priv[:]))
			return nil
		},
	}
}

const inviteLongDesc string = `Write a sealed invitation for a user.

The circle's symmetric key (from the keyring binding) is sealed to the
recipient's public key and written under the access directory as
<circle-id>/<username>.enc. Only the matching private key can open it.

Examples:
  chora circle invite ada circle-garden --public-key <base64>`

func newInviteCmd() *cobra.Command {
	var publicKeyB64 string

	cmd := &cobra.Command{
		Use:   "invite <username> <circle-id>",
		Short: "Write a sealed invitation",
		Long:  inviteLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runInvite(args[0], args[1], publicKeyB64, configDir)
		},
	}

	cmd.Flags().StringVar(&publicKeyB64, "public-key", "", "Recipient's public key (base64)")
	cmd.MarkFlagRequired("public-key")

	return cmd
}

func runInvite(username, circleID, publicKeyB64, configDir string) error {
	recipientKey, err := decodeKey(publicKeyB64)
	if err != nil {
		return fmt.Errorf("invalid --public-key: %w", err)
	}

	path, err := keyringPath(configDir)
	if err != nil {
		return err
	}
	keyring, err := circle.LoadKeyring(path)
	if err != nil {
		return err
	}

	binding, ok := keyring.Binding(circleID)
	if !ok {
		return fmt.Errorf("no keyring binding for %s; bind it first", circleID)
	}
	circleKey, err := binding.EncryptionKey()
	if err != nil {
		return err
	}
	if len(circleKey) == 0 {
		return fmt.Errorf("binding for %s carries no encryption key", circleID)
	}

	inv, err := circle.CreateInvitation(username, circleID, circleKey, recipientKey)
	if err != nil {
		return err
	}

	accessDir, err := dotdir.NewManager().AccessDir(configDir)
	if err != nil {
		return err
	}
	invPath, err := inv.WriteFile(accessDir)
	if err != nil {
		return err
	}

	fmt.Printf("  %s Invitation written: %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(invPath))
	return nil
}

const acceptLongDesc string = `Accept an invitation.

Opens the sealed circle key with your keypair and records a cloud
binding for the circle in the keyring. Decryption fails for any keypair
other than the one the invitation was sealed to.

Examples:
  chora circle accept .chora/access/circle-garden/ada.enc \
    --public-key <base64> --private-key <base64>`

func newAcceptCmd() *cobra.Command {
	var (
		publicKeyB64  string
		privateKeyB64 string
	)

	cmd := &cobra.Command{
		Use:   "accept <invitation-file>",
		Short: "Accept an invitation",
		Long:  acceptLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runAccept(args[0], publicKeyB64, privateKeyB64, configDir)
		},
	}

	cmd.Flags().StringVar(&publicKeyB64, "public-key", "", "Your public key (base64)")
	cmd.Flags().StringVar(&privateKeyB64, "private-key", "", "Your private key (base64)")
	cmd.MarkFlagRequired("public-key")
	cmd.MarkFlagRequired("private-key")

	return cmd
}

func runAccept(invPath, publicKeyB64, privateKeyB64, configDir string) error {
	pub, err := decodeKey(publicKeyB64)
	if err != nil {
		return fmt.Errorf("invalid --public-key: %w", err)
	}
	priv, err := decodeKey(privateKeyB64)
	if err != nil {
		return fmt.Errorf("invalid --private-key: %w", err)
	}

	inv, err := circle.LoadInvitation(invPath)
	if err != nil {
		return err
	}

	circleKey, err := inv.Decrypt(pub, priv)
	if err != nil {
		return err
	}

	path, err := keyringPath(configDir)
	if err != nil {
		return err
	}
	keyring, err := circle.LoadKeyring(path)
	if err != nil {
		return err
	}

	keyring.AddBinding(inv.CircleID, circle.Binding{
		SyncPolicy:       circle.PolicyCloud,
		EncryptionKeyB64: base64.StdEncoding.EncodeToString(circleKey),
	})
	if err := keyring.Save(path); err != nil {
		return err
	}

	fmt.Printf("  %s Joined %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(inv.CircleID))
	return nil
}

func decodeKey(b64 string) (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("expected 32 key bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
