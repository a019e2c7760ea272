package circle_test

import (
	"encoding/base64"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chora/pkg/circle"
)

var _ = Describe("Keyring", func() {
	It("returns an anonymous keyring when the file is missing", func() {
		k, err := circle.LoadKeyring(filepath.Join(GinkgoT().TempDir(), "keyring.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(k.Identity.UserID).To(Equal("anonymous"))
		Expect(k.Bindings).To(BeEmpty())
	})

	It("round-trips through save and load", func() {
		path := filepath.Join(GinkgoT().TempDir(), "keys", "keyring.json")

		k := circle.NewKeyring("ada")
		k.Identity.SigningKeyPath = "~/.ssh/id_ed25519"
		k.AddBinding("circle-garden", circle.Binding{
			SyncPolicy:       circle.PolicyCloud,
			EncryptionKeyB64: base64.StdEncoding.EncodeToString([]byte("circle-key-bytes")),
		})
		k.AddBinding("circle-private", circle.Binding{
			SyncPolicy: circle.PolicyLocalOnly,
			Default:    true,
		})
		Expect(k.Save(path)).To(Succeed())

		loaded, err := circle.LoadKeyring(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Identity.UserID).To(Equal("ada"))
		Expect(loaded.Identity.SigningKeyPath).To(Equal("~/.ssh/id_ed25519"))
		Expect(loaded.DefaultCircle()).To(Equal("circle-private"))

		binding, ok := loaded.Binding("circle-garden")
		Expect(ok).To(BeTrue())
		key, err := binding.EncryptionKey()
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal([]byte("circle-key-bytes")))
	})

	It("treats unknown circles as local-only", func() {
		k := circle.NewKeyring("ada")
		Expect(k.IsLocalOnly("circle-unknown")).To(BeTrue())
		Expect(k.CanCross("circle-unknown")).To(BeFalse())

		k.AddBinding("circle-garden", circle.Binding{SyncPolicy: circle.PolicyCloud})
		Expect(k.IsLocalOnly("circle-garden")).To(BeFalse())

		k.AddBinding("circle-home", circle.Binding{})
		Expect(k.IsLocalOnly("circle-home")).To(BeTrue())
	})

	It("keeps a single default binding", func() {
		k := circle.NewKeyring("ada")
		k.AddBinding("circle-a", circle.Binding{SyncPolicy: circle.PolicyLocalOnly, Default: true})
		k.AddBinding("circle-b", circle.Binding{SyncPolicy: circle.PolicyCloud, Default: true})

		Expect(k.DefaultCircle()).To(Equal("circle-b"))
		a, _ := k.Binding("circle-a")
		Expect(a.Default).To(BeFalse())
	})

	It("lists cloud circles", func() {
		k := circle.NewKeyring("ada")
		k.AddBinding("circle-garden", circle.Binding{SyncPolicy: circle.PolicyCloud})
		k.AddBinding("circle-lab", circle.Binding{SyncPolicy: circle.PolicyCloud})
		k.AddBinding("circle-private", circle.Binding{SyncPolicy: circle.PolicyLocalOnly})

		Expect(k.CloudCircles()).To(ConsistOf("circle-garden", "circle-lab"))
	})

	It("rejects an unsupported version", func() {
		path := filepath.Join(GinkgoT().TempDir(), "keyring.json")
		k := circle.NewKeyring("ada")
		k.Version = 99
		Expect(k.Save(path)).To(Succeed())

		_, err := circle.LoadKeyring(path)
		Expect(err).To(MatchError(ContainSubstring("unsupported keyring version")))
	})
})
