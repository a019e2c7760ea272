package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chora/pkg/config"
)

var _ = Describe("Config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chora-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewDefaultConfig", func() {
		It("populates every section", func() {
			cfg := config.NewDefaultConfig()
			Expect(cfg.Version).To(Equal(config.CurrentV))
			Expect(cfg.Storage.SQLitePath).To(Equal("chora.db"))
			Expect(cfg.Pulse.Enabled).To(BeTrue())
			Expect(cfg.Pulse.IntervalSeconds).To(Equal(uint(60)))
			Expect(cfg.Embedding.Provider).To(Equal("ollama"))
			Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
			Expect(cfg.Keyring.Path).To(Equal("keyring.json"))
			Expect(cfg.EventStream.Provider).To(Equal("nop"))
			Expect(cfg.Persona.ID).To(Equal("persona-default"))
		})
	})

	Describe("LoadConfig", func() {
		It("returns defaults when no config file exists", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Pulse.IntervalSeconds).To(Equal(uint(60)))
		})

		It("merges file values over defaults", func() {
			content := "version = 1\n\n[pulse]\nenabled = false\ninterval_seconds = 15\n"
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0o600)).To(Succeed())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Pulse.Enabled).To(BeFalse())
			Expect(cfg.Pulse.IntervalSeconds).To(Equal(uint(15)))

			// Untouched sections keep their defaults.
			Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
			Expect(cfg.Storage.SQLitePath).To(Equal("chora.db"))
		})

		It("rejects an unsupported version", func() {
			content := "version = 99\n"
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0o600)).To(Succeed())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = cfger.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version"))
		})
	})

	Describe("SaveConfig", func() {
		It("round-trips through the file", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Storage.SQLitePath = "/var/lib/chora/graph.db"
			cfg.EventStream.Provider = "kafka"
			cfg.EventStream.Brokers = []string{"broker-1:9092", "broker-2:9092"}
			Expect(cfger.SaveConfig(cfg)).To(Succeed())

			loaded, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Storage.SQLitePath).To(Equal("/var/lib/chora/graph.db"))
			Expect(loaded.EventStream.Provider).To(Equal("kafka"))
			Expect(loaded.EventStream.Brokers).To(HaveLen(2))
		})

		It("refuses a nil config", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfger.SaveConfig(nil)).To(HaveOccurred())
		})
	})

	Describe("SetConfigValue / GetConfigValue", func() {
		It("sets and gets string keys", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("embedding.model", "all-minilm")).To(Succeed())

			got, err := cfger.GetConfigValue("embedding.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("all-minilm"))
		})

		It("parses boolean and numeric keys", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("pulse.enabled", "false")).To(Succeed())
			Expect(cfger.SetConfigValue("pulse.interval_seconds", "30")).To(Succeed())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Pulse.Enabled).To(BeFalse())
			Expect(cfg.Pulse.IntervalSeconds).To(Equal(uint(30)))
		})

		It("parses broker lists from comma-separated input", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("eventstream.brokers", "a:9092, b:9092")).To(Succeed())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.EventStream.Brokers).To(Equal([]string{"a:9092", "b:9092"}))
		})

		It("rejects unknown keys", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("nope.nothing", "x")).To(HaveOccurred())
			_, err = cfger.GetConfigValue("nope.nothing")
			Expect(err).To(HaveOccurred())
		})

		It("rejects malformed numeric values", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfger.SetConfigValue("pulse.interval_seconds", "soon")).To(HaveOccurred())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("covers every supported key", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(ContainElements(
				"storage.sqlite_path",
				"pulse.enabled",
				"embedding.model",
				"keyring.path",
				"eventstream.topic",
				"persona.id",
			))
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
			}
		})
	})

	Describe("ResolvePath", func() {
		It("resolves relative paths against the chora directory", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.ResolvePath("chora.db")).To(Equal(filepath.Join(tmpDir, "chora.db")))
			Expect(cfger.ResolvePath("/abs/graph.db")).To(Equal("/abs/graph.db"))
		})
	})

	Describe("InitViper", func() {
		It("applies env vars over file values", func() {
			content := "[embedding]\nmodel = \"from-file\"\n"
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0o600)).To(Succeed())

			os.Setenv("CHORA_EMBEDDING_MODEL", "from-env")
			DeferCleanup(func() { os.Unsetenv("CHORA_EMBEDDING_MODEL") })

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("embedding.model")).To(Equal("from-env"))
		})

		It("falls back to defaults when nothing is set", func() {
			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetUint("pulse.interval_seconds")).To(Equal(uint(60)))
			Expect(v.GetString("eventstream.provider")).To(Equal("nop"))
		})
	})
})
