package config

const (
	defaultSQLiteFile = "chora.db"

	defaultPulseEnabled  = true
	defaultPulseInterval = 60
	defaultSignalLimit   = 10

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultKeyringFile = "keyring.json"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "chora.entity.changes"

	defaultPersonaID = "persona-default"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. Relative paths
// (sqlite, keyring) resolve against the .chora/ directory at load time.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			SQLitePath: defaultSQLiteFile,
		},
		Pulse: PulseConfig{
			Enabled:         defaultPulseEnabled,
			IntervalSeconds: defaultPulseInterval,
			SignalLimit:     defaultSignalLimit,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Keyring: KeyringConfig{
			Path: defaultKeyringFile,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Persona: PersonaConfig{
			ID: defaultPersonaID,
		},
	}
}
