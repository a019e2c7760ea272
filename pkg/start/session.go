// Package start boots a working chora session from the .chora/ directory:
// config, store, primitives, engine, keyring, sync bridge, embedder, pulse
// runner, and worker pool wired together. CLI commands open a session, do
// their work, and close it.
package start

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/chora/pkg/circle"
	"github.com/papercomputeco/chora/pkg/config"
	"github.com/papercomputeco/chora/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/chora/pkg/embeddings/utils"
	"github.com/papercomputeco/chora/pkg/engine"
	"github.com/papercomputeco/chora/pkg/eventstream"
	"github.com/papercomputeco/chora/pkg/eventstream/kafka"
	"github.com/papercomputeco/chora/pkg/eventstream/nop"
	"github.com/papercomputeco/chora/pkg/logger"
	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/primitive/std"
	"github.com/papercomputeco/chora/pkg/pulse"
	"github.com/papercomputeco/chora/pkg/pulse/worker"
	"github.com/papercomputeco/chora/pkg/store"
)

// Options controls session construction.
type Options struct {
	// ConfigDir overrides .chora/ directory resolution.
	ConfigDir string

	// Debug switches the logger to debug level.
	Debug bool

	// Sink receives user-visible primitive output. Defaults to stdout.
	Sink io.Writer
}

// Session is one opened chora runtime. Every field is ready to use after
// Open returns; Close releases them in reverse order.
type Session struct {
	Config   *config.Config
	Configer *config.Configer
	Store    *store.Store
	Registry *primitive.Registry
	Engine   *engine.Engine
	Keyring  *circle.Keyring
	Bridge   *circle.Bridge
	Pulse    *pulse.Runner
	Workers  *worker.Pool
	Embedder embeddings.Embedder
	Logger   *zap.Logger

	sink      io.Writer
	publisher eventstream.Publisher
}

// Open builds a session from the resolved config directory.
func Open(opts Options) (*Session, error) {
	log := logger.NewLogger(opts.Debug)

	cfger, err := config.NewConfiger(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	s, err := store.New(store.Config{
		Path:   cfger.ResolvePath(cfg.Storage.SQLitePath),
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	registry := primitive.NewRegistry()
	std.RegisterAll(registry)

	eng := engine.New(engine.Config{
		Store:    s,
		Registry: registry,
		Logger:   log,
	})

	keyring, err := circle.LoadKeyring(cfger.ResolvePath(cfg.Keyring.Path))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("loading keyring: %w", err)
	}

	publisher, err := newPublisher(cfg.EventStream, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	bridge := circle.NewBridge(circle.BridgeConfig{
		Store:     s,
		Keyring:   keyring,
		Publisher: publisher,
		Logger:    log,
	})

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
	})
	if err != nil {
		// Semantic operations degrade to their fallbacks without an
		// embedder; a misconfigured provider is not fatal.
		log.Warn("embedder unavailable", zap.Error(err))
		embedder = nil
	}

	runner := pulse.New(pulse.Config{
		Store:       s,
		Registry:    registry,
		Logger:      log,
		Interval:    time.Duration(cfg.Pulse.IntervalSeconds) * time.Second,
		SignalLimit: int(cfg.Pulse.SignalLimit),
	})

	// The pool routes protocol runs through the invoker the engine just
	// installed on the registry.
	pool := worker.New(worker.Config{
		Store:    s,
		Registry: registry,
		Logger:   log,
	})

	return &Session{
		Config:    cfg,
		Configer:  cfger,
		Store:     s,
		Registry:  registry,
		Engine:    eng,
		Keyring:   keyring,
		Bridge:    bridge,
		Pulse:     runner,
		Workers:   pool,
		Embedder:  embedder,
		Logger:    log,
		sink:      opts.Sink,
		publisher: publisher,
	}, nil
}

// Exec returns an execution context bound to this session.
func (s *Session) Exec() *primitive.ExecContext {
	return &primitive.ExecContext{
		Store:     s.Store,
		Registry:  s.Registry,
		Sink:      s.sink,
		PersonaID: s.Config.Persona.ID,
		Logger:    s.Logger,
		Embedder:  s.Embedder,
		ModelName: s.Config.Embedding.Model,
		Tasks:     s.Workers,
	}
}

// Close releases the session's resources. Safe to call once.
func (s *Session) Close() error {
	if s.Embedder != nil {
		if err := s.Embedder.Close(); err != nil {
			s.Logger.Warn("closing embedder", zap.Error(err))
		}
	}
	// Drain queued tasks before the store goes away.
	s.Workers.Close()
	s.Bridge.Close()
	if err := s.publisher.Close(); err != nil {
		s.Logger.Warn("closing publisher", zap.Error(err))
	}
	return s.Store.Close()
}

func newPublisher(cfg config.EventStreamConfig, log *zap.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("building kafka publisher: %w", err)
		}
		return p, nil
	case "nop", "":
		return nop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %s", cfg.Provider)
	}
}
