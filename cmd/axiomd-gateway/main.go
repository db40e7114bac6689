package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/axiomhive/axiomd/internal/api"
	"github.com/axiomhive/axiomd/internal/attest"
	"github.com/axiomhive/axiomd/internal/auth"
	"github.com/axiomhive/axiomd/internal/axiom"
	"github.com/axiomhive/axiomd/internal/cache"
	"github.com/axiomhive/axiomd/internal/classifier"
	"github.com/axiomhive/axiomd/internal/config"
	"github.com/axiomhive/axiomd/internal/crypto"
	"github.com/axiomhive/axiomd/internal/engine"
	"github.com/axiomhive/axiomd/internal/fusion"
	"github.com/axiomhive/axiomd/internal/ledger"
	"github.com/axiomhive/axiomd/internal/ledger/pgstore"
	"github.com/axiomhive/axiomd/internal/ledger/sqlstore"
	"github.com/axiomhive/axiomd/internal/outbox"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

type envFn func(string) string
type listenFn func(*http.Server) error

func run(args []string, getenv envFn, listen listenFn) error {
	fs := flag.NewFlagSet("axiomd-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to axiomd config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := firstNonEmpty(*configPath, getenv("AXIOMD_CONFIG_PATH"), "config/axiomd.yaml")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := openStore(cfg.DB)
	if err != nil {
		return err
	}
	defer closeStore()

	set, err := axiom.Load(cfg.AxiomsPath)
	if err != nil {
		return fmt.Errorf("load axioms: %w", err)
	}
	// #nosec G304 -- path is operator-provided config value.
	rawAxioms, err := os.ReadFile(cfg.AxiomsPath)
	if err != nil {
		return err
	}
	if err := store.PutAxiomSet(ledger.AxiomSetRecord{
		Hash:      set.Hash,
		YAML:      string(rawAxioms),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("record axiom set: %w", err)
	}
	logger.Info("axiom set loaded",
		zap.String("path", cfg.AxiomsPath),
		zap.String("hash", set.Hash),
		zap.Int("axioms", len(set.Axioms)))

	signer, err := loadSigner(cfg.SigningKey, store, logger)
	if err != nil {
		return err
	}

	timeout := time.Duration(cfg.Classifier.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	orchestrator := &fusion.Orchestrator{
		Scorer: &classifier.HTTPScorer{
			Endpoint: cfg.Classifier.Endpoint,
			Token:    cfg.Classifier.Token,
			Client:   &http.Client{},
		},
		Config: fusion.Config{
			Labels:  cfg.Classifier.LabelVerdicts(),
			Default: cfg.Classifier.DefaultVerdictTyped(),
			Timeout: timeout,
			Retries: cfg.Classifier.Retries,
		},
		Logger: logger,
	}
	if err := orchestrator.Config.Validate(); err != nil {
		return err
	}

	engineOpts := engine.Options{
		Axioms:       set,
		Orchestrator: orchestrator,
		Signer:       signer,
		Store:        store,
		Logger:       logger,
	}
	// Assign the cache only when enabled: a nil *AttestationCache stored in
	// the ReplayCache interface would not compare equal to nil.
	if cfg.Redis.Enabled {
		attCache := cache.New(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      time.Duration(cfg.Redis.TTLSeconds) * time.Second,
		}, logger)
		defer func() { _ = attCache.Close() }()
		engineOpts.Cache = attCache
	}

	eng, err := engine.New(engineOpts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.AMQP.Enabled {
		publisher, err := outbox.NewAMQPPublisher(outbox.AMQPConfig{
			URL:   cfg.AMQP.URL,
			Queue: cfg.AMQP.Queue,
		})
		if err != nil {
			return err
		}
		defer func() { _ = publisher.Close() }()
		go outbox.Run(ctx, store, publisher, 2*time.Second, logger)
		logger.Info("outbox worker started", zap.String("queue", cfg.AMQP.Queue))
	}

	server := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: api.NewRouter(&api.Handler{
			Auth:   auth.NewAuthenticatorFromEnv(),
			Engine: eng,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("axiomd-gateway listening", zap.String("addr", cfg.ListenAddr))
	if err := listen(server); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		cfg.Level = parsed
	}
	return cfg.Build()
}

func openStore(db config.DBConfig) (ledger.Store, func(), error) {
	switch db.Driver {
	case "", "memory":
		return ledger.NewInMemoryStore(), func() {}, nil
	case "sqlite":
		store, err := sqlstore.OpenSQLite(db.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		store, err := pgstore.OpenPostgres(db.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported db.driver %q", db.Driver)
	}
}

// loadSigner loads the configured Ed25519 key, generating and persisting
// one when the key file does not exist yet. The public key is registered
// in the ledger so verification works without out-of-band key exchange.
func loadSigner(cfg config.SigningKeyConfig, store ledger.Store, logger *zap.Logger) (*attest.LocalSigner, error) {
	keyID := firstNonEmpty(cfg.KeyID, "axiomd-key-1")

	if cfg.PrivateKeyPath == "" {
		return nil, fmt.Errorf("signing_key.private_key_path is required")
	}

	priv, pub, err := crypto.LoadEd25519PrivateKey(cfg.PrivateKeyPath)
	if os.IsNotExist(err) {
		seed, genErr := crypto.GenerateSeed()
		if genErr != nil {
			return nil, genErr
		}
		if writeErr := crypto.WriteEd25519Seed(cfg.PrivateKeyPath, seed); writeErr != nil {
			return nil, writeErr
		}
		priv, pub, err = crypto.KeyPairFromSeed(seed)
		if err != nil {
			return nil, err
		}
		if cfg.PublicKeyPath != "" {
			if writeErr := crypto.WriteEd25519PublicKey(cfg.PublicKeyPath, pub); writeErr != nil {
				return nil, writeErr
			}
		}
		logger.Info("generated new signing key",
			zap.String("key_id", keyID),
			zap.String("path", cfg.PrivateKeyPath))
	} else if err != nil {
		return nil, err
	}

	if err := store.PutKey(ledger.KeyRecord{
		KeyID:     keyID,
		PublicKey: pub,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("register key: %w", err)
	}

	return attest.NewLocalSigner(keyID, priv), nil
}

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
