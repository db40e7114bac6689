package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/axiomhive/axiomd/pkg/types"
)

type Config struct {
	ListenAddr string           `yaml:"listen_addr"`
	AxiomsPath string           `yaml:"axioms_path"`
	DB         DBConfig         `yaml:"db"`
	SigningKey SigningKeyConfig `yaml:"signing_key"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Redis      RedisConfig      `yaml:"redis"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	Log        LogConfig        `yaml:"log"`
}

type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type SigningKeyConfig struct {
	KeyID          string `yaml:"key_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	PublicKeyPath  string `yaml:"public_key_path"`
}

type ClassifierConfig struct {
	Endpoint       string            `yaml:"endpoint"`
	Token          string            `yaml:"token"`
	TimeoutMS      int               `yaml:"timeout_ms"`
	Retries        int               `yaml:"retries"`
	DefaultVerdict string            `yaml:"default_verdict"`
	Labels         map[string]string `yaml:"labels"`
}

type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type AMQPConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Queue   string `yaml:"queue"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.AxiomsPath == "" {
		return fmt.Errorf("axioms_path is required")
	}

	if c.DB.Driver != "" && c.DB.Driver != "memory" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required when db.driver is set")
	}

	if c.Classifier.Endpoint == "" {
		return fmt.Errorf("classifier.endpoint is required")
	}
	if len(c.Classifier.Labels) == 0 {
		return fmt.Errorf("classifier.labels is required")
	}
	if !types.Verdict(c.Classifier.DefaultVerdict).Valid() {
		return fmt.Errorf("classifier.default_verdict must be one of accept, reject, escalate")
	}
	for label, verdict := range c.Classifier.Labels {
		if !types.Verdict(verdict).Valid() {
			return fmt.Errorf("classifier.labels[%q] maps to invalid verdict %q", label, verdict)
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis.enabled=true")
	}
	if c.AMQP.Enabled && c.AMQP.URL == "" {
		return fmt.Errorf("amqp.url is required when amqp.enabled=true")
	}

	return nil
}

// DefaultVerdictTyped returns the configured fallback verdict. Call
// after Validate.
func (c ClassifierConfig) DefaultVerdictTyped() types.Verdict {
	return types.Verdict(c.DefaultVerdict)
}

// LabelVerdicts converts the configured label table to typed verdicts.
// Call after Validate.
func (c ClassifierConfig) LabelVerdicts() map[string]types.Verdict {
	out := make(map[string]types.Verdict, len(c.Labels))
	for label, verdict := range c.Labels {
		out[label] = types.Verdict(verdict)
	}
	return out
}
