package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Server     ServerCfg     `mapstructure:"server"`
	Store      StoreCfg      `mapstructure:"store"`
	Embedding  EmbeddingCfg  `mapstructure:"embedding"`
	Preview    int           `mapstructure:"preview"`
	Classifier ClassifierCfg `mapstructure:"classifier"`
	Tokenizer  TokenizerCfg  `mapstructure:"tokenizer"`

	configFile string
}

type ServerCfg struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreCfg selects where steps and questions come from.
type StoreCfg struct {
	Backend     string        `mapstructure:"backend"` // static, sqlite, postgres, supabase
	DSN         string        `mapstructure:"dsn"`
	SupabaseURL string        `mapstructure:"supabase_url"`
	SupabaseKey string        `mapstructure:"supabase_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type TokenizerCfg struct {
	BPE      bool   `mapstructure:"bpe"`
	Encoding string `mapstructure:"encoding"`
}

const (
	BackendStatic   = "static"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

func setDefaults(v *viper.Viper) {
	emb := DefaultEmbeddingCfg()
	cls := DefaultClassifierCfg()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.session_ttl", 30*time.Minute)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("store.backend", BackendStatic)
	v.SetDefault("store.dsn", "tokenizely.db")
	v.SetDefault("store.supabase_url", "")
	v.SetDefault("store.supabase_key", "")
	v.SetDefault("store.timeout", 10*time.Second)

	v.SetDefault("embedding.scale", emb.Scale)
	v.SetDefault("embedding.model_dim", emb.ModelDim)
	v.SetDefault("embedding.base", emb.Base)
	v.SetDefault("preview", 5)

	v.SetDefault("classifier.policy", cls.Policy)
	v.SetDefault("classifier.threshold.cuts", cls.Threshold.Cuts)
	v.SetDefault("classifier.threshold.labels", cls.Threshold.Labels)
	v.SetDefault("classifier.linear.weights", cls.Linear.Weights)
	v.SetDefault("classifier.linear.bias", cls.Linear.Bias)
	v.SetDefault("classifier.linear.labels", cls.Linear.Labels)

	v.SetDefault("tokenizer.bpe", true)
	v.SetDefault("tokenizer.encoding", "cl100k_base")
}

// LoadConfig reads .env, then defaults, the config file and TOKENIZELY_*
// environment variables in increasing priority. An empty path looks for
// tokenizely.yaml in the working directory and tolerates its absence.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TOKENIZELY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Supabase's own variable names also work.
	_ = v.BindEnv("store.supabase_url", "TOKENIZELY_STORE_SUPABASE_URL", "SUPABASE_URL")
	_ = v.BindEnv("store.supabase_key", "TOKENIZELY_STORE_SUPABASE_KEY", "SUPABASE_ANON_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("tokenizely")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.configFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Embedding.Scale == 0 {
		return fmt.Errorf("embedding.scale must be non-zero")
	}
	if c.Embedding.ModelDim <= 0 {
		return fmt.Errorf("embedding.model_dim must be positive, got %d", c.Embedding.ModelDim)
	}
	if c.Preview < 0 {
		return fmt.Errorf("preview must not be negative, got %d", c.Preview)
	}
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	switch c.Store.Backend {
	case BackendStatic, BackendSQLite, BackendPostgres:
	case BackendSupabase:
		if c.Store.SupabaseURL == "" {
			return fmt.Errorf("store.backend=supabase needs store.supabase_url or SUPABASE_URL")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if _, err := NewPolicy(c.Classifier); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	return nil
}

// ConfigFile is the file the configuration was read from, if any.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// NewPipelineFromConfig builds the pipeline with the configured policy.
func NewPipelineFromConfig(c *Config) (*Pipeline, error) {
	policy, err := NewPolicy(c.Classifier)
	if err != nil {
		return nil, err
	}
	return NewPipeline(c.Embedding, policy), nil
}

// Backend bundles the sources opened for a configuration.
type Backend struct {
	Steps StepSource
	Quiz  QuizSource
	SQL   *SQLStore // set for sqlite and postgres
	close func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend opens the configured store.
func OpenBackend(c *Config) (*Backend, error) {
	switch c.Store.Backend {
	case BackendSQLite, BackendPostgres:
		driver := DriverSQLite
		if c.Store.Backend == BackendPostgres {
			driver = DriverPostgres
		}
		store, err := OpenSQLStore(driver, c.Store.DSN)
		if err != nil {
			return nil, err
		}
		return &Backend{Steps: store, Quiz: store, SQL: store, close: store.Close}, nil
	case BackendSupabase:
		store := NewSupabaseStore(c.Store.SupabaseURL, c.Store.SupabaseKey, c.Store.Timeout)
		return &Backend{Steps: store, Quiz: store}, nil
	default:
		store := NewStaticStore()
		return &Backend{Steps: store, Quiz: store}, nil
	}
}

// NewTokenCounter returns the BPE counter or nil when disabled or the
// encoding cannot be loaded.
func NewTokenCounter(c TokenizerCfg) TokenCounter {
	if !c.BPE {
		return nil
	}
	counter, err := NewTiktokenCounter(c.Encoding)
	if err != nil {
		logf("tokenizer: BPE counts disabled: %v", err)
		return nil
	}
	return counter
}
