package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/calehh/gp-node/types"
	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Home          string `mapstructure:"-"`
	TimeoutCommit uint64 `mapstructure:"-"`

	Indexer             bool          `mapstructure:"indexer"`
	IndexerListen       string        `mapstructure:"indexer_listen"`
	IndexerPollInterval time.Duration `mapstructure:"indexer_poll_interval"`

	// Genesis seeds the app_state params written by init.
	Genesis types.Params `mapstructure:"genesis"`
}

func DefaultAppConfig(home string) *AppConfig {
	return &AppConfig{
		Home:                home,
		Indexer:             true,
		IndexerListen:       "127.0.0.1:8088",
		IndexerPollInterval: 2 * time.Second,
		Genesis:             types.DefaultParams(),
	}
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *AppConfig `mapstructure:"app"`
}

func DefaultHome() string {
	return os.ExpandEnv("$HOME/.gp")
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = DefaultHome()
	}
	_ = os.MkdirAll(home+"/config", 0755)
	config := &Config{
		DefaultCometConfig(),
		DefaultAppConfig(home),
	}
	config.SetRoot(home)
	return config
}

// LoadConfig reads home/config/config.toml over the defaults.
func LoadConfig(home string) (*Config, error) {
	if len(home) == 0 {
		home = DefaultHome()
	}
	cfg := &Config{
		Config: DefaultCometConfig(),
		App:    DefaultAppConfig(home),
	}
	cfg.SetRoot(home)

	if err := loadDotEnv(home); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(filepath.Join(home, "config", "config.toml"))
	v.SetEnvPrefix("GP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	if err := cfg.App.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app genesis params: %w", err)
	}
	cfg.App.Home = home
	cfg.App.TimeoutCommit = uint64(cfg.Consensus.TimeoutCommit.Seconds())
	return cfg, nil
}

// loadDotEnv exports home/.env, if present, so GP_* variables in it
// override config.toml. Variables already set in the environment win.
func loadDotEnv(home string) error {
	path := filepath.Join(home, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// InitNodeFiles loads or generates the p2p node key and the validator key pair.
func InitNodeFiles(cfg *Config) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(cfg.NodeKeyFile())
	if err != nil {
		return "", nil, fmt.Errorf("node key: %w", err)
	}
	keyFile, stateFile := cfg.PrivValidatorKeyFile(), cfg.PrivValidatorStateFile()
	for _, dir := range []string{filepath.Dir(keyFile), filepath.Dir(stateFile)} {
		if err = os.MkdirAll(dir, 0o700); err != nil {
			return "", nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	pk, err = privval.LoadOrGenFilePV(keyFile, stateFile).GetPubKey()
	if err != nil {
		return "", nil, fmt.Errorf("validator key: %w", err)
	}
	return string(nodeKey.ID()), pk, nil
}

func DefaultCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Second * 12
	return cometConfig
}
