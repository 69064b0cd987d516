package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"dripline/crypto"
)

// Config is the dripd node configuration.
type Config struct {
	RPCAddress       string  `toml:"RPCAddress"`
	DataDir          string  `toml:"DataDir"`
	Environment      string  `toml:"Environment"`
	LogPath          string  `toml:"LogPath"`
	GenesisFile      string  `toml:"GenesisFile"`
	RegistryOwner    string  `toml:"RegistryOwner"`
	Executor         string  `toml:"Executor"`
	FeeAsset         string  `toml:"FeeAsset"`
	ExecutionFee     string  `toml:"ExecutionFee"`
	SlippageFloorBps uint32  `toml:"SlippageFloorBps"`
	GasPrice         string  `toml:"GasPrice"`
	KeeperSchedule   string  `toml:"KeeperSchedule"`
	ExecutionsPerSec float64 `toml:"ExecutionsPerSec"`
	// Paused administratively pauses position creation, deposits, and
	// execution. Fund recovery stays open regardless.
	Paused bool `toml:"Paused"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	for _, undecoded := range meta.Undecoded() {
		return nil, fmt.Errorf("unknown config key: %s", undecoded.String())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	ownerKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	executorKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		RPCAddress:       ":8645",
		DataDir:          "./dripd-data",
		Environment:      "dev",
		GenesisFile:      "./genesis.yaml",
		RegistryOwner:    ownerKey.PubKey().Address().String(),
		Executor:         executorKey.PubKey().Address().String(),
		FeeAsset:         "DRIP",
		ExecutionFee:     "0",
		SlippageFloorBps: 10,
		GasPrice:         "0",
		KeeperSchedule:   "@every 15s",
		ExecutionsPerSec: 5,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.RegistryOwner) == "" {
		return fmt.Errorf("RegistryOwner is required")
	}
	if _, err := crypto.DecodeAddress(c.RegistryOwner); err != nil {
		return fmt.Errorf("RegistryOwner: %w", err)
	}
	if strings.TrimSpace(c.Executor) == "" {
		return fmt.Errorf("Executor is required")
	}
	if _, err := crypto.DecodeAddress(c.Executor); err != nil {
		return fmt.Errorf("Executor: %w", err)
	}
	if strings.TrimSpace(c.FeeAsset) == "" {
		return fmt.Errorf("FeeAsset is required")
	}
	if _, ok := new(big.Int).SetString(c.ExecutionFee, 10); !ok {
		return fmt.Errorf("ExecutionFee must be a base-10 integer")
	}
	if _, ok := new(big.Int).SetString(c.GasPrice, 10); !ok {
		return fmt.Errorf("GasPrice must be a base-10 integer")
	}
	return nil
}

// ExecutionFeeAmount returns the parsed execution fee.
func (c *Config) ExecutionFeeAmount() *big.Int {
	fee, _ := new(big.Int).SetString(c.ExecutionFee, 10)
	return fee
}

// GasPriceAmount returns the parsed gas price fed to the eligibility
// predicate.
func (c *Config) GasPriceAmount() *big.Int {
	price, _ := new(big.Int).SetString(c.GasPrice, 10)
	return price
}
