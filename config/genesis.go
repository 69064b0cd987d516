package config

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"
)

// Genesis is the bootstrap state applied on first start: the initial asset
// allow-list, the venue route table, and seeded wallet balances.
type Genesis struct {
	AllowedAssets []string         `yaml:"allowed_assets"`
	Routes        []GenesisRoute   `yaml:"routes"`
	Balances      []GenesisBalance `yaml:"balances"`
}

// GenesisRoute configures one static venue route at rate Num/Den.
type GenesisRoute struct {
	Name     string `yaml:"name"`
	AssetIn  string `yaml:"asset_in"`
	AssetOut string `yaml:"asset_out"`
	Num      string `yaml:"num"`
	Den      string `yaml:"den"`
}

// GenesisBalance seeds one wallet balance.
type GenesisBalance struct {
	Address string `yaml:"address"`
	Asset   string `yaml:"asset"`
	Amount  string `yaml:"amount"`
}

// LoadGenesis reads and validates the YAML bootstrap file.
func LoadGenesis(path string) (*Genesis, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genesis: %w", err)
	}
	defer file.Close()

	genesis := &Genesis{}
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(genesis); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	for _, route := range genesis.Routes {
		if _, err := parseAmount(route.Num); err != nil {
			return nil, fmt.Errorf("route %s: num: %w", route.Name, err)
		}
		if _, err := parseAmount(route.Den); err != nil {
			return nil, fmt.Errorf("route %s: den: %w", route.Name, err)
		}
	}
	for _, balance := range genesis.Balances {
		if _, err := parseAmount(balance.Amount); err != nil {
			return nil, fmt.Errorf("balance %s/%s: %w", balance.Address, balance.Asset, err)
		}
	}
	return genesis, nil
}

func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("not a base-10 integer: %q", raw)
	}
	return v, nil
}

// Amount parses a validated genesis amount string.
func Amount(raw string) *big.Int {
	v, _ := new(big.Int).SetString(raw, 10)
	return v
}
