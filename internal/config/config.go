/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the deployment configuration of a raffle from YAML or TOML files.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/SmartBFT-Go/staticraffle/internal/selection"
	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBlockInterval = time.Second
	DefaultListen        = "127.0.0.1:8080"
	DefaultStorePath     = "raffle.db"
	DefaultLogLevel      = "info"
)

type File struct {
	WinnerCount int       `yaml:"winner_count" toml:"winner_count"`
	Trigger     string    `yaml:"trigger" toml:"trigger"`
	Roster      []string  `yaml:"roster" toml:"roster"`
	Provider    Provider  `yaml:"provider" toml:"provider"`
	Selection   Selection `yaml:"selection" toml:"selection"`
	Store       Store     `yaml:"store" toml:"store"`
	API         API       `yaml:"api" toml:"api"`
	Log         Log       `yaml:"log" toml:"log"`
}

type Provider struct {
	Principal            string `yaml:"principal" toml:"principal"`
	KeyHash              string `yaml:"key_hash" toml:"key_hash"`
	SubscriptionID       uint64 `yaml:"subscription_id" toml:"subscription_id"`
	RequestConfirmations uint16 `yaml:"request_confirmations" toml:"request_confirmations"`
	CallbackGasLimit     uint32 `yaml:"callback_gas_limit" toml:"callback_gas_limit"`
	// The settings below only apply to the local coordinator
	BlockInterval time.Duration `yaml:"block_interval" toml:"block_interval"`
	Redeliver     int           `yaml:"redeliver" toml:"redeliver"`
	AutoFulfill   *bool         `yaml:"auto_fulfill" toml:"auto_fulfill"`
}

type Selection struct {
	Strategy string `yaml:"strategy" toml:"strategy"`
}

type Store struct {
	Path string `yaml:"path" toml:"path"`
}

type API struct {
	Listen string `yaml:"listen" toml:"listen"`
	// Tokens maps bearer tokens to the principal presenting them
	Tokens map[string]string `yaml:"tokens" toml:"tokens"`
}

type Log struct {
	Level       string `yaml:"level" toml:"level"`
	Development bool   `yaml:"development" toml:"development"`
}

// Load reads the file at path, choosing the decoder by its extension, and applies defaults.
func Load(path string) (*File, error) {
	f := &File{}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, f); err != nil {
			return nil, fmt.Errorf("failed parsing %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, f); err != nil {
			return nil, fmt.Errorf("failed parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	f.applyDefaults()
	if err := f.Check(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) applyDefaults() {
	if f.Provider.BlockInterval == 0 {
		f.Provider.BlockInterval = DefaultBlockInterval
	}
	if f.Provider.AutoFulfill == nil {
		autoFulfill := true
		f.Provider.AutoFulfill = &autoFulfill
	}
	if f.Selection.Strategy == "" {
		f.Selection.Strategy = string(selection.Swap)
	}
	if f.Store.Path == "" {
		f.Store.Path = DefaultStorePath
	}
	if f.API.Listen == "" {
		f.API.Listen = DefaultListen
	}
	if f.Log.Level == "" {
		f.Log.Level = DefaultLogLevel
	}
}

// Check validates settings that are not covered by raffle.Config.Validate
func (f *File) Check() error {
	if _, err := selection.ForStrategy(selection.Strategy(f.Selection.Strategy)); err != nil {
		return err
	}
	if f.Provider.Redeliver < 0 {
		return fmt.Errorf("redeliver must not be negative, got %d", f.Provider.Redeliver)
	}
	if f.Provider.BlockInterval < 0 {
		return fmt.Errorf("block interval must not be negative, got %s", f.Provider.BlockInterval)
	}
	for token, principal := range f.API.Tokens {
		if token == "" || principal == "" {
			return fmt.Errorf("API tokens and principals must not be empty")
		}
	}
	return nil
}

// Raffle converts the file into the construction time configuration of a round
func (f *File) Raffle() (raffle.Config, error) {
	var roster raffle.Roster
	for i, p := range f.Roster {
		b, err := decodeHex(p)
		if err != nil {
			return raffle.Config{}, fmt.Errorf("%w: participant %d: %v", raffle.ErrInvalidConfig, i, err)
		}
		roster = append(roster, b)
	}

	keyHash, err := decodeHex(f.Provider.KeyHash)
	if err != nil {
		return raffle.Config{}, fmt.Errorf("%w: key hash: %v", raffle.ErrInvalidConfig, err)
	}

	c := raffle.Config{
		Roster:      roster,
		WinnerCount: f.WinnerCount,
		Trigger:     raffle.Principal(f.Trigger),
		Provider:    raffle.Principal(f.Provider.Principal),
		ProviderParams: raffle.ProviderParams{
			KeyHash:              keyHash,
			SubscriptionID:       f.Provider.SubscriptionID,
			RequestConfirmations: f.Provider.RequestConfirmations,
			CallbackGasLimit:     f.Provider.CallbackGasLimit,
		},
	}

	return c, c.Validate()
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
}
