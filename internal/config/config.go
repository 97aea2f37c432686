// Package config loads the YAML-backed configuration for both deployable
// roles (node and commitment service).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ===== Token pair =====

// TokenPairConfig is the wire-level TokenPair entity: two opaque 20-byte
// addresses and their decimal precisions.
type TokenPairConfig struct {
	BaseToken     string `yaml:"base_token"`
	QuoteToken    string `yaml:"quote_token"`
	BaseDecimals  uint8  `yaml:"base_decimals"`
	QuoteDecimals uint8  `yaml:"quote_decimals"`
}

func (t TokenPairConfig) validate() error {
	if t.BaseToken == "" || t.QuoteToken == "" {
		return fmt.Errorf("config: token pair requires both base_token and quote_token")
	}
	if t.BaseToken == t.QuoteToken {
		return fmt.Errorf("config: base_token and quote_token must differ")
	}
	return nil
}

// ===== Logging =====

// LoggingConfig is the logging section of a config file. The raidexnode
// and raidexcs daemons apply its Level to their logger; TimeFormat and
// Prefix are not read by them.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	TimeFormat string `yaml:"time_format"`
	Prefix     string `yaml:"prefix"`
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info", TimeFormat: time.TimeOnly}
}

// ===== Node =====

// NodeConfig configures a trading node process.
type NodeConfig struct {
	ListenAddr       string          `yaml:"listen_addr"`
	KeyfilePath      string          `yaml:"keyfile_path"`
	CommitmentServiceAddr string    `yaml:"commitment_service_addr"`
	DefaultOrderTimeout   time.Duration `yaml:"default_order_timeout"`
	Logging          LoggingConfig   `yaml:"logging"`
}

func (c NodeConfig) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: node.listen_addr is required")
	}
	if c.CommitmentServiceAddr == "" {
		return fmt.Errorf("config: node.commitment_service_addr is required")
	}
	if c.DefaultOrderTimeout <= 0 {
		return fmt.Errorf("config: node.default_order_timeout must be positive")
	}
	return nil
}

// DefaultNodeConfig returns a NodeConfig with sane defaults applied before
// YAML unmarshaling overrides them.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		ListenAddr:          "/ip4/0.0.0.0/tcp/0",
		DefaultOrderTimeout: 60 * time.Second,
		Logging:             defaultLoggingConfig(),
	}
}

// ===== Commitment Service =====

// RefundQueueConfig tunes the bounded backoff policy of the refund worker
// (see SPEC_FULL.md open question #3 resolution).
type RefundQueueConfig struct {
	InitialRetryInterval time.Duration `yaml:"initial_retry_interval"`
	MaxRetryInterval     time.Duration `yaml:"max_retry_interval"`
	BackoffMultiplier    float64       `yaml:"backoff_multiplier"`
	MaxRetries           int           `yaml:"max_retries"`
}

func defaultRefundQueueConfig() RefundQueueConfig {
	return RefundQueueConfig{
		InitialRetryInterval: 10 * time.Second,
		MaxRetryInterval:     10 * time.Minute,
		BackoffMultiplier:    2.0,
		MaxRetries:           50,
	}
}

func (c RefundQueueConfig) validate() error {
	if c.InitialRetryInterval <= 0 || c.MaxRetryInterval <= 0 {
		return fmt.Errorf("config: refund_queue retry intervals must be positive")
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("config: refund_queue.backoff_multiplier must be >= 1")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("config: refund_queue.max_retries must be positive")
	}
	return nil
}

// CommitmentServiceConfig configures a commitment service process.
type CommitmentServiceConfig struct {
	ListenAddr      string            `yaml:"listen_addr"`
	KeyfilePath     string            `yaml:"keyfile_path"`
	FeeRateBasisPoints uint32         `yaml:"fee_rate_basis_points"`
	TokenPairs      []TokenPairConfig `yaml:"token_pairs"`
	RefundQueue     RefundQueueConfig `yaml:"refund_queue"`
	Logging         LoggingConfig     `yaml:"logging"`
}

func (c CommitmentServiceConfig) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: commitment_service.listen_addr is required")
	}
	if c.FeeRateBasisPoints >= 10000 {
		return fmt.Errorf("config: fee_rate_basis_points must be < 10000 (100%%)")
	}
	for _, tp := range c.TokenPairs {
		if err := tp.validate(); err != nil {
			return err
		}
	}
	return c.RefundQueue.validate()
}

// DefaultCommitmentServiceConfig returns a CommitmentServiceConfig with
// sane defaults applied before YAML unmarshaling overrides them.
func DefaultCommitmentServiceConfig() CommitmentServiceConfig {
	return CommitmentServiceConfig{
		ListenAddr:  "/ip4/0.0.0.0/tcp/0",
		RefundQueue: defaultRefundQueueConfig(),
		Logging:     defaultLoggingConfig(),
	}
}

// ===== Loading =====

// LoadNodeConfig reads and unmarshals a node configuration file, applying
// defaults first and validating the result.
func LoadNodeConfig(path string) (NodeConfig, error) {
	cfg := DefaultNodeConfig()
	if err := loadYAML(path, &cfg); err != nil {
		return NodeConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// LoadCommitmentServiceConfig reads and unmarshals a commitment service
// configuration file, applying defaults first and validating the result.
func LoadCommitmentServiceConfig(path string) (CommitmentServiceConfig, error) {
	cfg := DefaultCommitmentServiceConfig()
	if err := loadYAML(path, &cfg); err != nil {
		return CommitmentServiceConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return CommitmentServiceConfig{}, err
	}
	return cfg, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
