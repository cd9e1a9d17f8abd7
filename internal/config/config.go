// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/holiman/uint256"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/dao"
	"github.com/genomechain/genome-ledger/internal/logging"
	"github.com/genomechain/genome-ledger/internal/market"
	"github.com/genomechain/genome-ledger/internal/sim"
)

// Config holds everything the ledger service reads at startup. Amounts accept
// wei or the "e18" whole-token suffix, e.g. "1000e18".
type Config struct {
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string `env:"LOG_FORMAT" envDefault:"text"`
	ListenAddr        string `env:"LISTEN_ADDR" envDefault:":8080"`
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR" envDefault:"localhost:9090"`
	DatabasePath      string `env:"DATABASE_PATH" envDefault:"/data/ledger.db"`

	// MasterAPIKey authenticates the first admin until an admin token exists.
	MasterAPIKey string `env:"MASTER_API_KEY"`

	OwnerAddress      chain.Address `env:"OWNER_ADDRESS"`
	FeeRecipient      chain.Address `env:"FEE_RECIPIENT"`
	InitialSupply     string        `env:"INITIAL_SUPPLY" envDefault:"1000000000e18"`
	MaxSupply         string        `env:"MAX_SUPPLY" envDefault:"10000000000e18"`
	PlatformFeeBps    uint64        `env:"PLATFORM_FEE_BPS" envDefault:"250"`
	NFTReward         string        `env:"NFT_REWARD" envDefault:"100e18"`
	VotingDelay       time.Duration `env:"VOTING_DELAY" envDefault:"24h"`
	VotingPeriod      time.Duration `env:"VOTING_PERIOD" envDefault:"168h"`
	ExecutionDelay    time.Duration `env:"EXECUTION_DELAY" envDefault:"48h"`
	ProposalThreshold string        `env:"PROPOSAL_THRESHOLD" envDefault:"1000e18"`
	QuorumPercent     uint64        `env:"QUORUM_PERCENT" envDefault:"10"`

	// ManualClock freezes ledger time; admins move it with /api/admin/clock.
	ManualClock bool `env:"MANUAL_CLOCK" envDefault:"false"`

	RedisURL    string `env:"REDIS_URL"`
	RedisStream string `env:"REDIS_STREAM" envDefault:"genome:events"`

	OTELEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load parses the environment. Call Validate before using the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks every constraint that can be verified without side effects.
func (c *Config) Validate() error {
	var errs []error
	if c.MasterAPIKey == "" {
		errs = append(errs, errors.New("MASTER_API_KEY environment variable is required"))
	}
	if c.OwnerAddress.IsZero() {
		errs = append(errs, errors.New("OWNER_ADDRESS environment variable is required"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: must be text or json, got %q", c.LogFormat))
	}
	if c.PlatformFeeBps > market.MaxPlatformFeeBps {
		errs = append(errs, fmt.Errorf("PLATFORM_FEE_BPS: %d exceeds %d", c.PlatformFeeBps, market.MaxPlatformFeeBps))
	}
	if _, err := c.WorldParams(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WorldParams converts the ledger settings into deployment parameters.
func (c *Config) WorldParams() (sim.Params, error) {
	p := sim.DefaultParams(c.OwnerAddress)
	if !c.FeeRecipient.IsZero() {
		p.FeeRecipient = c.FeeRecipient
	}
	p.PlatformFeeBps = c.PlatformFeeBps

	var err error
	if p.InitialSupply, err = parseAmount("INITIAL_SUPPLY", c.InitialSupply); err != nil {
		return p, err
	}
	if p.MaxSupply, err = parseAmount("MAX_SUPPLY", c.MaxSupply); err != nil {
		return p, err
	}
	if p.InitialSupply.Gt(p.MaxSupply) {
		return p, fmt.Errorf("INITIAL_SUPPLY exceeds MAX_SUPPLY")
	}
	if p.NFTReward, err = parseAmount("NFT_REWARD", c.NFTReward); err != nil {
		return p, err
	}
	threshold, err := parseAmount("PROPOSAL_THRESHOLD", c.ProposalThreshold)
	if err != nil {
		return p, err
	}

	p.DAO = dao.Params{
		VotingDelay:       c.VotingDelay,
		VotingPeriod:      c.VotingPeriod,
		ExecutionDelay:    c.ExecutionDelay,
		ProposalThreshold: *threshold,
		QuorumPercent:     c.QuorumPercent,
	}
	if err := p.DAO.Validate(); err != nil {
		return p, fmt.Errorf("voting parameters: %w", err)
	}
	return p, nil
}

func parseAmount(name, raw string) (*uint256.Int, error) {
	v, err := sim.ParseAmount(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
