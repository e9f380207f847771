// services/payment-gateway/internal/service/settlement.go
// Simulated authorization network
package service

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RandomSource yields draws in [0, 1).
type RandomSource interface {
	Float64() float64
}

// LockedRandomSource is a RandomSource safe for concurrent use.
type LockedRandomSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRandomSource seeds a ChaCha8 generator from crypto/rand.
func NewLockedRandomSource() (*LockedRandomSource, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("failed to seed random source: %w", err)
	}
	return &LockedRandomSource{r: rand.New(rand.NewChaCha8(seed))}, nil
}

// NewSeededRandomSource returns a reproducible source.
func NewSeededRandomSource(seed1, seed2 uint64) *LockedRandomSource {
	return &LockedRandomSource{r: rand.New(rand.NewPCG(seed1, seed2))}
}

func (s *LockedRandomSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// FixedSource always returns the same draw.
type FixedSource float64

func (f FixedSource) Float64() float64 { return float64(f) }

// Instrument is what the decider sees of a structurally valid card: its last
// four digits and network. The full number never leaves validation.
type Instrument struct {
	Last4   string
	Network string
}

// SettlementOutcome is the decider's answer. Reason is set when declined.
type SettlementOutcome struct {
	Approved bool
	Reason   ReasonCode
	Tier     RiskTier
}

// RiskTier groups amounts by approval probability.
type RiskTier string

const (
	RiskTierStandard  RiskTier = "standard"
	RiskTierHighValue RiskTier = "high_value"
	RiskTierTestCard  RiskTier = "test_card"
)

// SettlementDecider approves or declines a charge.
type SettlementDecider interface {
	Decide(ctx context.Context, instrument Instrument, amount decimal.Decimal) SettlementOutcome
}

type SettlementConfig struct {
	// DeclineSuffix marks test instruments that are always declined.
	DeclineSuffix         string
	HighValueThreshold    decimal.Decimal
	StandardApprovalRate  float64
	HighValueApprovalRate float64
}

// DefaultSettlementConfig returns the production tiers.
func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{
		DeclineSuffix:         "0002",
		HighValueThreshold:    decimal.NewFromInt(10000),
		StandardApprovalRate:  0.90,
		HighValueApprovalRate: 0.70,
	}
}

func (c SettlementConfig) Validate() error {
	if c.StandardApprovalRate < 0 || c.StandardApprovalRate > 1 {
		return fmt.Errorf("standard approval rate must be between 0 and 1, got %f", c.StandardApprovalRate)
	}
	if c.HighValueApprovalRate < 0 || c.HighValueApprovalRate > 1 {
		return fmt.Errorf("high value approval rate must be between 0 and 1, got %f", c.HighValueApprovalRate)
	}
	if !c.HighValueThreshold.IsPositive() {
		return errors.New("high value threshold must be positive")
	}
	if len(c.DeclineSuffix) > 4 || !isDigits(c.DeclineSuffix) {
		return fmt.Errorf("decline suffix must be at most four digits, got %q", c.DeclineSuffix)
	}
	return nil
}

type settlementRule func(Instrument, decimal.Decimal) (SettlementOutcome, bool)

// RiskTieredDecider declines reserved test cards outright and otherwise
// approves with a probability chosen by amount tier.
type RiskTieredDecider struct {
	cfg     SettlementConfig
	random  RandomSource
	metrics *Metrics
	logger  *zap.Logger
}

func NewRiskTieredDecider(cfg SettlementConfig, random RandomSource, metrics *Metrics, logger *zap.Logger) (*RiskTieredDecider, error) {
	if random == nil {
		return nil, errors.New("random source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskTieredDecider{
		cfg:     cfg,
		random:  random,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Decide runs the rules in order; the first rule that decides wins.
func (d *RiskTieredDecider) Decide(ctx context.Context, instrument Instrument, amount decimal.Decimal) SettlementOutcome {
	rules := []settlementRule{
		d.checkTestInstrument,
		d.checkAmountTier,
	}

	var outcome SettlementOutcome
	for _, rule := range rules {
		if result, decided := rule(instrument, amount); decided {
			outcome = result
			break
		}
	}

	d.metrics.ObserveSettlement(outcome)
	d.logger.Debug("settlement decided",
		zap.String("tier", string(outcome.Tier)),
		zap.Bool("approved", outcome.Approved),
		zap.String("network", instrument.Network))

	return outcome
}

// checkTestInstrument declines cards reserved for demos and tests.
func (d *RiskTieredDecider) checkTestInstrument(instrument Instrument, _ decimal.Decimal) (SettlementOutcome, bool) {
	if d.cfg.DeclineSuffix == "" || !strings.HasSuffix(instrument.Last4, d.cfg.DeclineSuffix) {
		return SettlementOutcome{}, false
	}
	return SettlementOutcome{Approved: false, Reason: ReasonSettlementDeclined, Tier: RiskTierTestCard}, true
}

// checkAmountTier draws against the approval rate of the amount's tier.
func (d *RiskTieredDecider) checkAmountTier(_ Instrument, amount decimal.Decimal) (SettlementOutcome, bool) {
	tier, rate := RiskTierStandard, d.cfg.StandardApprovalRate
	if amount.GreaterThan(d.cfg.HighValueThreshold) {
		tier, rate = RiskTierHighValue, d.cfg.HighValueApprovalRate
	}

	if d.random.Float64() < rate {
		return SettlementOutcome{Approved: true, Tier: tier}, true
	}
	return SettlementOutcome{Approved: false, Reason: ReasonSettlementDeclined, Tier: tier}, true
}
