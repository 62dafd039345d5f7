package engine

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/model"
)

const (
	DefaultDeclineRate          = 0.20
	DefaultHighValueDeclineRate = 0.40
)

// DefaultHighValueThreshold is the amount above which the high-value rate applies.
var DefaultHighValueThreshold = decimal.NewFromInt(5000)

// DeclineReasons are chosen uniformly for a FAILED decision.
var DeclineReasons = []string{
	"Insufficient funds",
	"Card declined by issuer",
	"Transaction limit exceeded",
	"Suspicious activity detected",
}

// Decision is the simulated issuer answer for one payment.
type Decision struct {
	Status        model.TransactionStatus
	FailureReason string
}

// DeciderConfig tunes the simulated issuer.
type DeciderConfig struct {
	Seed                 uint64
	DeclineRate          float64
	HighValueDeclineRate float64
	HighValueThreshold   decimal.Decimal
}

// Decider draws payment outcomes from a seeded random source.
// A fixed non-zero seed reproduces the exact outcome sequence.
type Decider struct {
	mu            sync.Mutex
	rng           *rand.Rand
	declineRate   float64
	highValueRate float64
	threshold     decimal.Decimal
}

func NewDecider(cfg DeciderConfig) *Decider {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	d := &Decider{
		rng:           rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		declineRate:   cfg.DeclineRate,
		highValueRate: cfg.HighValueDeclineRate,
		threshold:     cfg.HighValueThreshold,
	}
	if d.threshold.IsZero() {
		d.threshold = DefaultHighValueThreshold
	}
	return d
}

// Decide returns SUCCESS or FAILED for amount. Non-positive amounts are
// rejected without consuming a draw.
func (d *Decider) Decide(amount decimal.Decimal) (Decision, error) {
	if !amount.IsPositive() {
		return Decision{}, apperrors.ErrInvalidAmount
	}

	rate := d.declineRate
	if amount.GreaterThan(d.threshold) {
		rate = d.highValueRate
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rng.Float64() >= rate {
		return Decision{Status: model.TransactionStatusSuccess}, nil
	}
	return Decision{
		Status:        model.TransactionStatusFailed,
		FailureReason: DeclineReasons[d.rng.IntN(len(DeclineReasons))],
	}, nil
}
