package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/model"
)

func newDecider(seed uint64) *Decider {
	return NewDecider(DeciderConfig{
		Seed:                 seed,
		DeclineRate:          DefaultDeclineRate,
		HighValueDeclineRate: DefaultHighValueDeclineRate,
		HighValueThreshold:   DefaultHighValueThreshold,
	})
}

func TestDecideIsReproducibleForSeed(t *testing.T) {
	a, b := newDecider(42), newDecider(42)
	amount := decimal.RequireFromString("250.00")

	for i := 0; i < 200; i++ {
		da, err := a.Decide(amount)
		require.NoError(t, err)
		db, err := b.Decide(amount)
		require.NoError(t, err)
		require.Equal(t, da, db, "draw %d", i)
	}
}

func TestDeclineRates(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   float64
	}{
		{"regular amount", "250.00", 0.20},
		{"at threshold", "5000.00", 0.20},
		{"high value", "5000.01", 0.40},
	}

	const samples = 10000
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDecider(7)
			amount := decimal.RequireFromString(tt.amount)
			declined := 0
			for i := 0; i < samples; i++ {
				decision, err := d.Decide(amount)
				require.NoError(t, err)
				if decision.Status == model.TransactionStatusFailed {
					declined++
					assert.Contains(t, DeclineReasons, decision.FailureReason)
				} else {
					assert.Empty(t, decision.FailureReason)
				}
			}
			assert.InDelta(t, tt.want, float64(declined)/samples, 0.03)
		})
	}
}

func TestDecideRejectsNonPositiveWithoutDraw(t *testing.T) {
	a, b := newDecider(99), newDecider(99)

	for _, raw := range []string{"0", "-1.50"} {
		_, err := a.Decide(decimal.RequireFromString(raw))
		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
	}

	// The rejected calls must not have advanced a's random stream.
	amount := decimal.NewFromInt(10)
	for i := 0; i < 50; i++ {
		da, _ := a.Decide(amount)
		db, _ := b.Decide(amount)
		require.Equal(t, da, db)
	}
}

func TestZeroRateAlwaysApproves(t *testing.T) {
	d := NewDecider(DeciderConfig{Seed: 1})
	for i := 0; i < 100; i++ {
		decision, err := d.Decide(decimal.NewFromInt(9000))
		require.NoError(t, err)
		assert.Equal(t, model.TransactionStatusSuccess, decision.Status)
	}
}
