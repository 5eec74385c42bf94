package volregime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/regimeflow/internal/contracts"
)

// mkState builds a portfolio state daysAgo days before the evaluation date.
// Test fixtures are ordered newest first, matching repository GetPrior output.
func mkState(daysAgo int, nav, dailyPnL, drawdown float64, positions map[string]float64) *contracts.PortfolioState {
	return &contracts.PortfolioState{
		StrategyID: "vol_regime_v1",
		Date:       evalDate().AddDate(0, 0, -daysAgo),
		NAV:        nav,
		Positions:  positions,
		DailyPnL:   dailyPnL,
		Drawdown:   drawdown,
	}
}

func mkSignal(daysAgo int, momentum *float64) *contracts.Signal {
	return &contracts.Signal{
		StrategyID: "vol_regime_v1",
		Symbol:     "NVDA",
		Date:       evalDate().AddDate(0, 0, -daysAgo),
		Type:       contracts.SignalFlat,
		Momentum20: momentum,
	}
}

func TestDailyLossCooldown(t *testing.T) {
	s := newTestStrategy(t)

	// Defaults: stop -1.5% of NAV, cooldown 3 days.
	tests := []struct {
		name          string
		states        []*contracts.PortfolioState
		wantActive    bool
		wantRemaining int
	}{
		{
			name:          "breach yesterday",
			states:        []*contracts.PortfolioState{mkState(1, 100000, -2000, 0, nil)},
			wantActive:    true,
			wantRemaining: 3,
		},
		{
			name: "breach two days back",
			states: []*contracts.PortfolioState{
				mkState(1, 100000, -500, 0, nil),
				mkState(2, 100000, -100, 0, nil),
				mkState(3, 100000, -2000, 0, nil),
			},
			wantActive:    true,
			wantRemaining: 1,
		},
		{
			name: "breach outside the cooldown window",
			states: []*contracts.PortfolioState{
				mkState(1, 100000, -500, 0, nil),
				mkState(2, 100000, -100, 0, nil),
				mkState(3, 100000, 200, 0, nil),
				mkState(4, 100000, -2000, 0, nil),
			},
			wantActive: false,
		},
		{
			name:          "exact boundary counts as breach",
			states:        []*contracts.PortfolioState{mkState(1, 100000, -1500, 0, nil)},
			wantActive:    true,
			wantRemaining: 3,
		},
		{
			name:       "no history",
			states:     nil,
			wantActive: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cd := s.dailyLossCooldown(tt.states)
			assert.Equal(t, tt.wantActive, cd.Active)
			if tt.wantActive {
				assert.Equal(t, tt.wantRemaining, cd.DaysRemaining)
				assert.NotEmpty(t, cd.Reason)
			}
		})
	}
}

func TestDrawdownCooldown(t *testing.T) {
	s := newTestStrategy(t)

	breached := func(n int) []*contracts.PortfolioState {
		states := make([]*contracts.PortfolioState, n)
		for i := range states {
			states[i] = mkState(i+1, 92000, 0, 0.10, nil)
		}
		return states
	}

	t.Run("counts from first crossing", func(t *testing.T) {
		cd := s.drawdownCooldown(breached(5))
		require.True(t, cd.Active)
		// Crossed 5 days ago, 10-day cooldown: 5 days left.
		assert.Equal(t, 5, cd.DaysRemaining)
	})

	t.Run("fresh breach yesterday", func(t *testing.T) {
		cd := s.drawdownCooldown(breached(1))
		require.True(t, cd.Active)
		assert.Equal(t, 9, cd.DaysRemaining)
	})

	t.Run("expires even while drawdown persists", func(t *testing.T) {
		// Crossed 12 days ago: the 10-day cooldown has lapsed and trading
		// resumes even though every recent state still shows the drawdown.
		cd := s.drawdownCooldown(breached(12))
		assert.False(t, cd.Active)
	})

	t.Run("below threshold", func(t *testing.T) {
		states := []*contracts.PortfolioState{
			mkState(1, 96000, 0, 0.04, nil),
			mkState(2, 95000, 0, 0.05, nil),
		}
		assert.False(t, s.drawdownCooldown(states).Active)
	})
}

func TestReversalExit(t *testing.T) {
	s := newTestStrategy(t)
	long := map[string]float64{"NVDA": 200}

	t.Run("three opposite signals exit a long", func(t *testing.T) {
		states := []*contracts.PortfolioState{mkState(1, 100000, 0, 0, long)}
		signals := []*contracts.Signal{
			mkSignal(1, fp(-0.03)),
			mkSignal(2, fp(-0.01)),
			mkSignal(3, fp(-0.02)),
		}
		rev := s.reversalExit("NVDA", states, signals)
		assert.True(t, rev.Active)
		assert.Equal(t, contracts.SignalLong, rev.HeldDirection)
		assert.Equal(t, 3, rev.ConsecutiveOpposite)
	})

	t.Run("two opposite signals are not enough", func(t *testing.T) {
		states := []*contracts.PortfolioState{mkState(1, 100000, 0, 0, long)}
		signals := []*contracts.Signal{
			mkSignal(1, fp(-0.03)),
			mkSignal(2, fp(-0.01)),
			mkSignal(3, fp(0.02)),
		}
		rev := s.reversalExit("NVDA", states, signals)
		assert.False(t, rev.Active)
		assert.Equal(t, 2, rev.ConsecutiveOpposite)
	})

	t.Run("missing momentum breaks the streak", func(t *testing.T) {
		states := []*contracts.PortfolioState{mkState(1, 100000, 0, 0, long)}
		signals := []*contracts.Signal{
			mkSignal(1, fp(-0.03)),
			mkSignal(2, nil),
			mkSignal(3, fp(-0.02)),
		}
		rev := s.reversalExit("NVDA", states, signals)
		assert.False(t, rev.Active)
		assert.Equal(t, 1, rev.ConsecutiveOpposite)
	})

	t.Run("short exits on positive momentum", func(t *testing.T) {
		states := []*contracts.PortfolioState{mkState(1, 100000, 0, 0, map[string]float64{"NVDA": -150})}
		signals := []*contracts.Signal{
			mkSignal(1, fp(0.01)),
			mkSignal(2, fp(0.04)),
			mkSignal(3, fp(0.02)),
		}
		rev := s.reversalExit("NVDA", states, signals)
		assert.True(t, rev.Active)
		assert.Equal(t, contracts.SignalShort, rev.HeldDirection)
	})

	t.Run("no position held", func(t *testing.T) {
		states := []*contracts.PortfolioState{mkState(1, 100000, 0, 0, map[string]float64{"NVDA": 0.005})}
		signals := []*contracts.Signal{mkSignal(1, fp(-0.03))}
		rev := s.reversalExit("NVDA", states, signals)
		assert.False(t, rev.Active)
		assert.Equal(t, contracts.SignalFlat, rev.HeldDirection)
	})

	t.Run("no history", func(t *testing.T) {
		rev := s.reversalExit("NVDA", nil, nil)
		assert.False(t, rev.Active)
		assert.Equal(t, contracts.SignalFlat, rev.HeldDirection)
	})
}

func TestCheckRiskControlsLookbackBound(t *testing.T) {
	s := newTestStrategy(t)

	// A drawdown crossing older than lookback_days is invisible to the
	// controls even when the caller passes a longer history.
	states := make([]*contracts.PortfolioState, 25)
	for i := range states {
		dd := 0.0
		if i == 22 {
			dd = 0.12
		}
		states[i] = mkState(i+1, 100000, 0, dd, nil)
	}

	rc := s.CheckRiskControls(context.Background(), "NVDA", contracts.StrategyInput{PriorStates: states})
	assert.False(t, rc.AnyActive())
}

func TestRiskActiveForcesFlat(t *testing.T) {
	s := newTestStrategy(t)

	in := contracts.StrategyInput{
		Features:    hotFeatures(),
		Closes:      risingCloses(),
		PriorStates: []*contracts.PortfolioState{mkState(1, 100000, -3000, 0, nil)},
	}
	sig, err := s.GenerateSignal(context.Background(), "NVDA", evalDate(), in)
	require.NoError(t, err)

	assert.Equal(t, contracts.SignalFlat, sig.Type)
	assert.Equal(t, 0.0, sig.TargetExposure)
	// The explanation keeps the full picture: regime was on, direction was
	// long, the cooldown overrode it.
	assert.True(t, sig.Explanation.Regime.On)
	assert.Equal(t, contracts.SignalLong, sig.Explanation.Direction.Direction)
	assert.True(t, sig.Explanation.RiskControls.DailyLossCooldown.Active)
}
