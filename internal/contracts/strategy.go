package contracts

import (
	"context"
	"encoding/json"
	"time"
)

// StrategyMetadata is the singleton-per-strategy configuration row.
// Created once, read thereafter; ConfigHash ties persisted decisions back to
// the exact parameter document that produced them.
type StrategyMetadata struct {
	StrategyID string          `json:"strategy_id"`
	Name       string          `json:"name"`
	Version    string          `json:"version"`
	Parameters json.RawMessage `json:"parameters"`
	ConfigHash string          `json:"config_hash"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
}

// StrategyInput is everything a strategy may look at for one evaluation.
// ⭐ SSOT: 전략은 이 입력 외의 상태를 읽지 않는다 (walk-forward 보장)
// Closes are ascending and end at the evaluation date; histories are
// descending by date, strictly before the evaluation date, at most 20 deep.
type StrategyInput struct {
	Features     *FeatureRecord
	Closes       []float64
	PriorSignals []*Signal
	PriorStates  []*PortfolioState
}

// Strategy is the pluggable strategy contract. New strategies are new
// implementations of this pair, not subclasses reaching into shared state.
type Strategy interface {
	// ID returns the strategy identifier used as persistence key.
	ID() string

	// GenerateSignal evaluates one (symbol, date) and returns the signal with
	// its full explanation. Deterministic for identical inputs.
	GenerateSignal(ctx context.Context, symbol string, date time.Time, in StrategyInput) (*Signal, error)

	// CheckRiskControls evaluates the stateful risk controls against prior
	// portfolio/signal history. Always recorded in the explanation even when
	// the regime gate already forced FLAT.
	CheckRiskControls(ctx context.Context, symbol string, in StrategyInput) RiskControlState
}
